package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// Job is one periodic task owned by the scheduler. All cadences in the
// process live here; components register jobs instead of running their own
// tickers.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)

	next time.Time
}

// Scheduler owns every periodic cadence as a first-class job. With a real
// clock each job runs on its own ticker goroutine; with a virtual clock jobs
// are fired synchronously through Advance, which makes cadences testable.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	jobs    []*Job
	log     *logger.Logger
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler on the given clock.
func New(clock Clock, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock, log: log}
}

// Register adds a job. Registration after Start is not supported.
func (s *Scheduler) Register(name string, every time.Duration, run func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &Job{
		Name:  name,
		Every: every,
		Run:   run,
		next:  s.clock.Now().Add(every),
	})
}

// Jobs returns the registered job names in cadence order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := append([]*Job(nil), s.jobs...)
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Every < jobs[j].Every })
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
	}
	return names
}

// Start launches one ticker goroutine per job when running on a real clock.
// On a virtual clock Start only marks the scheduler running; use Advance.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	jobs := s.jobs
	_, virtual := s.clock.(*VirtualClock)
	s.mu.Unlock()

	if virtual {
		return
	}

	for _, j := range jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			t := time.NewTicker(j.Every)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					s.runJob(ctx, j)
				}
			}
		}()
	}
	if s.log != nil {
		s.log.Info("scheduler started", logger.Int("jobs", len(jobs)))
	}
}

// Advance moves a virtual clock forward by d, firing every due job in time
// order. It is a no-op on a real clock.
func (s *Scheduler) Advance(ctx context.Context, d time.Duration) {
	vc, ok := s.clock.(*VirtualClock)
	if !ok {
		return
	}
	target := vc.Now().Add(d)
	for {
		s.mu.Lock()
		var due *Job
		for _, j := range s.jobs {
			if j.next.After(target) {
				continue
			}
			if due == nil || j.next.Before(due.next) {
				due = j
			}
		}
		if due == nil {
			s.mu.Unlock()
			break
		}
		at := due.next
		due.next = at.Add(due.Every)
		s.mu.Unlock()

		vc.Set(at)
		s.runJob(ctx, due)
	}
	vc.Set(target)
}

func (s *Scheduler) runJob(ctx context.Context, j *Job) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Error("job panicked", logger.String("job", j.Name), logger.Any("panic", r))
		}
	}()
	j.Run(ctx)
}

// Stop cancels all job loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Now exposes the scheduler's clock.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }
