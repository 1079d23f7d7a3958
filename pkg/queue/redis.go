package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QueueMode selects which sides of the queue a process runs. The trading
// binary runs both; a standalone operator tool would publish only.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer"
	case ModeConsumerOnly:
		return "consumer"
	default:
		return "producer-consumer"
	}
}

const (
	defaultKeyPrefix = "tokenagent:queue"
	retrySweepEvery  = 5 * time.Second
	dequeueBlock     = 1 * time.Second
)

// RedisQueue is a Redis-list backed queue with delayed retries and a dead
// letter list. Directives survive a restart of the agent because pending
// messages live in Redis, not in process memory.
type RedisQueue struct {
	log    *logger.Logger
	cfg    *QueueConfig
	client *redis.Client
	mode   QueueMode

	queueKey string
	retryKey string
	deadKey  string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix overrides the Redis key prefix so several agents can share
// one Redis without consuming each other's directives.
func WithKeyPrefix(prefix string) Option {
	return func(q *RedisQueue) {
		q.queueKey = prefix + ":messages"
		q.retryKey = prefix + ":retry"
		q.deadKey = prefix + ":dlq"
	}
}

// NewRedisQueue creates a queue over an existing Redis client.
func NewRedisQueue(log *logger.Logger, cfg *QueueConfig, client *redis.Client, mode QueueMode, opts ...Option) *RedisQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		log:      log,
		cfg:      cfg,
		client:   client,
		mode:     mode,
		queueKey: defaultKeyPrefix + ":messages",
		retryKey: defaultKeyPrefix + ":retry",
		deadKey:  defaultKeyPrefix + ":dlq",
		jobs:     make(map[string]Job),
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob binds a job to its message type. Messages with no registered
// job go straight to the dead letter list.
func (q *RedisQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.jobs[job.Type()]; dup {
		q.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.log.Info("queue job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// RegisterJobs binds several jobs at once.
func (q *RedisQueue) RegisterJobs(jobs ...Job) {
	for _, j := range jobs {
		q.RegisterJob(j)
	}
}

// Start verifies connectivity and, unless producer-only, launches the
// consumer workers.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}
	if err := q.client.Ping(q.ctx).Err(); err != nil {
		return fmt.Errorf("queue redis ping: %w", err)
	}
	q.running = true

	if q.mode != ModeProducerOnly {
		for i := 0; i < q.cfg.Workers; i++ {
			q.wg.Add(1)
			go q.runWorker(i)
		}
	}

	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.String("addr", q.client.Options().Addr),
		logger.String("mode", q.mode.String()))
	return nil
}

// Stop halts the workers and waits for in-flight messages, bounded by ctx.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	close(q.stopCh)
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		q.log.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return ctx.Err()
	}
}

// PublishMessage enqueues a payload under the given message type.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	if q.mode == ModeConsumerOnly {
		return errors.New("queue is consumer-only")
	}

	msg := &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.queueKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}

	q.log.Debug("message enqueued",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type))
	return nil
}

// runWorker blocks on the message list until the queue stops.
func (q *RedisQueue) runWorker(id int) {
	defer q.wg.Done()
	q.log.Debug("queue worker started", logger.Int("worker", id))

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		msg, ok := q.dequeue()
		if !ok {
			continue
		}
		q.dispatch(msg)
	}
}

// dequeue pops one message, waiting up to the block interval. A false
// return means either nothing was ready or the message was unparseable.
func (q *RedisQueue) dequeue() (*Message, bool) {
	res, err := q.client.BRPop(q.ctx, dequeueBlock, q.queueKey).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
		default:
			q.log.Error("queue pop failed", logger.Error(err))
			time.Sleep(time.Second)
		}
		return nil, false
	}
	if len(res) < 2 {
		return nil, false
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		q.log.Error("malformed queue message dropped", logger.Error(err))
		return nil, false
	}
	return &msg, true
}

// dispatch routes a message to its job and handles the outcome.
func (q *RedisQueue) dispatch(msg *Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()

	if !ok {
		q.log.Warn("no job for message type, burying",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type))
		q.bury(msg)
		return
	}

	err := job.Handle(q.ctx, normalizePayload(msg.Payload))
	if err == nil {
		q.log.Debug("message processed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		return
	}
	if errors.Is(err, context.Canceled) {
		q.log.Warn("message handling canceled by shutdown",
			logger.String("id", msg.ID))
		return
	}
	q.retryOrBury(msg, err)
}

// normalizePayload re-encodes payloads that round-tripped through Redis so
// ParsePayload sees raw JSON rather than a generic map.
func normalizePayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return json.RawMessage(raw)
}

// retryOrBury schedules a delayed retry while attempts remain, otherwise
// moves the message to the dead letter list.
func (q *RedisQueue) retryOrBury(msg *Message, cause error) {
	msg.Attempts++
	if msg.Attempts >= q.cfg.RetryLimit {
		q.log.Error("message exhausted retries",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int("attempts", msg.Attempts),
			logger.Error(cause))
		q.bury(msg)
		return
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal retry message", logger.Error(err))
		return
	}
	due := time.Now().Add(q.cfg.RetryDelay)
	z := redis.Z{Score: float64(due.Unix()), Member: raw}
	if err := q.client.ZAdd(q.ctx, q.retryKey, z).Err(); err != nil {
		q.log.Error("schedule retry failed", logger.Error(err))
		return
	}

	q.log.Warn("message scheduled for retry",
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.Duration("delay", q.cfg.RetryDelay),
		logger.Error(cause))
}

func (q *RedisQueue) bury(msg *Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal dead letter", logger.Error(err))
		return
	}
	if err := q.client.LPush(q.ctx, q.deadKey, raw).Err(); err != nil {
		q.log.Error("dead letter push failed", logger.Error(err))
	}
}

// StartRetryProcessor launches the sweeper that moves due retries back onto
// the message list.
func (q *RedisQueue) StartRetryProcessor() {
	if q.mode == ModeProducerOnly {
		return
	}
	q.wg.Add(1)
	go q.retryLoop()
}

func (q *RedisQueue) retryLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(retrySweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.flushDueRetries()
		}
	}
}

// flushDueRetries atomically moves every retry whose time has come back to
// the message list, so a crash between sweep and requeue loses nothing.
func (q *RedisQueue) flushDueRetries() {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.client.ZRangeByScoreWithScores(q.ctx, q.retryKey, &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			q.log.Error("retry sweep failed", logger.Error(err))
		}
		return
	}

	for _, entry := range due {
		member, ok := entry.Member.(string)
		if !ok {
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, q.retryKey, member)
		pipe.LPush(q.ctx, q.queueKey, member)
		if _, err := pipe.Exec(q.ctx); err != nil {
			q.log.Error("requeue retry failed", logger.Error(err))
		}
	}
}
