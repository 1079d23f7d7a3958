package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestAdvanceFiresDueJobsInOrder(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewVirtualClock(start)
	s := New(clock, nil)

	var order []string
	s.Register("fast", 10*time.Second, func(ctx context.Context) {
		order = append(order, "fast@"+clock.Now().Format("15:04:05"))
	})
	s.Register("slow", 25*time.Second, func(ctx context.Context) {
		order = append(order, "slow@"+clock.Now().Format("15:04:05"))
	})

	s.Advance(context.Background(), time.Minute)

	want := []string{
		"fast@00:00:10",
		"fast@00:00:20",
		"slow@00:00:25",
		"fast@00:00:30",
		"fast@00:00:40",
		"fast@00:00:50",
		"slow@00:00:50",
		"fast@00:01:00",
	}
	if len(order) != len(want) {
		t.Fatalf("fired %d jobs, want %d: %v", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("firing %d = %q, want %q", i, order[i], want[i])
		}
	}
	if !clock.Now().Equal(start.Add(time.Minute)) {
		t.Fatalf("clock not advanced to target, at %v", clock.Now())
	}
}

func TestAdvancePartialWindowFiresNothingEarly(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewVirtualClock(start)
	s := New(clock, nil)

	fired := 0
	s.Register("job", time.Minute, func(ctx context.Context) { fired++ })

	s.Advance(context.Background(), 30*time.Second)
	if fired != 0 {
		t.Fatalf("job fired before its cadence elapsed")
	}
	s.Advance(context.Background(), 30*time.Second)
	if fired != 1 {
		t.Fatalf("job fired %d times, want 1", fired)
	}
}

func TestJobsSortedByCadence(t *testing.T) {
	s := New(NewVirtualClock(time.Now()), nil)
	s.Register("hourly", time.Hour, func(ctx context.Context) {})
	s.Register("secondly", time.Second, func(ctx context.Context) {})
	s.Register("minutely", time.Minute, func(ctx context.Context) {})

	got := s.Jobs()
	want := []string{"secondly", "minutely", "hourly"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("jobs order %v, want %v", got, want)
		}
	}
}

func TestJobPanicIsContained(t *testing.T) {
	clock := NewVirtualClock(time.Now())
	s := New(clock, nil)
	s.Register("boom", time.Second, func(ctx context.Context) { panic("boom") })
	ran := false
	s.Register("after", time.Second, func(ctx context.Context) { ran = true })

	s.Advance(context.Background(), time.Second)
	if !ran {
		t.Fatalf("panic in one job must not stop the others")
	}
}
