package support

import (
	"testing"
	"time"
)

func TestFakeSchedulerFiresInOrder(t *testing.T) {
	sched := NewFakeScheduler()
	var order []int
	sched.After(time.Second, func() { order = append(order, 1) })
	sched.After(2*time.Second, func() { order = append(order, 2) })

	if got := sched.Pending(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}
	sched.FireAll()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected callbacks to fire in order, got %v", order)
	}
	if got := sched.Pending(); got != 0 {
		t.Fatalf("expected 0 pending after FireAll, got %d", got)
	}
}

func TestFakeSchedulerCancel(t *testing.T) {
	sched := NewFakeScheduler()
	fired := false
	cancel := sched.After(time.Second, func() { fired = true })
	cancel()
	sched.FireAll()
	if fired {
		t.Fatal("expected cancelled callback not to fire")
	}
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	clock.Advance(time.Hour)
	if !clock.Now().Equal(start.Add(time.Hour)) {
		t.Fatalf("expected advanced time, got %v", clock.Now())
	}
}
