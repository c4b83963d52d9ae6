package interp

import "testing"

func newTestScheduler() (*Interpreter, *Scheduler, *ManualClock) {
	clock := NewManualClock()
	ip := New(Options{Clock: clock})
	return ip, ip.Scheduler, clock
}

func TestSchedulerEnqueueReadyDedups(t *testing.T) {
	_, s, _ := newTestScheduler()
	c := NewCoroutineFrame("c", nil, NewScope(nil), LexerState{})

	s.EnqueueReady(c)
	s.EnqueueReady(c)

	if len(s.ready) != 1 {
		t.Fatalf("ready queue has %d entries, want 1 (no duplicates)", len(s.ready))
	}
	if c.State != CoroRunnable {
		t.Fatalf("State = %v, want CoroRunnable", c.State)
	}
}

func TestSchedulerSleepQueueStaysOrdered(t *testing.T) {
	_, s, _ := newTestScheduler()
	late := NewCoroutineFrame("late", nil, NewScope(nil), LexerState{})
	mid := NewCoroutineFrame("mid", nil, NewScope(nil), LexerState{})
	early := NewCoroutineFrame("early", nil, NewScope(nil), LexerState{})

	s.EnqueueSleep(late, 30)
	s.EnqueueSleep(early, 10)
	s.EnqueueSleep(mid, 20)

	want := []*Coroutine{early, mid, late}
	if len(s.sleeping) != len(want) {
		t.Fatalf("sleeping has %d entries, want %d", len(s.sleeping), len(want))
	}
	for i, c := range want {
		if s.sleeping[i] != c {
			t.Fatalf("sleeping[%d] = %s, want %s", i, s.sleeping[i].Name, c.Name)
		}
	}
}

func TestSchedulerPromoteDueSleepers(t *testing.T) {
	_, s, _ := newTestScheduler()
	due := NewCoroutineFrame("due", nil, NewScope(nil), LexerState{})
	notDue := NewCoroutineFrame("not_due", nil, NewScope(nil), LexerState{})
	s.EnqueueSleep(due, 5)
	s.EnqueueSleep(notDue, 15)

	s.promoteDueSleepers(10)

	if len(s.sleeping) != 1 || s.sleeping[0] != notDue {
		t.Fatalf("sleeping queue after promotion = %v, want just not_due", s.sleeping)
	}
	if len(s.ready) != 1 || s.ready[0] != due {
		t.Fatalf("ready queue after promotion = %v, want just due", s.ready)
	}
	if due.State != CoroRunnable {
		t.Fatalf("promoted coroutine state = %v, want CoroRunnable", due.State)
	}
}

func TestSchedulerIsIdle(t *testing.T) {
	_, s, _ := newTestScheduler()
	if !s.IsIdle() {
		t.Fatalf("a fresh scheduler must report idle")
	}
	c := NewCoroutineFrame("c", nil, NewScope(nil), LexerState{})
	s.EnqueueReady(c)
	if s.IsIdle() {
		t.Fatalf("scheduler with a ready coroutine must not report idle")
	}
}

func TestManualClockAdvancesOnlyForward(t *testing.T) {
	c := NewManualClock()
	if c.Now() != 0 {
		t.Fatalf("fresh ManualClock.Now() = %v, want 0", c.Now())
	}
	c.Advance(5)
	if c.Now() != 5 {
		t.Fatalf("Now() after Advance(5) = %v, want 5", c.Now())
	}
	c.Advance(-3)
	if c.Now() != 5 {
		t.Fatalf("Advance with a non-positive delta must be a no-op, got %v", c.Now())
	}
}
