package interp

import (
	"sort"
	"time"
)

// Clock supplies the scheduler's notion of "now", in fractional
// seconds. Real programs use RealClock; tests use a ManualClock so
// sleep and gather timing is deterministic without actually sleeping.
type Clock interface {
	Now() float64
}

// Scheduler is the cooperative single-threaded event loop: a FIFO
// ready queue and a wakeup-time-ordered sleep queue.
type Scheduler struct {
	interp *Interpreter
	clock  Clock

	ready    []*Coroutine
	inReady  map[*Coroutine]bool
	sleeping []*Coroutine // kept sorted ascending by WakeupTimeSec
}

// NewScheduler builds a scheduler bound to interp, using clock as its
// time source.
func NewScheduler(interp *Interpreter, clock Clock) *Scheduler {
	return &Scheduler{
		interp:  interp,
		clock:   clock,
		inReady: map[*Coroutine]bool{},
	}
}

// EnqueueReady transitions c to Runnable and appends it to the ready
// queue. A coroutine already enqueued is never enqueued twice.
func (s *Scheduler) EnqueueReady(c *Coroutine) {
	c.State = CoroRunnable
	if s.inReady[c] {
		return
	}
	s.inReady[c] = true
	s.ready = append(s.ready, c)
}

// EnqueueSleep inserts c into the sleep queue, keeping it ordered by
// wakeup time (earliest deadline first).
func (s *Scheduler) EnqueueSleep(c *Coroutine, wakeAt float64) {
	c.WakeupTimeSec = wakeAt
	c.State = CoroSuspendedSleep
	idx := sort.Search(len(s.sleeping), func(i int) bool {
		return s.sleeping[i].WakeupTimeSec > wakeAt
	})
	s.sleeping = append(s.sleeping, nil)
	copy(s.sleeping[idx+1:], s.sleeping[idx:])
	s.sleeping[idx] = c
}

func (s *Scheduler) popReady() *Coroutine {
	if len(s.ready) == 0 {
		return nil
	}
	c := s.ready[0]
	s.ready = s.ready[1:]
	delete(s.inReady, c)
	return c
}

// promoteDueSleepers moves every sleep entry whose wakeup has arrived
// into the ready queue, preserving wakeup order.
func (s *Scheduler) promoteDueSleepers(now float64) {
	i := 0
	for i < len(s.sleeping) && s.sleeping[i].WakeupTimeSec <= now {
		i++
	}
	due := s.sleeping[:i]
	s.sleeping = s.sleeping[i:]
	for _, c := range due {
		s.EnqueueReady(c)
	}
}

// IsIdle reports whether both queues are empty. This is the loop's
// termination condition, and must hold after Run returns.
func (s *Scheduler) IsIdle() bool {
	return len(s.ready) == 0 && len(s.sleeping) == 0
}

// nextWakeup returns the earliest pending sleep deadline, used to
// fast-forward a virtual clock when the ready queue is empty but
// coroutines remain asleep.
func (s *Scheduler) nextWakeup() (float64, bool) {
	if len(s.sleeping) == 0 {
		return 0, false
	}
	return s.sleeping[0].WakeupTimeSec, true
}

// Run drives the event loop to completion: one coroutine step per
// iteration, until both queues are empty.
func (s *Scheduler) Run() *ScriptException {
	for {
		now := s.clock.Now()
		s.promoteDueSleepers(now)
		if len(s.ready) == 0 {
			if len(s.sleeping) == 0 {
				return nil
			}
			if mc, ok := s.clock.(*ManualClock); ok {
				wake, _ := s.nextWakeup()
				mc.Advance(wake - now)
				continue
			}
			// Wall clock: nothing runnable until the earliest sleeper
			// is due. Doze briefly instead of spinning hot.
			time.Sleep(time.Millisecond)
			continue
		}
		c := s.popReady()
		s.interp.debugf("scheduler: stepping coroutine %s (%s)", c.Name, c.ID)
		if exc := s.step(c); exc != nil {
			return exc
		}
	}
}

// step resumes c until it yields (await/sleep), completes, or raises.
// Unlike a synchronous call, which hands the whole resume loop to
// runFunctionBody, a coroutine's body is driven here statement by
// statement across however many resumptions an await inside it
// triggers, stopping as soon as the statement executor yields anything
// other than StatusOK.
func (s *Scheduler) step(c *Coroutine) *ScriptException {
	if c.isSleepPrimitive {
		if !c.sleepStarted && !c.IsCancelled {
			c.sleepStarted = true
			s.EnqueueSleep(c, s.clock.Now()+c.SleepSeconds)
			return nil
		}
		if c.IsCancelled {
			s.completeWithException(c, NewCancelledException(0, 0))
			return nil
		}
		s.completeWithResult(c, Null())
		return nil
	}
	if c.IsGather {
		// A gather has no body of its own: it completes from
		// settleGatherChild when its last child settles. The only work
		// left for a scheduler turn is the empty-gather case, which has
		// no children to complete it.
		if c.State != CoroDone && c.GatherPendingCount == 0 {
			s.completeWithResult(c, NewArray(c.GatherResults))
		}
		return nil
	}

	if !c.everRan && c.IsCancelled {
		// Cancelled before its first turn: there is no suspension
		// point to resume from, so this first turn itself acts as an
		// implicit resumption carrying the cancellation, which the
		// evaluator consumes at the coroutine's first await.
		c.IsResumedFromAwait = true
		c.ResumedException = NewCancelledException(0, 0)
	}
	c.everRan = true

	interp := s.interp
	interp.activeCoroutine = c
	interp.activeScope = c.ExecScope
	if interp.Lexer != nil {
		interp.Lexer.SetState(c.ResumeState)
	}
	if c.HasMethodSelf {
		interp.PushMethodContext(c.MethodClass, c.MethodSelf)
	}

	interp.lastExprValue = Null()
	status := StatusOK
	for {
		status = interp.statementExecutor(interp)
		if status != StatusOK {
			break
		}
		if interp.Lexer == nil {
			break
		}
		if k := interp.Lexer.Peek().Kind; k == TokEOF || k == TokRBrace {
			break
		}
	}

	if c.HasMethodSelf {
		interp.PopMethodContext()
	}
	if interp.Lexer != nil {
		c.ResumeState = interp.Lexer.GetState()
	}

	switch status {
	case StatusYieldedAwait:
		// The evaluator already transitioned c to SuspendedAwait or
		// SuspendedSleep and registered it appropriately; c.ResumeState
		// above was captured after the await rewound the lexer to the
		// start of the suspending statement. Reset the flag so the
		// next coroutine stepped doesn't inherit it.
		interp.ClearAwaitSuspended()
	case StatusException:
		exc := interp.ClearException()
		s.completeWithException(c, exc)
	case StatusReturn:
		s.completeWithResult(c, interp.lastExprValue)
	case StatusOK:
		// Fell off the end of the body (EOF or the frame's closing
		// brace) without an explicit return.
		s.completeWithResult(c, Null())
	default:
		s.completeWithException(c, NewRuntimeException(0, 0, "break/continue escaped a coroutine body"))
	}
	return nil
}

// AwaitOn runs the waiter protocol for coroutine `waiter` awaiting
// `target`.
//
//  1. target Done: inject its result/exception synchronously and the
//     caller continues without suspending.
//  2. target New: schedule it and enqueue it, then register and
//     suspend waiter as in case 3.
//  3. otherwise: register waiter on target's waiter list, bump
//     target's ref count, suspend waiter.
//
// The return value reports whether the await resolved synchronously
// (case 1): the caller's evaluator can keep running immediately.
func (s *Scheduler) AwaitOn(waiter, target *Coroutine) (resolved bool) {
	if waiter == target {
		panic("AwaitOn: self-await must be rejected by the caller before reaching the scheduler")
	}
	switch target.State {
	case CoroDone:
		waiter.IsResumedFromAwait = true
		if target.HasException {
			waiter.ResumedException = target.ExceptionValue
		} else {
			waiter.ValueFromAwait = deepCopy(target.ResultValue)
		}
		return true
	case CoroNew:
		s.EnqueueReady(target)
		s.registerWaiter(waiter, target)
		return false
	default:
		s.registerWaiter(waiter, target)
		return false
	}
}

func (s *Scheduler) registerWaiter(waiter, target *Coroutine) {
	target.addWaiter(waiter)
	waiter.AwaitingOnCoro = target
	waiter.State = CoroSuspendedAwait
}

// completeWithResult marks c Done with a result, then wakes every
// registered waiter and settles c's parent gather, if any.
func (s *Scheduler) completeWithResult(c *Coroutine, result Value) {
	c.State = CoroDone
	c.ResultValue = result
	c.HasException = false
	s.wakeWaiters(c)
	if c.ParentGatherCoro != nil {
		s.settleGatherChild(c.ParentGatherCoro, c, result, nil)
	}
}

// completeWithException marks c Done with an exception.
func (s *Scheduler) completeWithException(c *Coroutine, exc *ScriptException) {
	c.State = CoroDone
	c.HasException = true
	c.ExceptionValue = exc
	s.wakeWaiters(c)
	if c.ParentGatherCoro != nil {
		s.settleGatherChild(c.ParentGatherCoro, c, Value{}, exc)
	}
}

func (s *Scheduler) wakeWaiters(c *Coroutine) {
	for _, w := range c.drainWaiters() {
		w.IsResumedFromAwait = true
		if c.HasException {
			w.ResumedException = c.ExceptionValue
		} else {
			w.ValueFromAwait = deepCopy(c.ResultValue)
		}
		w.AwaitingOnCoro = nil
		s.EnqueueReady(w)
		c.DecRef() // the waiter no longer holds a reference
	}
}

// Cancel marks c cancelled. If c is currently suspended it is
// scheduled Runnable immediately; the cancellation error is raised at
// its next resumption. Cancelling a gather cancels each child.
// Cancellation is idempotent and irreversible.
func (s *Scheduler) Cancel(c *Coroutine) {
	if c.IsCancelled {
		return
	}
	c.IsCancelled = true
	if c.IsGather {
		for _, t := range c.GatherTasks {
			s.Cancel(t)
		}
	}
	if c.State == CoroSuspendedAwait || c.State == CoroSuspendedSleep {
		if c.State == CoroSuspendedSleep {
			s.removeFromSleep(c)
		}
		if c.AwaitingOnCoro != nil {
			s.unregisterWaiter(c.AwaitingOnCoro, c)
			c.AwaitingOnCoro = nil
		}
		c.IsResumedFromAwait = true
		c.ResumedException = NewCancelledException(0, 0)
		s.EnqueueReady(c)
	}
}

func (s *Scheduler) removeFromSleep(c *Coroutine) {
	for i, sc := range s.sleeping {
		if sc == c {
			s.sleeping = append(s.sleeping[:i], s.sleeping[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) unregisterWaiter(target, waiter *Coroutine) {
	for i, w := range target.waitersHead {
		if w == waiter {
			target.waitersHead = append(target.waitersHead[:i], target.waitersHead[i+1:]...)
			target.DecRef()
			return
		}
	}
}

// Gather returns a new GatherTask whose result is an array of child
// results in input order, scheduling every New child immediately.
func (s *Scheduler) Gather(tasks []*Coroutine) *Coroutine {
	g := NewGatherTask(tasks)
	if len(tasks) == 0 {
		s.EnqueueReady(g)
		return g
	}
	for _, t := range tasks {
		t.IncRef()
		t.ParentGatherCoro = g
		if t.State == CoroNew {
			s.EnqueueReady(t)
		} else if t.State == CoroDone {
			s.settleGatherChild(g, t, t.ResultValue, boolToExc(t.HasException, t.ExceptionValue))
		}
	}
	return g
}

func boolToExc(has bool, exc *ScriptException) *ScriptException {
	if has {
		return exc
	}
	return nil
}

// settleGatherChild records one child's outcome and, once every child
// has settled, completes the parent GatherTask: with the first
// exception by child index if any child failed, otherwise with the
// in-order array of results.
func (s *Scheduler) settleGatherChild(g *Coroutine, child *Coroutine, result Value, exc *ScriptException) {
	idx := -1
	for i, t := range g.GatherTasks {
		if t == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if exc != nil && g.GatherFirstExceptionIdx < 0 {
		g.GatherFirstExceptionIdx = idx
	} else if exc == nil {
		g.GatherResults[idx] = result
	}
	g.GatherPendingCount--
	child.DecRef()
	if g.GatherPendingCount > 0 {
		return
	}
	if g.GatherFirstExceptionIdx >= 0 {
		failed := g.GatherTasks[g.GatherFirstExceptionIdx]
		s.completeWithException(g, failed.ExceptionValue)
		return
	}
	s.completeWithResult(g, NewArray(g.GatherResults))
}
