package interp

import "github.com/google/uuid"

// CoroState is the coroutine state machine:
//
//	New -> Runnable -> (executing) -> SuspendedAwait | SuspendedSleep | Done
//	SuspendedAwait -> Runnable
//	SuspendedSleep -> Runnable
//	Done (terminal)
type CoroState int

const (
	CoroNew CoroState = iota
	CoroRunnable
	CoroSuspendedAwait
	CoroSuspendedSleep
	CoroDone
)

func (s CoroState) String() string {
	switch s {
	case CoroNew:
		return "new"
	case CoroRunnable:
		return "runnable"
	case CoroSuspendedAwait:
		return "suspended_await"
	case CoroSuspendedSleep:
		return "suspended_sleep"
	case CoroDone:
		return "done"
	default:
		return "unknown"
	}
}

// Coroutine is a stackless suspendable execution frame tied to an
// async function call, or (when IsGather is true) the GatherTask
// variant that awaits a set of children and aggregates their results.
type Coroutine struct {
	ID   uuid.UUID
	Name string

	Fn        *Function
	ExecScope *Scope
	State     CoroState

	ResumeState LexerState

	ResultValue    Value
	ExceptionValue *ScriptException
	HasException   bool

	AwaitingOnCoro     *Coroutine
	ValueFromAwait     Value
	IsResumedFromAwait bool
	// ResumedException is set instead of ValueFromAwait when the
	// coroutine being awaited completed with an exception, or when
	// this coroutine's suspension was interrupted by cancellation.
	ResumedException *ScriptException

	WakeupTimeSec float64

	// MethodClass/MethodSelf/HasMethodSelf carry the enclosing
	// instance method's class and receiver across suspension points,
	// the async counterpart of the synchronous call path's
	// PushMethodContext, so `super` keeps resolving after an `await`
	// inside an async method body.
	MethodClass   *Blueprint
	MethodSelf    Value
	HasMethodSelf bool

	IsGather                bool
	GatherTasks             []*Coroutine
	GatherResults           []Value
	GatherPendingCount      int
	GatherFirstExceptionIdx int
	ParentGatherCoro        *Coroutine

	IsCancelled bool

	waitersHead []*Coroutine // append order; each waiter resumed exactly once

	refCount int

	// isSleepPrimitive marks the coroutine returned by async_sleep:
	// it has no Function body, and its sole behavior is to transition
	// straight to SuspendedSleep for SleepSeconds then complete with
	// Null.
	isSleepPrimitive bool
	sleepStarted     bool
	SleepSeconds     float64

	// everRan records whether this coroutine has ever been handed a
	// scheduler turn. A coroutine cancelled while still New has no
	// suspension point to resume from yet; its first turn is treated
	// as an implicit resumption carrying the cancellation, so the
	// error still surfaces at its first await the same way a real
	// resumption would (see Scheduler.step).
	everRan bool
}

// NewCoroutineFrame allocates a coroutine for calling an async
// function with its argument-populated execution scope already built.
// State starts New and the reference count at zero: the caller obtains
// its first reference the same way any other reference is obtained, by
// wrapping the raw pointer in a Value via NewCoroutine, which
// increments to one.
func NewCoroutineFrame(name string, fn *Function, execScope *Scope, resumeAt LexerState) *Coroutine {
	return &Coroutine{
		ID:                      uuid.New(),
		Name:                    name,
		Fn:                      fn,
		ExecScope:               execScope,
		State:                   CoroNew,
		ResumeState:             resumeAt,
		GatherFirstExceptionIdx: -1,
	}
}

// NewGatherTask allocates the GatherTask coroutine variant awaiting
// every entry in tasks, in input order.
func NewGatherTask(tasks []*Coroutine) *Coroutine {
	return &Coroutine{
		ID:                      uuid.New(),
		Name:                    "gather",
		State:                   CoroNew,
		IsGather:                true,
		GatherTasks:             tasks,
		GatherResults:           make([]Value, len(tasks)),
		GatherPendingCount:      len(tasks),
		GatherFirstExceptionIdx: -1,
		refCount:                1,
	}
}

// IncRef increments the coroutine's reference count.
func (c *Coroutine) IncRef() { c.refCount++ }

// DecRef decrements the coroutine's reference count, releasing its
// execution scope and result payload at zero.
func (c *Coroutine) DecRef() {
	c.refCount--
	if c.refCount <= 0 {
		if c.ExecScope != nil {
			c.ExecScope.Free()
		}
		freeContents(c.ResultValue)
	}
}

// RefCount reports the current reference count.
func (c *Coroutine) RefCount() int { return c.refCount }

// addWaiter registers waiter to be resumed when c completes. Waiters
// are kept in registration order and resumed FIFO.
func (c *Coroutine) addWaiter(waiter *Coroutine) {
	c.waitersHead = append(c.waitersHead, waiter)
	c.IncRef() // waiter holds a reference via AwaitingOnCoro
}

// drainWaiters returns and clears the waiter list.
func (c *Coroutine) drainWaiters() []*Coroutine {
	w := c.waitersHead
	c.waitersHead = nil
	return w
}
