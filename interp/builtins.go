package interp

// registerBuiltins installs the built-in function names callable from
// user code: slice, async_sleep, gather, cancel, and append (also
// reachable as a method on arrays).
func registerBuiltins(interp *Interpreter) {
	interp.builtins["slice"] = builtinSlice
	interp.builtins["async_sleep"] = builtinAsyncSleep
	interp.builtins["gather"] = builtinGather
	interp.builtins["cancel"] = builtinCancel
	interp.builtins["append"] = builtinAppend
}

// Builtin looks up a top-level built-in function by name.
func (interp *Interpreter) Builtin(name string) (BuiltinFunc, bool) {
	b, ok := interp.builtins[name]
	return b, ok
}

func builtinSlice(interp *Interpreter, args []Value) (Value, *ScriptException) {
	if len(args) < 2 {
		return Value{}, NewRuntimeException(0, 0, "slice() requires a sequence and a start index")
	}
	start := int(args[1].Int)
	switch args[0].Kind {
	case KindArray:
		elems := args[0].Arr.Elems
		end := len(elems)
		if len(args) >= 3 {
			end = int(args[2].Int)
		}
		s, e, err := normalizeRange(start, end, len(elems))
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, e-s)
		for i := s; i < e; i++ {
			out[i-s] = deepCopy(elems[i])
		}
		return NewArray(out), nil
	case KindTuple:
		elems := args[0].Tup.Elems
		end := len(elems)
		if len(args) >= 3 {
			end = int(args[2].Int)
		}
		s, e, err := normalizeRange(start, end, len(elems))
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, e-s)
		for i := s; i < e; i++ {
			out[i-s] = deepCopy(elems[i])
		}
		return NewTuple(out), nil
	case KindString:
		r := []rune(args[0].Str)
		end := len(r)
		if len(args) >= 3 {
			end = int(args[2].Int)
		}
		s, e, err := normalizeRange(start, end, len(r))
		if err != nil {
			return Value{}, err
		}
		return NewString(string(r[s:e])), nil
	default:
		return Value{}, NewRuntimeException(0, 0, "slice() requires an array, tuple, or string")
	}
}

func normalizeRange(start, end, length int) (int, int, *ScriptException) {
	if start < 0 {
		start += length
	}
	if end < 0 {
		end += length
	}
	if start < 0 || end < start || end > length {
		return 0, 0, NewRuntimeException(0, 0, "slice index out of range")
	}
	return start, end, nil
}

func builtinAsyncSleep(interp *Interpreter, args []Value) (Value, *ScriptException) {
	if len(args) != 1 {
		return Value{}, NewRuntimeException(0, 0, "async_sleep() takes exactly one argument")
	}
	var seconds float64
	switch args[0].Kind {
	case KindFloat:
		seconds = args[0].Float
	case KindInt:
		seconds = float64(args[0].Int)
	default:
		return Value{}, NewRuntimeException(0, 0, "async_sleep() requires a numeric duration")
	}
	c := NewCoroutineFrame("async_sleep", nil, nil, LexerState{})
	c.SleepSeconds = seconds
	c.isSleepPrimitive = true
	return NewCoroutine(c), nil
}

func builtinGather(interp *Interpreter, args []Value) (Value, *ScriptException) {
	if len(args) != 1 || args[0].Kind != KindArray {
		return Value{}, NewRuntimeException(0, 0, "gather() requires an array of coroutines")
	}
	tasks := make([]*Coroutine, len(args[0].Arr.Elems))
	for i, e := range args[0].Arr.Elems {
		if e.Kind != KindCoroutine {
			return Value{}, NewRuntimeException(0, 0, "gather() requires an array of coroutines")
		}
		tasks[i] = e.Coro
	}
	g := interp.Scheduler.Gather(tasks)
	return NewCoroutine(g), nil
}

func builtinCancel(interp *Interpreter, args []Value) (Value, *ScriptException) {
	if len(args) != 1 || args[0].Kind != KindCoroutine {
		return Value{}, NewRuntimeException(0, 0, "cancel() requires a coroutine")
	}
	interp.Scheduler.Cancel(args[0].Coro)
	return Null(), nil
}

// builtinAppend is the `append` bound method on arrays: self is
// prepended by the call machinery, so args[0] is the receiving array
// and args[1:] are the items to append.
func builtinAppend(interp *Interpreter, args []Value) (Value, *ScriptException) {
	if len(args) < 1 || args[0].Kind != KindArray {
		return Value{}, NewRuntimeException(0, 0, "append() requires an array receiver")
	}
	arr := args[0].Arr
	for _, item := range args[1:] {
		arr.Elems = append(arr.Elems, deepCopy(item))
	}
	return Null(), nil
}
