package interp

// Call is the single dispatch point for applying arguments to a
// callable: it routes to a user Function, a BoundMethod (user or
// built-in), or a Blueprint instantiation based on the target's Kind.
// Postfix `(args)` application of a callable value and `op_add`
// operator overloading funnel through here; built-ins called by name
// are dispatched directly by the evaluator.
func (interp *Interpreter) Call(target Value, args []Value, line, col int) (Value, *ScriptException) {
	switch target.Kind {
	case KindFunction:
		return interp.callFunction(target.Fn, args, Value{}, false, line, col)
	case KindBoundMethod:
		return interp.callBoundMethod(target.Bound, args, line, col)
	case KindBlueprint:
		return interp.instantiate(target.Bp, args, line, col)
	default:
		return Value{}, NewRuntimeException(line, col, "value of type %s is not callable", target.Kind)
	}
}

// callBoundMethod dispatches a bound method: built-ins get self
// prepended to the argument vector, user methods get self injected
// into the call scope as a direct binding.
func (interp *Interpreter) callBoundMethod(b *BoundMethod, args []Value, line, col int) (Value, *ScriptException) {
	if b.Builtin != nil {
		full := make([]Value, 0, len(args)+1)
		full = append(full, b.Self)
		full = append(full, args...)
		return b.Builtin(interp, full)
	}
	return interp.callFunction(b.Fn, args, b.Self, true, line, col)
}

// checkArity validates len(args) against the declared parameters,
// excluding the implicit `self` parameter when hasSelf is true: the
// caller-visible arity never counts self. A leading parameter named
// `self` is skipped; a method declared without one binds self
// implicitly and all of its declared parameters are caller-visible.
func checkArity(fn *Function, args []Value, hasSelf bool, line, col int) ([]Param, *ScriptException) {
	params := fn.Params
	if hasSelf && len(params) > 0 && params[0].Name == "self" {
		params = params[1:]
	}
	required := 0
	for _, p := range params {
		if !p.HasDefault {
			required++
		}
	}
	if len(args) < required || len(args) > len(params) {
		return nil, NewRuntimeException(line, col,
			"%q expects between %d and %d arguments, got %d", fn.Name, required, len(params), len(args))
	}
	return params, nil
}

// bindParams installs positional args into scope, filling any
// remaining parameters from their default values.
func bindParams(scope *Scope, params []Param, args []Value) {
	for i, p := range params {
		if i < len(args) {
			scope.Set(p.Name, args[i])
		} else {
			scope.Set(p.Name, p.Default)
		}
	}
}

// callFunction applies args to fn. A synchronous function runs to
// completion here; an async function never executes: it is packaged
// into a New coroutine carrying the argument-populated scope, and the
// coroutine value is returned to the caller immediately. hasSelf
// selects the method form, identical to the plain form except self is
// injected as a direct binding and a leading `self` formal parameter,
// if declared, is skipped.
func (interp *Interpreter) callFunction(fn *Function, args []Value, self Value, hasSelf bool, line, col int) (Value, *ScriptException) {
	params, exc := checkArity(fn, args, hasSelf, line, col)
	if exc != nil {
		return Value{}, exc
	}

	execScope := NewScope(fn.DefScope)
	if hasSelf {
		execScope.SetSelf("self", self)
	}
	bindParams(execScope, params, args)

	if fn.IsAsync {
		coro := NewCoroutineFrame(fn.Name, fn, execScope, fn.BodyStart)
		if hasSelf {
			coro.MethodClass = fn.DefiningClass
			coro.MethodSelf = self
			coro.HasMethodSelf = true
		}
		return NewCoroutine(coro), nil
	}

	return interp.runFunctionBody(fn, execScope, hasSelf, fn.DefiningClass, self, line, col)
}

// runFunctionBody drives the external statement executor over fn's
// saved body bracket, snapshotting and restoring the interpreter's
// active scope and lexer position across the call. The returned value
// is owned by the caller.
func (interp *Interpreter) runFunctionBody(fn *Function, execScope *Scope, hasSelf bool, class *Blueprint, self Value, line, col int) (Value, *ScriptException) {
	savedScope := interp.activeScope
	savedLexer := interp.Lexer.GetState()

	if hasSelf {
		interp.PushMethodContext(class, self)
	}
	interp.activeScope = execScope
	interp.Lexer.SetState(fn.BodyStart)

	result := Null()
	var exc *ScriptException
loop:
	for {
		status := interp.statementExecutor(interp)
		switch status {
		case StatusReturn:
			result = interp.lastExprValue
			break loop
		case StatusException:
			exc = interp.ClearException()
			break loop
		case StatusBreak, StatusContinue:
			exc = NewRuntimeException(line, col, "break/continue escaped a function body")
			break loop
		case StatusYieldedAwait:
			exc = NewRuntimeException(line, col, "await used outside an async function")
			break loop
		}
		if k := interp.Lexer.Peek().Kind; k == TokEOF || k == TokRBrace {
			break loop
		}
	}

	if hasSelf {
		interp.PopMethodContext()
	}
	execScope.Free()
	interp.activeScope = savedScope
	interp.Lexer.SetState(savedLexer)

	if exc != nil {
		return Value{}, exc
	}
	return result, nil
}

// instantiate allocates an isolated Object for bp, invokes its
// resolved init (if any) with the object as self, and discards init's
// return value. A Blueprint with no init rejects any constructor
// arguments, and init may not be declared async.
func (interp *Interpreter) instantiate(bp *Blueprint, args []Value, line, col int) (Value, *ScriptException) {
	obj := NewObjectInstance(bp)
	selfView := Value{Kind: KindObject, Obj: obj}

	initFn, ok := bp.resolveInitChain()
	if !ok {
		if len(args) > 0 {
			obj.DecRef()
			return Value{}, NewRuntimeException(line, col, "blueprint %q has no init but arguments were given", bp.Name)
		}
		return selfView, nil
	}
	if initFn.IsAsync {
		obj.DecRef()
		return Value{}, NewRuntimeException(line, col, "init must not be declared async")
	}

	ret, exc := interp.callFunction(initFn, args, selfView, true, line, col)
	if exc != nil {
		obj.DecRef()
		return Value{}, exc
	}
	freeContents(ret)
	return selfView, nil
}
