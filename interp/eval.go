package interp

import (
	"fmt"
	"math"
	"strings"
)

// evalResult is the evaluator's internal return value: the produced
// Value, its freshness flag, the standalone-primary-identifier flag,
// and, only ever set by an unresolved bare identifier that happens
// to name a built-in, a deferred builtin reference postfix uses to
// dispatch a call without ever materializing a Value for the built-in
// itself.
type evalResult struct {
	Value      Value
	Fresh      bool
	Standalone bool
	Builtin    string
}

func val(v Value) evalResult        { return evalResult{Value: v} }
func fresh(v Value) evalResult      { return evalResult{Value: v, Fresh: true} }
func standalone(v Value) evalResult { return evalResult{Value: v, Standalone: true} }

// EvalExpr is the evaluator's single public entry point: it runs the
// full precedence climb starting at `await`, the lowest binding
// level, and bridges a produced exception into the interpreter's
// global exceptionActive flag so the statement executor (package
// lang) can observe it the same way a `raise` statement does.
func (interp *Interpreter) EvalExpr() (Value, bool, *ScriptException) {
	r, exc := interp.evalAwait()
	if exc != nil {
		interp.RaiseException(exc)
		return Value{}, false, exc
	}
	if interp.awaitSuspended {
		return Value{}, false, nil
	}
	return r.Value, r.Fresh, nil
}

func (interp *Interpreter) here() (int, int) {
	t := interp.Lexer.Peek()
	return t.Line, t.Column
}

// evalAwait handles the `await` keyword, the outermost (lowest
// binding) grammar level.
func (interp *Interpreter) evalAwait() (evalResult, *ScriptException) {
	tok := interp.Lexer.Peek()
	if tok.Kind != TokAwaitKw {
		return interp.evalTernary()
	}
	interp.Lexer.Next()
	line, col := tok.Line, tok.Column

	operand, exc := interp.evalTernary()
	if exc != nil {
		return evalResult{}, exc
	}
	if interp.awaitSuspended {
		return evalResult{}, nil
	}

	c := interp.activeCoroutine

	// Resumption: this exact await point already ran once and
	// suspended. The operand above was re-evaluated as a side effect
	// of replaying the statement from its start, but its result is
	// discarded; the coroutine already knows what it was awaiting.
	if c != nil && c.IsResumedFromAwait {
		c.IsResumedFromAwait = false
		if c.ResumedException != nil {
			e := c.ResumedException
			c.ResumedException = nil
			if operand.Fresh {
				freeContents(operand.Value)
			}
			return evalResult{}, e
		}
		v := c.ValueFromAwait
		c.ValueFromAwait = Value{}
		if operand.Fresh {
			freeContents(operand.Value)
		}
		return fresh(v), nil
	}

	if operand.Value.Kind != KindCoroutine {
		return evalResult{}, NewRuntimeException(line, col, "await requires a coroutine, got %s", operand.Value.Kind)
	}
	target := operand.Value.Coro
	if target == c {
		return evalResult{}, NewRuntimeException(line, col, "a coroutine cannot await itself")
	}

	resolved := interp.Scheduler.AwaitOn(c, target)
	if operand.Fresh {
		// AwaitOn either consumed target synchronously (injecting its
		// result into c) or registered a borrowed reference via
		// addWaiter; either way the evalTernary-produced Coroutine
		// Value wrapper itself is no longer needed.
		freeContents(operand.Value)
	}
	if !resolved {
		interp.awaitSuspended = true
		interp.Lexer.SetState(interp.currentStatementStart)
		return evalResult{}, nil
	}

	// Synchronous continuation (target was already Done): AwaitOn
	// populated c's resumption fields directly; consume them exactly
	// like a real resumption would.
	c.IsResumedFromAwait = false
	if c.ResumedException != nil {
		e := c.ResumedException
		c.ResumedException = nil
		return evalResult{}, e
	}
	v := c.ValueFromAwait
	c.ValueFromAwait = Value{}
	return fresh(v), nil
}

func (interp *Interpreter) evalTernary() (evalResult, *ScriptException) {
	cond, exc := interp.evalOr()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	if interp.Lexer.Peek().Kind != TokQuestion {
		return cond, nil
	}
	line, col := interp.here()
	interp.Lexer.Next()
	if cond.Value.Kind != KindBool {
		return evalResult{}, NewRuntimeException(line, col, "ternary condition must be a bool")
	}
	takeTrue := cond.Value.Bool
	if cond.Fresh {
		freeContents(cond.Value)
	}
	tVal, exc := interp.evalTernary()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	if _, err := interp.Lexer.Eat(TokColon); err != nil {
		return evalResult{}, NewRuntimeException(line, col, "expected ':' in ternary expression")
	}
	fVal, exc := interp.evalTernary()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	if takeTrue {
		if fVal.Fresh {
			freeContents(fVal.Value)
		}
		return tVal, nil
	}
	if tVal.Fresh {
		freeContents(tVal.Value)
	}
	return fVal, nil
}

func (interp *Interpreter) evalOr() (evalResult, *ScriptException) {
	left, exc := interp.evalAnd()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for interp.Lexer.Peek().Kind == TokOrKw {
		line, col := interp.here()
		interp.Lexer.Next()
		if left.Value.Kind != KindBool {
			return evalResult{}, NewRuntimeException(line, col, "operand of 'or' must be a bool")
		}
		if left.Value.Bool {
			// Short-circuit: skip the right operand entirely without
			// consuming it from the token stream is unsafe (it must
			// still be parsed), but evalAnd on the RHS is still
			// required to keep the lexer in sync; only its evaluated
			// *value* is discarded.
			_, exc = interp.skipAnd()
			if exc != nil || interp.awaitSuspended {
				return evalResult{}, exc
			}
			continue
		}
		right, exc := interp.evalAnd()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		if right.Value.Kind != KindBool {
			return evalResult{}, NewRuntimeException(line, col, "operand of 'or' must be a bool")
		}
		left = val(NewBool(right.Value.Bool))
		if right.Fresh {
			freeContents(right.Value)
		}
	}
	return left, nil
}

// skipAnd evaluates (and discards) the right-hand side of a
// short-circuited `or`, so the lexer advances past it without the
// caller touching its value. There is no way to skip tokens without
// parsing them in a token-stream-driven evaluator, so the operand is
// still evaluated; only its value is dropped.
func (interp *Interpreter) skipAnd() (evalResult, *ScriptException) {
	r, exc := interp.evalAnd()
	if r.Fresh {
		freeContents(r.Value)
	}
	return r, exc
}

func (interp *Interpreter) evalAnd() (evalResult, *ScriptException) {
	left, exc := interp.evalEquality()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for interp.Lexer.Peek().Kind == TokAndKw {
		line, col := interp.here()
		interp.Lexer.Next()
		if left.Value.Kind != KindBool {
			return evalResult{}, NewRuntimeException(line, col, "operand of 'and' must be a bool")
		}
		if !left.Value.Bool {
			right, exc := interp.evalEquality()
			if right.Fresh {
				freeContents(right.Value)
			}
			if exc != nil || interp.awaitSuspended {
				return evalResult{}, exc
			}
			continue
		}
		right, exc := interp.evalEquality()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		if right.Value.Kind != KindBool {
			return evalResult{}, NewRuntimeException(line, col, "operand of 'and' must be a bool")
		}
		left = val(NewBool(right.Value.Bool))
		if right.Fresh {
			freeContents(right.Value)
		}
	}
	return left, nil
}

func (interp *Interpreter) evalEquality() (evalResult, *ScriptException) {
	left, exc := interp.evalComparison()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for {
		k := interp.Lexer.Peek().Kind
		if k != TokEqEq && k != TokNotEq {
			return left, nil
		}
		interp.Lexer.Next()
		right, exc := interp.evalComparison()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		eq := valueEqual(left.Value, right.Value)
		if k == TokNotEq {
			eq = !eq
		}
		if left.Fresh {
			freeContents(left.Value)
		}
		if right.Fresh {
			freeContents(right.Value)
		}
		left = val(NewBool(eq))
	}
}

func (interp *Interpreter) evalComparison() (evalResult, *ScriptException) {
	left, exc := interp.evalAdditive()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for {
		k := interp.Lexer.Peek().Kind
		if k != TokLt && k != TokGt && k != TokLe && k != TokGe {
			return left, nil
		}
		line, col := interp.here()
		interp.Lexer.Next()
		right, exc := interp.evalAdditive()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		ln, lok := numericValue(left.Value)
		rn, rok := numericValue(right.Value)
		if !lok || !rok {
			return evalResult{}, NewRuntimeException(line, col, "comparison requires numbers or bools")
		}
		var b bool
		switch k {
		case TokLt:
			b = ln < rn
		case TokGt:
			b = ln > rn
		case TokLe:
			b = ln <= rn
		case TokGe:
			b = ln >= rn
		}
		if left.Fresh {
			freeContents(left.Value)
		}
		if right.Fresh {
			freeContents(right.Value)
		}
		left = val(NewBool(b))
	}
}

func (interp *Interpreter) evalAdditive() (evalResult, *ScriptException) {
	left, exc := interp.evalMultiplicative()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for {
		k := interp.Lexer.Peek().Kind
		if k != TokPlus && k != TokMinus {
			return left, nil
		}
		line, col := interp.here()
		interp.Lexer.Next()
		right, exc := interp.evalMultiplicative()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		var out evalResult
		if k == TokPlus {
			out, exc = interp.applyAdd(left, right, line, col)
		} else {
			out, exc = interp.applyArith(left, right, '-', line, col)
		}
		if left.Fresh {
			freeContents(left.Value)
		}
		if right.Fresh {
			freeContents(right.Value)
		}
		if exc != nil {
			return evalResult{}, exc
		}
		left = out
	}
}

func (interp *Interpreter) evalMultiplicative() (evalResult, *ScriptException) {
	left, exc := interp.evalUnary()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for {
		k := interp.Lexer.Peek().Kind
		if k != TokStar && k != TokSlash && k != TokPercent {
			return left, nil
		}
		line, col := interp.here()
		interp.Lexer.Next()
		right, exc := interp.evalUnary()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		var out evalResult
		switch k {
		case TokStar:
			out, exc = interp.applyMul(left, right, line, col)
		case TokSlash:
			out, exc = interp.applyArith(left, right, '/', line, col)
		case TokPercent:
			out, exc = interp.applyArith(left, right, '%', line, col)
		}
		if left.Fresh {
			freeContents(left.Value)
		}
		if right.Fresh {
			freeContents(right.Value)
		}
		if exc != nil {
			return evalResult{}, exc
		}
		left = out
	}
}

// applyAdd implements `+`: numeric promotion, string concatenation
// with non-string stringification, and `op_add` operator overloading
// on objects.
func (interp *Interpreter) applyAdd(left, right evalResult, line, col int) (evalResult, *ScriptException) {
	lv, rv := left.Value, right.Value
	if lv.Kind == KindObject {
		if ov, ok := lv.Obj.ResolveAttr("op_add"); ok && ov.isMethod {
			self := NewObject(lv.Obj)
			bm := NewUserBoundMethod(ov.methodFunc, self, true)
			result, exc := interp.Call(NewBoundMethod(bm), []Value{deepCopy(rv)}, line, col)
			bm.DecRef()
			if exc != nil {
				return evalResult{}, exc
			}
			return fresh(result), nil
		}
	}
	if lv.Kind == KindString || rv.Kind == KindString {
		return fresh(NewString(stringify(lv) + stringify(rv))), nil
	}
	return interp.applyArith(left, right, '+', line, col)
}

func stringify(v Value) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	default:
		return v.Inspect()
	}
}

// applyArith implements the numeric promotion rules for `-`, `/`, `%`
// (and the non-string, non-overloaded `+` path): mixed Int/Float
// yields Float; Int/Int stays Int for `+ - *`; `/` always yields
// Float; `%` requires both operands Int.
func (interp *Interpreter) applyArith(left, right evalResult, op byte, line, col int) (evalResult, *ScriptException) {
	lv, rv := left.Value, right.Value
	ln, lok := numericOnly(lv)
	rn, rok := numericOnly(rv)
	if !lok || !rok {
		return evalResult{}, NewRuntimeException(line, col, "arithmetic requires numbers")
	}
	if op == '%' {
		if lv.Kind != KindInt || rv.Kind != KindInt {
			return evalResult{}, NewRuntimeException(line, col, "%% requires both operands to be Int")
		}
		if rv.Int == 0 {
			return evalResult{}, NewRuntimeException(line, col, "modulo by zero")
		}
		return val(NewInt(lv.Int % rv.Int)), nil
	}
	if op == '/' {
		if rn == 0 {
			return evalResult{}, NewRuntimeException(line, col, "division by zero")
		}
		return val(NewFloat(ln / rn)), nil
	}
	bothInt := lv.Kind == KindInt && rv.Kind == KindInt
	if bothInt {
		switch op {
		case '-':
			return val(NewInt(lv.Int - rv.Int)), nil
		case '+':
			return val(NewInt(lv.Int + rv.Int)), nil
		case '*':
			return val(NewInt(lv.Int * rv.Int)), nil
		}
	}
	switch op {
	case '-':
		return val(NewFloat(ln - rn)), nil
	case '+':
		return val(NewFloat(ln + rn)), nil
	case '*':
		return val(NewFloat(ln * rn)), nil
	}
	return evalResult{}, NewRuntimeException(line, col, "unsupported arithmetic operator")
}

// applyMul handles `*`, including the string-repeat forms `str * int`
// and `int * str`.
func (interp *Interpreter) applyMul(left, right evalResult, line, col int) (evalResult, *ScriptException) {
	lv, rv := left.Value, right.Value
	if lv.Kind == KindString && rv.Kind == KindInt {
		return interp.repeatString(lv.Str, rv.Int, line, col)
	}
	if rv.Kind == KindString && lv.Kind == KindInt {
		return interp.repeatString(rv.Str, lv.Int, line, col)
	}
	return interp.applyArith(left, right, '*', line, col)
}

func (interp *Interpreter) repeatString(s string, n int64, line, col int) (evalResult, *ScriptException) {
	if n < 0 {
		return evalResult{}, NewRuntimeException(line, col, "string repeat count must not be negative")
	}
	return fresh(NewString(strings.Repeat(s, int(n)))), nil
}

func numericOnly(v Value) (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func (interp *Interpreter) evalUnary() (evalResult, *ScriptException) {
	tok := interp.Lexer.Peek()
	if tok.Kind != TokMinus && tok.Kind != TokNotKw {
		return interp.evalPower()
	}
	line, col := tok.Line, tok.Column
	interp.Lexer.Next()
	operand, exc := interp.evalUnary()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	if tok.Kind == TokNotKw {
		if operand.Value.Kind != KindBool {
			return evalResult{}, NewRuntimeException(line, col, "'not' requires a bool operand")
		}
		return val(NewBool(!operand.Value.Bool)), nil
	}
	switch operand.Value.Kind {
	case KindInt:
		return val(NewInt(-operand.Value.Int)), nil
	case KindFloat:
		return val(NewFloat(-operand.Value.Float)), nil
	default:
		return evalResult{}, NewRuntimeException(line, col, "unary '-' requires a number")
	}
}

// evalPower implements right-associative `^`, which always yields
// Float.
func (interp *Interpreter) evalPower() (evalResult, *ScriptException) {
	left, exc := interp.evalPostfix()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	if interp.Lexer.Peek().Kind != TokCaret {
		return left, nil
	}
	line, col := interp.here()
	interp.Lexer.Next()
	right, exc := interp.evalUnary() // right-assoc: binds back at unary's level, not postfix
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	ln, lok := numericOnly(left.Value)
	rn, rok := numericOnly(right.Value)
	if left.Fresh {
		freeContents(left.Value)
	}
	if right.Fresh {
		freeContents(right.Value)
	}
	if !lok || !rok {
		return evalResult{}, NewRuntimeException(line, col, "'^' requires numbers")
	}
	return val(NewFloat(math.Pow(ln, rn))), nil
}

// evalPostfix handles `[idx]`, `.attr`, and `(args)` chains.
func (interp *Interpreter) evalPostfix() (evalResult, *ScriptException) {
	cur, exc := interp.evalPrimary()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	for {
		switch interp.Lexer.Peek().Kind {
		case TokLBracket:
			line, col := interp.here()
			interp.Lexer.Next()
			idx, exc := interp.evalAwait()
			if exc != nil || interp.awaitSuspended {
				return evalResult{}, exc
			}
			if _, err := interp.Lexer.Eat(TokRBracket); err != nil {
				return evalResult{}, NewRuntimeException(line, col, "expected ']'")
			}
			out, exc := interp.indexValue(cur, idx, line, col)
			if cur.Fresh {
				freeContents(cur.Value)
			}
			if idx.Fresh {
				freeContents(idx.Value)
			}
			if exc != nil {
				return evalResult{}, exc
			}
			cur = out
		case TokDot:
			line, col := interp.here()
			interp.Lexer.Next()
			nameTok := interp.Lexer.Peek()
			if nameTok.Kind != TokIdent {
				return evalResult{}, NewRuntimeException(line, col, "expected attribute name after '.'")
			}
			interp.Lexer.Next()
			out, exc := interp.attrValue(cur, nameTok.Literal, line, col)
			if cur.Fresh && !out.Value.sharesHeapWith(cur.Value) {
				freeContents(cur.Value)
			}
			if exc != nil {
				return evalResult{}, exc
			}
			cur = out
		case TokLParen:
			line, col := interp.here()
			interp.Lexer.Next()
			args, exc := interp.evalArgList(TokRParen)
			if exc != nil || interp.awaitSuspended {
				return evalResult{}, exc
			}
			if cur.Builtin != "" {
				b, ok := interp.Builtin(cur.Builtin)
				if !ok {
					return evalResult{}, NewRuntimeException(line, col, "undefined function '%s'", cur.Builtin)
				}
				result, exc := b(interp, args)
				if exc != nil {
					return evalResult{}, exc
				}
				cur = fresh(result)
				continue
			}
			result, exc := interp.Call(cur.Value, args, line, col)
			if cur.Fresh {
				freeContents(cur.Value)
			}
			if exc != nil {
				return evalResult{}, exc
			}
			cur = fresh(result)
		default:
			return cur, nil
		}
	}
}

// sharesHeapWith reports whether v and w are the exact same
// ref-counted or Blueprint allocation, used to skip freeing the
// receiver when an attribute access returns that same allocation.
// Values of differing kinds never share.
func (v Value) sharesHeapWith(w Value) bool {
	if v.Kind != w.Kind {
		return false
	}
	switch v.Kind {
	case KindObject:
		return v.Obj == w.Obj
	case KindBlueprint:
		return v.Bp == w.Bp
	case KindCoroutine:
		return v.Coro == w.Coro
	case KindBoundMethod:
		return v.Bound == w.Bound
	default:
		return false
	}
}

func (interp *Interpreter) evalArgList(closing TokenKind) ([]Value, *ScriptException) {
	var args []Value
	if interp.Lexer.Peek().Kind == closing {
		interp.Lexer.Next()
		return args, nil
	}
	for {
		r, exc := interp.evalAwait()
		if exc != nil || interp.awaitSuspended {
			return nil, exc
		}
		args = append(args, r.Value)
		if interp.Lexer.Peek().Kind == TokComma {
			interp.Lexer.Next()
			continue
		}
		break
	}
	if _, err := interp.Lexer.Eat(closing); err != nil {
		line, col := interp.here()
		return nil, NewRuntimeException(line, col, "expected closing delimiter in argument list")
	}
	return args, nil
}

// indexValue implements `seq[idx]`: integer indexes with one level of
// negative wraparound for arrays/tuples/strings, string keys for
// dicts.
func (interp *Interpreter) indexValue(seq, idx evalResult, line, col int) (evalResult, *ScriptException) {
	switch seq.Value.Kind {
	case KindArray:
		if idx.Value.Kind != KindInt {
			return evalResult{}, NewRuntimeException(line, col, "array index must be an Int")
		}
		elems := seq.Value.Arr.Elems
		i := normalizeIndex(idx.Value.Int, len(elems))
		if i < 0 || i >= len(elems) {
			return evalResult{}, NewRuntimeException(line, col, "array index out of range")
		}
		return fresh(deepCopy(elems[i])), nil
	case KindTuple:
		if idx.Value.Kind != KindInt {
			return evalResult{}, NewRuntimeException(line, col, "tuple index must be an Int")
		}
		elems := seq.Value.Tup.Elems
		i := normalizeIndex(idx.Value.Int, len(elems))
		if i < 0 || i >= len(elems) {
			return evalResult{}, NewRuntimeException(line, col, "tuple index out of range")
		}
		return fresh(deepCopy(elems[i])), nil
	case KindString:
		if idx.Value.Kind != KindInt {
			return evalResult{}, NewRuntimeException(line, col, "string index must be an Int")
		}
		r := []rune(seq.Value.Str)
		i := normalizeIndex(idx.Value.Int, len(r))
		if i < 0 || i >= len(r) {
			return evalResult{}, NewRuntimeException(line, col, "string index out of range")
		}
		return fresh(NewString(string(r[i]))), nil
	case KindDict:
		if idx.Value.Kind != KindString {
			return evalResult{}, NewRuntimeException(line, col, "dict key must be a string")
		}
		v, ok := seq.Value.Dict.TryGet(idx.Value.Str, true)
		if !ok {
			return evalResult{}, NewRuntimeException(line, col, "missing dict key %q", idx.Value.Str)
		}
		return fresh(v), nil
	default:
		return evalResult{}, NewRuntimeException(line, col, "value of type %s is not indexable", seq.Value.Kind)
	}
}

func normalizeIndex(i int64, length int) int {
	if i < 0 {
		i += int64(length)
	}
	return int(i)
}

// attrValue implements `.attr`, including the `.len` fast path, the
// `.blueprint`/`.name` distinguished attributes, dot-on-dict lookup,
// array `.append` binding, and object/super attribute resolution.
func (interp *Interpreter) attrValue(recv evalResult, name string, line, col int) (evalResult, *ScriptException) {
	v := recv.Value
	if name == "len" {
		switch v.Kind {
		case KindArray:
			return val(NewInt(int64(len(v.Arr.Elems)))), nil
		case KindTuple:
			return val(NewInt(int64(len(v.Tup.Elems)))), nil
		case KindString:
			return val(NewInt(int64(len([]rune(v.Str))))), nil
		case KindDict:
			return val(NewInt(int64(v.Dict.Len()))), nil
		}
		// falls through to normal attribute lookup for other kinds
	}

	switch v.Kind {
	case KindDict:
		got, ok := v.Dict.TryGet(name, true)
		if !ok {
			return evalResult{}, NewRuntimeException(line, col, "missing dict key %q", name)
		}
		return fresh(got), nil
	case KindArray:
		if name == "append" {
			bm := NewBuiltinBoundMethod(builtinAppend, v, false)
			return fresh(NewBoundMethod(bm)), nil
		}
		return evalResult{}, NewRuntimeException(line, col, "array has no attribute %q", name)
	case KindBlueprint:
		if name == "name" {
			return fresh(NewString(v.Bp.Name)), nil
		}
		return evalResult{}, NewRuntimeException(line, col, "blueprint has no attribute %q", name)
	case KindObject:
		if name == "blueprint" {
			return val(NewBlueprint(v.Obj.Blueprint)), nil
		}
		rr, ok := v.Obj.ResolveAttr(name)
		if !ok {
			return evalResult{}, NewRuntimeException(line, col, "object has no attribute %q", name)
		}
		if rr.isMethod {
			self := NewObject(v.Obj)
			bm := NewUserBoundMethod(rr.methodFunc, self, true)
			return fresh(NewBoundMethod(bm)), nil
		}
		return fresh(deepCopy(rr.value)), nil
	case KindSuperProxy:
		class, self, ok := interp.CurrentMethodContext()
		if !ok {
			return evalResult{}, WrapSuperError(line, col, ErrSuperOutsideMethod)
		}
		if class.Parent == nil {
			return evalResult{}, WrapSuperError(line, col, ErrNoParent)
		}
		rr, ok := ResolveSuperAttr(class, name)
		if !ok {
			return evalResult{}, NewRuntimeException(line, col, "no such attribute %q on parent class", name)
		}
		if rr.isMethod {
			selfCopy := NewObject(self.Obj)
			bm := NewUserBoundMethod(rr.methodFunc, selfCopy, true)
			return fresh(NewBoundMethod(bm)), nil
		}
		return fresh(deepCopy(rr.value)), nil
	default:
		return evalResult{}, NewRuntimeException(line, col, "value of type %s has no attribute %q", v.Kind, name)
	}
}

// WrapSuperError turns one of the sentinel super-resolution errors
// into a raisable runtime exception at the `super` use site.
func WrapSuperError(line, col int, err error) *ScriptException {
	return NewRuntimeException(line, col, "%s", err.Error())
}

// evalPrimary is the innermost grammar level: literals, identifiers,
// `self`/`super`, parenthesized/tuple expressions, array and dict
// literals.
func (interp *Interpreter) evalPrimary() (evalResult, *ScriptException) {
	tok := interp.Lexer.Peek()
	switch tok.Kind {
	case TokInt:
		interp.Lexer.Next()
		var n int64
		fmt.Sscanf(tok.Literal, "%d", &n)
		return val(NewInt(n)), nil
	case TokFloat:
		interp.Lexer.Next()
		var f float64
		fmt.Sscanf(tok.Literal, "%g", &f)
		return val(NewFloat(f)), nil
	case TokString:
		interp.Lexer.Next()
		return val(NewString(tok.Literal)), nil
	case TokInterpString:
		interp.Lexer.Next()
		s, exc := interp.evalInterpString(tok.Literal, tok.Line, tok.Column)
		if exc != nil {
			return evalResult{}, exc
		}
		return fresh(NewString(s)), nil
	case TokTrue:
		interp.Lexer.Next()
		return val(NewBool(true)), nil
	case TokFalse:
		interp.Lexer.Next()
		return val(NewBool(false)), nil
	case TokNull:
		interp.Lexer.Next()
		return val(Null()), nil
	case TokSelfKw:
		interp.Lexer.Next()
		_, self, ok := interp.CurrentMethodContext()
		if !ok {
			return evalResult{}, NewRuntimeException(tok.Line, tok.Column, "'self' used outside an instance method")
		}
		return standalone(NewObject(self.Obj)), nil
	case TokSuperKw:
		interp.Lexer.Next()
		return val(SuperProxy()), nil
	case TokIdent:
		interp.Lexer.Next()
		if v, ok := interp.activeScope.Get(tok.Literal); ok {
			return standalone(v), nil
		}
		if _, ok := interp.Builtin(tok.Literal); ok {
			return evalResult{Builtin: tok.Literal}, nil
		}
		return evalResult{}, NewRuntimeException(tok.Line, tok.Column, "undefined name %q", tok.Literal)
	case TokLParen:
		interp.Lexer.Next()
		return interp.evalParenOrTuple(tok.Line, tok.Column)
	case TokLBracket:
		interp.Lexer.Next()
		return interp.evalArrayLiteral(tok.Line, tok.Column)
	case TokLBrace:
		interp.Lexer.Next()
		return interp.evalDictLiteral(tok.Line, tok.Column)
	default:
		return evalResult{}, NewRuntimeException(tok.Line, tok.Column, "unexpected token in expression")
	}
}

func (interp *Interpreter) evalParenOrTuple(line, col int) (evalResult, *ScriptException) {
	if interp.Lexer.Peek().Kind == TokRParen {
		interp.Lexer.Next()
		return fresh(NewTuple(nil)), nil
	}
	first, exc := interp.evalAwait()
	if exc != nil || interp.awaitSuspended {
		return evalResult{}, exc
	}
	if interp.Lexer.Peek().Kind != TokComma {
		if _, err := interp.Lexer.Eat(TokRParen); err != nil {
			return evalResult{}, NewRuntimeException(line, col, "expected ')'")
		}
		return first, nil
	}
	elems := []Value{deepCopy(first.Value)}
	if first.Fresh {
		freeContents(first.Value)
	}
	for interp.Lexer.Peek().Kind == TokComma {
		interp.Lexer.Next()
		if interp.Lexer.Peek().Kind == TokRParen {
			break
		}
		e, exc := interp.evalAwait()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		elems = append(elems, deepCopy(e.Value))
		if e.Fresh {
			freeContents(e.Value)
		}
	}
	if _, err := interp.Lexer.Eat(TokRParen); err != nil {
		return evalResult{}, NewRuntimeException(line, col, "expected ')' to close tuple literal")
	}
	return fresh(NewTuple(elems)), nil
}

func (interp *Interpreter) evalArrayLiteral(line, col int) (evalResult, *ScriptException) {
	var elems []Value
	if interp.Lexer.Peek().Kind == TokRBracket {
		interp.Lexer.Next()
		return fresh(NewArray(elems)), nil
	}
	for {
		e, exc := interp.evalAwait()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		elems = append(elems, deepCopy(e.Value))
		if e.Fresh {
			freeContents(e.Value)
		}
		if interp.Lexer.Peek().Kind == TokComma {
			interp.Lexer.Next()
			continue
		}
		break
	}
	if _, err := interp.Lexer.Eat(TokRBracket); err != nil {
		return evalResult{}, NewRuntimeException(line, col, "expected ']' to close array literal")
	}
	return fresh(NewArray(elems)), nil
}

func (interp *Interpreter) evalDictLiteral(line, col int) (evalResult, *ScriptException) {
	d := NewDictionary()
	if interp.Lexer.Peek().Kind == TokRBrace {
		interp.Lexer.Next()
		return fresh(NewDict(d)), nil
	}
	for {
		keyTok := interp.Lexer.Peek()
		if keyTok.Kind != TokString {
			return evalResult{}, NewRuntimeException(line, col, "dict literal keys must be strings")
		}
		interp.Lexer.Next()
		if _, err := interp.Lexer.Eat(TokColon); err != nil {
			return evalResult{}, NewRuntimeException(line, col, "expected ':' in dict literal")
		}
		v, exc := interp.evalAwait()
		if exc != nil || interp.awaitSuspended {
			return evalResult{}, exc
		}
		d.Set(keyTok.Literal, v.Value)
		if v.Fresh {
			freeContents(v.Value)
		}
		if interp.Lexer.Peek().Kind == TokComma {
			interp.Lexer.Next()
			continue
		}
		break
	}
	if _, err := interp.Lexer.Eat(TokRBrace); err != nil {
		return evalResult{}, NewRuntimeException(line, col, "expected '}' to close dict literal")
	}
	return fresh(NewDict(d)), nil
}

// evalInterpString parses and evaluates `${expr}` splices inside an
// interpolated string literal's raw source text. Splices are re-lexed
// through a fresh scanner obtained from the interpreter's lexer
// factory rather than sharing the outer token stream.
func (interp *Interpreter) evalInterpString(raw string, line, col int) (string, *ScriptException) {
	var out strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			end := strings.IndexByte(raw[i+2:], '}')
			if end < 0 {
				return "", NewRuntimeException(line, col, "unterminated ${} splice in interpolated string")
			}
			exprSrc := raw[i+2 : i+2+end]
			v, exc := interp.evalSplice(exprSrc, line, col)
			if exc != nil {
				return "", exc
			}
			out.WriteString(stringify(v))
			i = i + 2 + end + 1
			continue
		}
		out.WriteByte(raw[i])
		i++
	}
	return out.String(), nil
}

// evalSplice evaluates one `${...}` substring using a throwaway
// lexer over just that substring, swapping it in for the duration of
// the splice and restoring the outer lexer afterward.
func (interp *Interpreter) evalSplice(src string, line, col int) (Value, *ScriptException) {
	if interp.NewScanner == nil {
		return Value{}, NewRuntimeException(line, col, "string interpolation unavailable: no scanner factory configured")
	}
	outer := interp.Lexer
	interp.Lexer = interp.NewScanner(src)
	r, exc := interp.evalAwait()
	interp.Lexer = outer
	if exc != nil {
		return Value{}, exc
	}
	return r.Value, nil
}
