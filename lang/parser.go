package lang

import (
	"fmt"

	"github.com/scriptlang/scriptlang/interp"
)

// fmtPrintln implements `show`'s output side, writing to the
// interpreter's configured stdout rather than the real os.Stdout so
// tests can capture it.
func fmtPrintln(ip *interp.Interpreter, s string) {
	fmt.Fprintln(ip.Stdout(), s)
}

// RunStatement is the statement-executor callback handed to the
// engine: it parses and executes exactly one statement starting at
// the interpreter's current lexer position, then returns. The call
// machinery and the scheduler both drive a function/coroutine body by
// invoking this repeatedly until it signals something other than
// StatusOK or the body's closing brace is reached.
func RunStatement(ip *interp.Interpreter) interp.StatusFlag {
	skipSeparators(ip)

	start := ip.Lexer.GetState()
	ip.SetCurrentStatementStart(start)

	tok := ip.Lexer.Peek()
	switch tok.Kind {
	case interp.TokEOF, interp.TokRBrace:
		return interp.StatusOK
	case interp.TokLet:
		return runLet(ip)
	case interp.TokShow:
		return runShow(ip)
	case interp.TokIf:
		return runIf(ip)
	case interp.TokWhile:
		return runWhile(ip)
	case interp.TokFor:
		return runFor(ip)
	case interp.TokFunct, interp.TokAsync:
		return runFunctDecl(ip, nil)
	case interp.TokBlueprintKw:
		return runBlueprintDecl(ip)
	case interp.TokTry:
		return runTry(ip)
	case interp.TokReturn:
		return runReturn(ip)
	case interp.TokBreak:
		ip.Lexer.Next()
		return interp.StatusBreak
	case interp.TokContinue:
		ip.Lexer.Next()
		return interp.StatusContinue
	case interp.TokRaise:
		return runRaise(ip)
	case interp.TokImport:
		return runImport(ip)
	default:
		return runExprOrAssign(ip)
	}
}

// skipSeparators consumes leading newlines and semicolons, the
// statement-level equivalent of whitespace between tokens. A bare `:`
// at statement-start position is accepted as a third separator form
// (source sometimes chains statements on one line as `let x = 1:
// show: x`); it never collides with ternary or dict-literal colons
// since those are always consumed inside expression evaluation before
// control returns here.
func skipSeparators(ip *interp.Interpreter) {
	for {
		k := ip.Lexer.Peek().Kind
		if k == interp.TokNewline || k == interp.TokSemicolon || k == interp.TokColon {
			ip.Lexer.Next()
			continue
		}
		return
	}
}

// runBlock executes `{ stmt... }` at the current position, running
// RunStatement repeatedly until the matching `}` (consumed here) or a
// propagating status (return/break/continue/exception/yielded-await)
// is hit.
func runBlock(ip *interp.Interpreter) interp.StatusFlag {
	if _, err := ip.Lexer.Eat(interp.TokLBrace); err != nil {
		return raiseParseError(ip, err)
	}
	for {
		skipSeparators(ip)
		if k := ip.Lexer.Peek().Kind; k == interp.TokRBrace || k == interp.TokEOF {
			break
		}
		status := RunStatement(ip)
		if status != interp.StatusOK {
			return status
		}
	}
	if _, err := ip.Lexer.Eat(interp.TokRBrace); err != nil {
		return raiseParseError(ip, err)
	}
	return interp.StatusOK
}

// skipBlock advances past a `{ ... }` region, tracking brace depth,
// without executing any of its statements (used for the untaken
// branch of an if/else chain).
func skipBlock(ip *interp.Interpreter) {
	if ip.Lexer.Peek().Kind != interp.TokLBrace {
		return
	}
	ip.Lexer.Next()
	depth := 1
	for depth > 0 {
		t := ip.Lexer.Next()
		switch t.Kind {
		case interp.TokLBrace:
			depth++
		case interp.TokRBrace:
			depth--
		case interp.TokEOF:
			return
		}
	}
}

// skipExprUntilBrace advances past a condition's tokens without
// evaluating them, stopping at the `{` that opens the following body
// (used for untaken `else if` arms and for repositioning after a
// `break`). Brace depth inside the condition itself is not tracked; a
// condition can only be a bool expression, and dict literals have no
// bool value, so a bare `{` before the body brace cannot occur in a
// valid program.
func skipExprUntilBrace(ip *interp.Interpreter) {
	depth := 0
	for {
		t := ip.Lexer.Peek()
		switch t.Kind {
		case interp.TokLParen, interp.TokLBracket:
			depth++
		case interp.TokRParen, interp.TokRBracket:
			depth--
		case interp.TokLBrace:
			if depth == 0 {
				return
			}
		case interp.TokEOF:
			return
		}
		ip.Lexer.Next()
	}
}

func raiseParseError(ip *interp.Interpreter, err error) interp.StatusFlag {
	t := ip.Lexer.Peek()
	ip.RaiseException(interp.NewRuntimeException(t.Line, t.Column, "%s", err.Error()))
	return interp.StatusException
}

func runLet(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'let'
	nameTok, err := ip.Lexer.Eat(interp.TokIdent)
	if err != nil {
		return raiseParseError(ip, err)
	}
	if _, err := ip.Lexer.Eat(interp.TokAssign); err != nil {
		return raiseParseError(ip, err)
	}
	v, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	ip.ActiveScope().Set(nameTok.Literal, v)
	interp.ReleaseIfFresh(v, isFresh)
	return interp.StatusOK
}

func runShow(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'show'
	if _, err := ip.Lexer.Eat(interp.TokColon); err != nil {
		return raiseParseError(ip, err)
	}
	v, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	fmtPrintln(ip, v.Inspect())
	interp.ReleaseIfFresh(v, isFresh)
	return interp.StatusOK
}

func runReturn(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'return'
	k := ip.Lexer.Peek().Kind
	if k == interp.TokNewline || k == interp.TokSemicolon || k == interp.TokRBrace || k == interp.TokEOF {
		ip.SetLastExprValue(interp.Null())
		return interp.StatusReturn
	}
	v, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	ip.SetLastExprValue(v)
	interp.ReleaseIfFresh(v, isFresh)
	return interp.StatusReturn
}

func runRaise(ip *interp.Interpreter) interp.StatusFlag {
	tok := ip.Lexer.Next() // 'raise'
	// The exception takes ownership of the raised value, fresh or
	// not; it is released only when the exception itself is dropped.
	v, _, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	raised := interp.NewRuntimeException(tok.Line, tok.Column, "%s", v.Inspect())
	raised.Value = v
	raised.Kind = interp.ExceptionUser
	ip.RaiseException(raised)
	return interp.StatusException
}

func runIf(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'if'
	cond, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	if cond.Kind != interp.KindBool {
		ip.RaiseException(interp.NewRuntimeException(0, 0, "if condition must be a bool"))
		return interp.StatusException
	}
	take := cond.Bool
	interp.ReleaseIfFresh(cond, isFresh)

	if take {
		status := runBlock(ip)
		if status != interp.StatusOK {
			return status
		}
		skipElseChain(ip)
		return interp.StatusOK
	}
	skipBlock(ip)
	return runElseChain(ip)
}

func runElseChain(ip *interp.Interpreter) interp.StatusFlag {
	skipSeparators(ip)
	if ip.Lexer.Peek().Kind != interp.TokElse {
		return interp.StatusOK
	}
	ip.Lexer.Next() // 'else'
	if ip.Lexer.Peek().Kind == interp.TokIf {
		return runIf(ip)
	}
	return runBlock(ip)
}

func skipElseChain(ip *interp.Interpreter) {
	skipSeparators(ip)
	if ip.Lexer.Peek().Kind != interp.TokElse {
		return
	}
	ip.Lexer.Next() // 'else'
	if ip.Lexer.Peek().Kind == interp.TokIf {
		ip.Lexer.Next() // 'if'
		skipExprUntilBrace(ip)
		skipBlock(ip)
		skipElseChain(ip)
		return
	}
	skipBlock(ip)
}

func runWhile(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'while'
	condStart := ip.Lexer.GetState()
	for {
		ip.Lexer.SetState(condStart)
		cond, isFresh, exc := ip.EvalExpr()
		if exc != nil {
			return interp.StatusException
		}
		if ip.AwaitSuspended() {
			return interp.StatusYieldedAwait
		}
		if cond.Kind != interp.KindBool {
			ip.RaiseException(interp.NewRuntimeException(0, 0, "while condition must be a bool"))
			return interp.StatusException
		}
		run := cond.Bool
		interp.ReleaseIfFresh(cond, isFresh)
		if !run {
			skipBlock(ip)
			return interp.StatusOK
		}
		status := runBlock(ip)
		switch status {
		case interp.StatusOK, interp.StatusContinue:
			continue
		case interp.StatusBreak:
			// A break leaves runBlock mid-body; seek back to the
			// condition and skip past it and the body so the lexer
			// ends up after the loop, the same place a normal exit
			// leaves it.
			ip.Lexer.SetState(condStart)
			skipExprUntilBrace(ip)
			skipBlock(ip)
			return interp.StatusOK
		default:
			return status
		}
	}
}

func runFor(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'for'
	nameTok, err := ip.Lexer.Eat(interp.TokIdent)
	if err != nil {
		return raiseParseError(ip, err)
	}
	if _, err := ip.Lexer.Eat(interp.TokIn); err != nil {
		return raiseParseError(ip, err)
	}
	seq, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	items, derr := iterableItems(seq)
	if derr != nil {
		interp.ReleaseIfFresh(seq, isFresh)
		ip.RaiseException(derr)
		return interp.StatusException
	}
	bodyStart := ip.Lexer.GetState()
	for _, item := range items {
		ip.Lexer.SetState(bodyStart)
		ip.ActiveScope().Set(nameTok.Literal, item)
		status := runBlock(ip)
		switch status {
		case interp.StatusOK, interp.StatusContinue:
			continue
		case interp.StatusBreak:
			// A break leaves runBlock mid-body; rewind to the body's
			// opening brace and skip the whole block so the lexer ends
			// up after the loop.
			ip.Lexer.SetState(bodyStart)
			skipBlock(ip)
			interp.ReleaseIfFresh(seq, isFresh)
			return interp.StatusOK
		default:
			interp.ReleaseIfFresh(seq, isFresh)
			return status
		}
	}
	ip.Lexer.SetState(bodyStart)
	skipBlock(ip)
	interp.ReleaseIfFresh(seq, isFresh)
	return interp.StatusOK
}

// iterableItems enumerates the elements of a `for ident in seq`
// target: arrays/tuples by element, dicts by key (as strings),
// strings by one-character substrings.
func iterableItems(seq interp.Value) ([]interp.Value, *interp.ScriptException) {
	switch seq.Kind {
	case interp.KindArray:
		return append([]interp.Value(nil), seq.Arr.Elems...), nil
	case interp.KindTuple:
		return append([]interp.Value(nil), seq.Tup.Elems...), nil
	case interp.KindDict:
		keys := seq.Dict.Keys()
		out := make([]interp.Value, len(keys))
		for i, k := range keys {
			out[i] = interp.NewString(k)
		}
		return out, nil
	case interp.KindString:
		runes := []rune(seq.Str)
		out := make([]interp.Value, len(runes))
		for i, r := range runes {
			out[i] = interp.NewString(string(r))
		}
		return out, nil
	default:
		return nil, interp.NewRuntimeException(0, 0, "value of type %s is not iterable", seq.Kind)
	}
}

func runTry(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'try'
	tryStart := ip.Lexer.GetState()
	status := runBlock(ip)
	if status == interp.StatusYieldedAwait {
		return status
	}
	if status != interp.StatusOK {
		// runBlock stopped mid-body; skip the rest of the try block so
		// the catch/finally clauses after it are reached.
		ip.Lexer.SetState(tryStart)
		skipBlock(ip)
	}

	var caught *interp.ScriptException
	if status == interp.StatusException {
		caught = ip.ClearException()
	}

	skipSeparators(ip)
	if ip.Lexer.Peek().Kind == interp.TokCatch {
		ip.Lexer.Next()
		var bindName string
		if ip.Lexer.Peek().Kind == interp.TokLParen {
			ip.Lexer.Next()
			if nameTok, err := ip.Lexer.Eat(interp.TokIdent); err == nil {
				bindName = nameTok.Literal
			}
			ip.Lexer.Eat(interp.TokRParen)
		}
		if caught != nil {
			if bindName != "" {
				ip.ActiveScope().Set(bindName, caught.Value)
			}
			catchStart := ip.Lexer.GetState()
			status = runBlock(ip)
			if status == interp.StatusYieldedAwait {
				return status
			}
			caught = nil
			if status == interp.StatusException {
				caught = ip.ClearException()
			}
			if status != interp.StatusOK {
				ip.Lexer.SetState(catchStart)
				skipBlock(ip)
			}
		} else {
			skipBlock(ip)
		}
	}

	skipSeparators(ip)
	if ip.Lexer.Peek().Kind == interp.TokFinally {
		ip.Lexer.Next()
		finallyStatus := runBlock(ip)
		if finallyStatus != interp.StatusOK {
			// finally's own outcome (including a re-raise) wins over
			// whatever try/catch produced.
			return finallyStatus
		}
	}

	if caught != nil {
		ip.RaiseException(caught)
		return interp.StatusException
	}
	if status == interp.StatusException {
		return interp.StatusOK
	}
	return status
}

// runExprOrAssign handles the lvalue forms an identifier- or
// self-led statement may take, `name = expr`, `base[idx] = expr`, and
// `base.attr = expr` where base is a variable name or `self`, falling
// back to evaluating (and discarding) a plain expression statement
// otherwise. Deeper lvalue chains (`a.b.c = x`) are not supported.
func runExprOrAssign(ip *interp.Interpreter) interp.StatusFlag {
	saved := ip.Lexer.GetState()
	startTok := ip.Lexer.Peek()

	if startTok.Kind == interp.TokIdent || startTok.Kind == interp.TokSelfKw {
		ip.Lexer.Next()

		switch ip.Lexer.Peek().Kind {
		case interp.TokAssign:
			if startTok.Kind == interp.TokSelfKw {
				// `self = ...` is not an assignable target; let the
				// evaluator report it.
				ip.Lexer.SetState(saved)
				break
			}
			ip.Lexer.Next()
			return finishSimpleAssign(ip, startTok.Literal, startTok.Line, startTok.Column)

		case interp.TokLBracket:
			ip.Lexer.Next()
			idx, idxFresh, exc := ip.EvalExpr()
			if exc != nil {
				return interp.StatusException
			}
			if ip.AwaitSuspended() {
				return interp.StatusYieldedAwait
			}
			if _, err := ip.Lexer.Eat(interp.TokRBracket); err != nil {
				return raiseParseError(ip, err)
			}
			if ip.Lexer.Peek().Kind != interp.TokAssign {
				interp.ReleaseIfFresh(idx, idxFresh)
				ip.Lexer.SetState(saved)
				break
			}
			ip.Lexer.Next()
			base, bexc := assignBase(ip, startTok)
			if bexc != nil {
				ip.RaiseException(bexc)
				return interp.StatusException
			}
			rhs, rhsFresh, exc := ip.EvalExpr()
			if exc != nil {
				return interp.StatusException
			}
			if ip.AwaitSuspended() {
				return interp.StatusYieldedAwait
			}
			if aexc := ip.AssignIndexed(base, idx, rhs, startTok.Line, startTok.Column); aexc != nil {
				ip.RaiseException(aexc)
				return interp.StatusException
			}
			interp.ReleaseIfFresh(idx, idxFresh)
			interp.ReleaseIfFresh(rhs, rhsFresh)
			return interp.StatusOK

		case interp.TokDot:
			ip.Lexer.Next()
			attrTok, err := ip.Lexer.Eat(interp.TokIdent)
			if err != nil {
				return raiseParseError(ip, err)
			}
			if ip.Lexer.Peek().Kind != interp.TokAssign {
				ip.Lexer.SetState(saved)
				break
			}
			ip.Lexer.Next()
			base, bexc := assignBase(ip, startTok)
			if bexc != nil {
				ip.RaiseException(bexc)
				return interp.StatusException
			}
			rhs, rhsFresh, exc := ip.EvalExpr()
			if exc != nil {
				return interp.StatusException
			}
			if ip.AwaitSuspended() {
				return interp.StatusYieldedAwait
			}
			if aexc := ip.AssignAttr(base, attrTok.Literal, rhs, startTok.Line, startTok.Column); aexc != nil {
				ip.RaiseException(aexc)
				return interp.StatusException
			}
			interp.ReleaseIfFresh(rhs, rhsFresh)
			return interp.StatusOK

		default:
			ip.Lexer.SetState(saved)
		}
	}

	v, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	interp.ReleaseIfFresh(v, isFresh)
	return interp.StatusOK
}

// assignBase resolves the receiver of an indexed/attribute
// assignment: a named variable from the active scope, or the
// enclosing method's receiver when the target starts with `self`.
func assignBase(ip *interp.Interpreter, tok interp.Token) (interp.Value, *interp.ScriptException) {
	if tok.Kind == interp.TokSelfKw {
		_, self, ok := ip.CurrentMethodContext()
		if !ok {
			return interp.Value{}, interp.NewRuntimeException(tok.Line, tok.Column, "'self' used outside an instance method")
		}
		return self, nil
	}
	v, ok := ip.ActiveScope().Get(tok.Literal)
	if !ok {
		return interp.Value{}, interp.NewRuntimeException(tok.Line, tok.Column, "undefined variable %q", tok.Literal)
	}
	return v, nil
}

func finishSimpleAssign(ip *interp.Interpreter, name string, line, col int) interp.StatusFlag {
	rhs, isFresh, exc := ip.EvalExpr()
	if exc != nil {
		return interp.StatusException
	}
	if ip.AwaitSuspended() {
		return interp.StatusYieldedAwait
	}
	if !ip.ActiveScope().Assign(name, rhs) {
		interp.ReleaseIfFresh(rhs, isFresh)
		ip.RaiseException(interp.NewRuntimeException(line, col, "undefined variable %q", name))
		return interp.StatusException
	}
	interp.ReleaseIfFresh(rhs, isFresh)
	return interp.StatusOK
}
