package lang

import (
	"github.com/scriptlang/scriptlang/interp"
)

// captureBody consumes `{`, records the position right after it as
// start, then scans forward (without executing anything) tracking
// brace depth to find the matching `}`; end is the state positioned
// at that closing brace, and it is also consumed before returning, so
// the lexer ends up just past the whole declaration.
func captureBody(ip *interp.Interpreter) (start, end interp.LexerState, ok bool) {
	if _, err := ip.Lexer.Eat(interp.TokLBrace); err != nil {
		raiseParseError(ip, err)
		return start, end, false
	}
	start = ip.Lexer.GetState()
	depth := 1
	for depth > 0 {
		t := ip.Lexer.Peek()
		if t.Kind == interp.TokEOF {
			ip.RaiseException(interp.NewRuntimeException(t.Line, t.Column, "unterminated block: missing '}'"))
			return start, end, false
		}
		if t.Kind == interp.TokLBrace {
			depth++
		} else if t.Kind == interp.TokRBrace {
			depth--
			if depth == 0 {
				end = ip.Lexer.GetState()
				break
			}
		}
		ip.Lexer.Next()
	}
	ip.Lexer.Next() // consume the matching '}'
	return start, end, true
}

// parseParamList parses `(name1, name2 = defaultExpr, ...)`. Default
// expressions are evaluated immediately, at declaration time, since
// Param.Default stores a pre-evaluated Value fixed at definition.
func parseParamList(ip *interp.Interpreter) ([]interp.Param, bool) {
	if _, err := ip.Lexer.Eat(interp.TokLParen); err != nil {
		raiseParseError(ip, err)
		return nil, false
	}
	var params []interp.Param
	for ip.Lexer.Peek().Kind != interp.TokRParen {
		nameTok, err := ip.Lexer.Eat(interp.TokIdent)
		if err != nil {
			raiseParseError(ip, err)
			return nil, false
		}
		p := interp.Param{Name: nameTok.Literal}
		if ip.Lexer.Peek().Kind == interp.TokAssign {
			ip.Lexer.Next()
			v, isFresh, exc := ip.EvalExpr()
			if exc != nil {
				return nil, false
			}
			p.HasDefault = true
			p.Default = v
			_ = isFresh // default values are owned by the Param, never released
		}
		params = append(params, p)
		if ip.Lexer.Peek().Kind == interp.TokComma {
			ip.Lexer.Next()
		}
	}
	ip.Lexer.Next() // ')'
	return params, true
}

// declareFunction parses `[async] funct name(params) { body }` (or,
// for a method, an identical shape without the leading keyword
// already consumed by the caller) and binds the resulting Function
// into targetScope. definingClass is non-nil when parsing a
// blueprint's method body.
func declareFunction(ip *interp.Interpreter, targetScope *interp.Scope, definingClass *interp.Blueprint) interp.StatusFlag {
	isAsync := false
	if ip.Lexer.Peek().Kind == interp.TokAsync {
		isAsync = true
		ip.Lexer.Next()
	}
	if _, err := ip.Lexer.Eat(interp.TokFunct); err != nil {
		return raiseParseError(ip, err)
	}
	nameTok, err := ip.Lexer.Eat(interp.TokIdent)
	if err != nil {
		return raiseParseError(ip, err)
	}
	params, ok := parseParamList(ip)
	if !ok {
		return interp.StatusException
	}

	start, end, ok := captureBody(ip)
	if !ok {
		return interp.StatusException
	}

	fn := &interp.Function{
		Name:          nameTok.Literal,
		Params:        params,
		IsAsync:       isAsync,
		IsMethod:      definingClass != nil,
		DefiningClass: definingClass,
		DefScope:      ip.ActiveScope(),
		IsSourceOwner: true,
		BodyStart:     start,
		BodyEnd:       end,
	}
	targetScope.Set(nameTok.Literal, interp.NewFunction(fn))
	return interp.StatusOK
}

func runFunctDecl(ip *interp.Interpreter, definingClass *interp.Blueprint) interp.StatusFlag {
	return declareFunction(ip, ip.ActiveScope(), definingClass)
}

// runBlueprintDecl parses `blueprint Name [inherits Parent] { method*
// }`: every declaration inside the body is a method, installed into
// the blueprint's class scope with DefiningClass set.
func runBlueprintDecl(ip *interp.Interpreter) interp.StatusFlag {
	ip.Lexer.Next() // 'blueprint'
	nameTok, err := ip.Lexer.Eat(interp.TokIdent)
	if err != nil {
		return raiseParseError(ip, err)
	}

	var parent *interp.Blueprint
	if ip.Lexer.Peek().Kind == interp.TokInherits {
		ip.Lexer.Next()
		parentTok, err := ip.Lexer.Eat(interp.TokIdent)
		if err != nil {
			return raiseParseError(ip, err)
		}
		pv, ok := ip.ActiveScope().Get(parentTok.Literal)
		if !ok || pv.Kind != interp.KindBlueprint {
			ip.RaiseException(interp.NewRuntimeException(parentTok.Line, parentTok.Column, "%q is not a blueprint", parentTok.Literal))
			return interp.StatusException
		}
		parent = pv.Bp
	}

	bp := interp.NewBlueprintDef(nameTok.Literal, parent)

	if _, err := ip.Lexer.Eat(interp.TokLBrace); err != nil {
		return raiseParseError(ip, err)
	}
	for {
		skipSeparators(ip)
		k := ip.Lexer.Peek().Kind
		if k == interp.TokRBrace || k == interp.TokEOF {
			break
		}
		if k != interp.TokFunct && k != interp.TokAsync {
			t := ip.Lexer.Peek()
			ip.RaiseException(interp.NewRuntimeException(t.Line, t.Column, "blueprint body may only contain method declarations"))
			return interp.StatusException
		}
		if status := declareFunction(ip, bp.Class, bp); status != interp.StatusOK {
			return status
		}
	}
	if _, err := ip.Lexer.Eat(interp.TokRBrace); err != nil {
		return raiseParseError(ip, err)
	}

	ip.RegisterBlueprint(bp)
	ip.ActiveScope().Set(nameTok.Literal, interp.NewBlueprint(bp))
	return interp.StatusOK
}
