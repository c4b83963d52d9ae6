package lang

import (
	"path/filepath"

	"github.com/scriptlang/scriptlang/interp"
)

// NewInterpreter builds an Interpreter fully wired with this
// package's lexer, statement dispatcher, and module loader.
// sourcePath is used only to resolve relative `import`s against the
// script's own directory.
func NewInterpreter(opts interp.Options, sourcePath string) *interp.Interpreter {
	ip := interp.New(opts)
	ip.SetStatementExecutor(RunStatement)
	ip.NewScanner = func(src string) interp.LexerControl {
		return NewLexer(src)
	}
	ip.Loader = NewSimpleLoader(ip, filepath.Dir(sourcePath))
	return ip
}

// Run parses and executes src as a complete top-level program,
// draining the scheduler to completion. It returns the unhandled
// exception, if any escaped every catch.
func Run(ip *interp.Interpreter, src string) *interp.ScriptException {
	ip.Lexer = NewLexer(src)
	ip.SetActiveScope(ip.Universe)
	return ip.Run(ip.Universe, ip.Lexer.GetState())
}
