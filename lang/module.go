package lang

import (
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/scriptlang/scriptlang/interp"
)

// SimpleLoader implements interp.ModuleLoader by resolving a module
// name against a base directory and executing the target file's
// top-level statements in an isolated scope, exposing the result as a
// Dict of its top-level bindings; an `import "foo"` is therefore
// equivalent to `let foo = {... every top-level name in foo.lang ...}`.
// Concurrent imports of the same resolved path are collapsed via
// singleflight: the engine itself is single-threaded and never calls
// Do concurrently, but a caller embedding multiple interpreters that
// share one loader gets deduplicated loads for free.
type SimpleLoader struct {
	ip      *interp.Interpreter
	baseDir string
	group   singleflight.Group
	cache   map[string]interp.Value
}

// NewSimpleLoader returns a loader that resolves relative module names
// against baseDir and executes them against ip.
func NewSimpleLoader(ip *interp.Interpreter, baseDir string) *SimpleLoader {
	return &SimpleLoader{ip: ip, baseDir: baseDir, cache: map[string]interp.Value{}}
}

// ResolveModulePath turns a bare module name into a file path,
// appending the ".lang" extension when the name has none.
func (l *SimpleLoader) ResolveModulePath(name string) (string, error) {
	path := name
	if filepath.Ext(path) == "" {
		path += ".lang"
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// LoadModuleFromPath executes path as a fresh top-level program
// (sharing the interpreter's builtins/blueprint registry/scheduler)
// and returns its finished top-level scope as a Dict Value.
func (l *SimpleLoader) LoadModuleFromPath(path string) (interp.Value, error) {
	if v, ok := l.cache[path]; ok {
		return v, nil
	}
	v, err, _ := l.group.Do(path, func() (interface{}, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			return interp.Value{}, err
		}
		result, rerr := runModuleSource(l.ip, string(src))
		if rerr != nil {
			return interp.Value{}, rerr
		}
		l.cache[path] = result
		return result, nil
	})
	if err != nil {
		return interp.Value{}, err
	}
	return v.(interp.Value), nil
}

// runModuleSource drives ip's statement executor over src to EOF in a
// fresh isolated scope, saving and restoring the active lexer/scope
// around the nested run the same way the call machinery does for a
// function body.
func runModuleSource(ip *interp.Interpreter, src string) (interp.Value, error) {
	savedLexer := ip.Lexer
	savedScope := ip.ActiveScope()

	ip.Lexer = NewLexer(src)
	moduleScope := interp.NewScope(nil)
	ip.SetActiveScope(moduleScope)

	var runErr *interp.ScriptException
	for {
		skipSeparators(ip)
		if ip.Lexer.Peek().Kind == interp.TokEOF {
			break
		}
		status := RunStatement(ip)
		if status == interp.StatusException {
			runErr = ip.ClearException()
			break
		}
	}

	ip.Lexer = savedLexer
	ip.SetActiveScope(savedScope)

	if runErr != nil {
		return interp.Value{}, runErr
	}

	d := interp.NewDictionary()
	for name, v := range moduleScope.Bindings() {
		d.Set(name, v)
	}
	return interp.NewDict(d), nil
}

func runImport(ip *interp.Interpreter) interp.StatusFlag {
	tok := ip.Lexer.Next() // 'import'
	pathTok, err := ip.Lexer.Eat(interp.TokString)
	if err != nil {
		return raiseParseError(ip, err)
	}
	if ip.Loader == nil {
		ip.RaiseException(interp.NewRuntimeException(tok.Line, tok.Column, "import is unavailable: no module loader configured"))
		return interp.StatusException
	}
	resolved, rerr := ip.Loader.ResolveModulePath(pathTok.Literal)
	if rerr != nil {
		ip.RaiseException(interp.NewRuntimeException(tok.Line, tok.Column, "cannot resolve module %q: %v", pathTok.Literal, rerr))
		return interp.StatusException
	}
	modVal, lerr := ip.Loader.LoadModuleFromPath(resolved)
	if lerr != nil {
		ip.RaiseException(interp.NewRuntimeException(tok.Line, tok.Column, "cannot load module %q: %v", pathTok.Literal, lerr))
		return interp.StatusException
	}
	alias := filepath.Base(pathTok.Literal)
	alias = alias[:len(alias)-len(filepath.Ext(alias))]
	ip.ActiveScope().Set(alias, modVal)
	return interp.StatusOK
}
