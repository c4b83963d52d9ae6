package lang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scriptlang/scriptlang/interp"
)

func TestImportExposesTopLevelBindings(t *testing.T) {
	dir := t.TempDir()
	modPath := filepath.Join(dir, "greet.lang")
	if err := os.WriteFile(modPath, []byte(`funct hello() { return "hi" }
let answer = 42
`), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	mainPath := filepath.Join(dir, "main.lang")

	src := `
import "greet"
show: greet.hello()
show: greet.answer
`
	var buf bufWriter
	ip := interp.New(interp.Options{Stdout: &buf})
	ip.SetStatementExecutor(RunStatement)
	ip.NewScanner = func(s string) interp.LexerControl { return NewLexer(s) }
	ip.Loader = NewSimpleLoader(ip, filepath.Dir(mainPath))

	if exc := Run(ip, src); exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	out := buf.lines()
	want := []string{"hi", "42"}
	if len(out) != len(want) || out[0] != want[0] || out[1] != want[1] {
		t.Fatalf("got %v, want %v", out, want)
	}
}

func TestImportMissingModuleRaises(t *testing.T) {
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.lang")

	var buf bufWriter
	ip := interp.New(interp.Options{Stdout: &buf})
	ip.SetStatementExecutor(RunStatement)
	ip.NewScanner = func(s string) interp.LexerControl { return NewLexer(s) }
	ip.Loader = NewSimpleLoader(ip, filepath.Dir(mainPath))

	exc := Run(ip, `import "does_not_exist"`)
	if exc == nil {
		t.Fatalf("expected an exception for a missing module")
	}
}

func TestResolveModulePathAddsExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.lang"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := NewSimpleLoader(nil, dir)
	resolved, err := l.ResolveModulePath("a")
	if err != nil {
		t.Fatalf("ResolveModulePath: %v", err)
	}
	if resolved != filepath.Join(dir, "a.lang") {
		t.Fatalf("resolved = %q, want %q", resolved, filepath.Join(dir, "a.lang"))
	}
}

// bufWriter is a minimal io.Writer that keeps written lines, avoiding
// a bytes.Buffer + strings.Split dance duplicated across every test
// file (see run_test.go for the primary harness; this one is scoped
// to loader-specific assertions).
type bufWriter struct {
	data []byte
}

func (b *bufWriter) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bufWriter) lines() []string {
	s := string(b.data)
	if len(s) == 0 {
		return nil
	}
	if s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
