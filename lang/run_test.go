package lang

import (
	"bytes"
	"strings"
	"testing"

	"github.com/scriptlang/scriptlang/interp"
)

// runProgram wires a fresh interpreter over src and drains it to
// completion, returning everything `show` printed and any exception
// that escaped every catch.
func runProgram(t *testing.T, src string) (string, *interp.ScriptException) {
	t.Helper()
	var out bytes.Buffer
	ip := interp.New(interp.Options{Stdout: &out, Clock: interp.NewManualClock()})
	ip.SetStatementExecutor(RunStatement)
	ip.NewScanner = func(s string) interp.LexerControl { return NewLexer(s) }
	exc := Run(ip, src)
	return out.String(), exc
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestArithmeticPromotion(t *testing.T) {
	out, exc := runProgram(t, `show: 2 + 3.0`)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "5" {
		t.Fatalf("got %q, want [\"5\"]", got)
	}
}

func TestIntArithmeticStaysInt(t *testing.T) {
	out, exc := runProgram(t, `show: 2 + 3
show: 2 - 3
show: 2 * 3
show: 7 / 2
show: 7 % 2`)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"5", "-1", "6", "3.5", "1"}
	got := lines(out)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDictLiteralRoundTrip(t *testing.T) {
	out, exc := runProgram(t, `let d = {"a": 1, "b": 2}
show: d["b"]`)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "2" {
		t.Fatalf("got %q, want [\"2\"]", got)
	}
}

func TestInheritanceSuper(t *testing.T) {
	src := `
blueprint A {
	funct greet() {
		return "hi A"
	}
}
blueprint B inherits A {
	funct greet() {
		return super.greet() + " via B"
	}
}
let b = B()
show: b.greet()
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "hi A via B" {
		t.Fatalf("got %q, want [\"hi A via B\"]", got)
	}
}

func TestAsyncGather(t *testing.T) {
	src := `
async funct slow() {
	await async_sleep(0.01)
	return 1
}
async funct main_task() {
	let results = await gather([slow(), slow()])
	return results
}
let c = main_task()
show: await c
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "[1, 1]" {
		t.Fatalf("got %q, want [\"[1, 1]\"]", got)
	}
}

func TestCancellation(t *testing.T) {
	// Every statement here is a direct top-level statement of its
	// enclosing async function body (none nested inside
	// if/while/for/try), which is the shape the lexer-replay resume
	// design supports.
	src := `
async funct slow_async() {
	await async_sleep(10)
	return 1
}
async funct runner() {
	let c = slow_async()
	cancel(c)
	await c
}
await runner()
`
	_, exc := runProgram(t, src)
	if exc == nil {
		t.Fatalf("expected a cancelled exception to escape")
	}
	if exc.Message != interp.CancelledErrorMsg {
		t.Fatalf("got exception %q, want message %q", exc.Message, interp.CancelledErrorMsg)
	}
}

func TestGatherPropagatesFirstException(t *testing.T) {
	src := `
async funct ok() {
	await async_sleep(0.01)
	return 1
}
async funct bad() {
	await async_sleep(0.005)
	raise "boom"
}
async funct runner() {
	return await gather([ok(), bad()])
}
await runner()
`
	_, exc := runProgram(t, src)
	if exc == nil {
		t.Fatalf("expected the child's exception to escape through the gather")
	}
	if exc.Message != "boom" {
		t.Fatalf("got exception %q, want %q", exc.Message, "boom")
	}
}

func TestCancelGatherCancelsChildren(t *testing.T) {
	src := `
async funct slow() {
	await async_sleep(100)
	return 1
}
async funct runner() {
	let g = gather([slow(), slow()])
	cancel(g)
	await g
}
await runner()
`
	_, exc := runProgram(t, src)
	if exc == nil {
		t.Fatalf("expected a cancelled exception to escape")
	}
	if exc.Message != interp.CancelledErrorMsg {
		t.Fatalf("got exception %q, want message %q", exc.Message, interp.CancelledErrorMsg)
	}
}

func TestAwaitCompletedCoroutineResolvesImmediately(t *testing.T) {
	src := `
async funct work() {
	await async_sleep(0.01)
	return 7
}
async funct relay(c) {
	return await c
}
let c = work()
let a = relay(c)
let b = relay(c)
show: await a
show: await b
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"7", "7"}
	got := lines(out)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOperatorOverload(t *testing.T) {
	src := `
blueprint Vec {
	funct init(x, y) {
		self.x = x
		self.y = y
	}
	funct op_add(other) {
		return Vec(self.x + other.x, self.y + other.y)
	}
}
let v = Vec(1, 2) + Vec(3, 4)
show: v.x
show: v.y
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"4", "6"}
	got := lines(out)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStringOps(t *testing.T) {
	src := `
show: "ab" * 3
show: "" * 0
show: "x" * 0
show: 1 + "a"
show: "a" + 1
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"ababab", "", "", "1a", "a1"}
	got := lines(out)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNegativeIndexing(t *testing.T) {
	src := `
let arr = [1, 2, 3]
show: arr[-1]
show: "abc"[-1]
let t = (10, 20, 30)
show: t[-1]
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"3", "c", "30"}
	got := lines(out)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDivisionByZeroRaises(t *testing.T) {
	out, exc := runProgram(t, `show: 1 / 0`)
	if exc == nil {
		t.Fatalf("expected an exception, got output %q", out)
	}
}

func TestModuloByZeroRaises(t *testing.T) {
	_, exc := runProgram(t, `show: 1 % 0`)
	if exc == nil {
		t.Fatalf("expected an exception")
	}
}

func TestTryCatchFinally(t *testing.T) {
	src := `
let order = []
try {
	raise "boom"
} catch (e) {
	order.append("caught:" + e)
} finally {
	order.append("finally")
}
show: order
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != `[caught:boom, finally]` {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultArguments(t *testing.T) {
	src := `
funct greet(name, suffix = "!") {
	return "hi " + name + suffix
}
show: greet("sam")
show: greet("sam", "?")
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"hi sam!", "hi sam?"}
	got := lines(out)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWhileBreakContinue(t *testing.T) {
	src := `
let i = 0
let total = 0
while i < 10 {
	i = i + 1
	if i % 2 == 0 {
		continue
	}
	if i > 7 {
		break
	}
	total = total + i
}
show: total
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "16" {
		t.Fatalf("got %q, want [\"16\"]", got)
	}
}

func TestObjectStateMutation(t *testing.T) {
	src := `
blueprint Counter {
	funct init() {
		self.n = 0
	}
	funct bump() {
		self.n = self.n + 1
		return self.n
	}
}
let c = Counter()
c.bump()
c.bump()
show: c.bump()
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "3" {
		t.Fatalf("got %q, want [\"3\"]", got)
	}
}

func TestForBreak(t *testing.T) {
	src := `
let total = 0
for n in [1, 2, 3, 4] {
	if n > 2 {
		break
	}
	total = total + n
}
show: total
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "3" {
		t.Fatalf("got %q, want [\"3\"]", got)
	}
}

func TestStrayCharacterRaises(t *testing.T) {
	_, exc := runProgram(t, `let x = @`)
	if exc == nil {
		t.Fatalf("expected an exception for an unrecognized character")
	}
}

func TestForOverArrayDictString(t *testing.T) {
	src := `
let total = 0
for n in [1, 2, 3] {
	total = total + n
}
show: total

let keys = []
for k in {"x": 1, "y": 2} {
	keys.append(k)
}
show: keys

let chars = []
for c in "ab" {
	chars.append(c)
}
show: chars
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"6", "[x, y]", "[a, b]"}
	got := lines(out)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStringInterpolation(t *testing.T) {
	src := `
let name = "world"
show: "hello ${name}, 1+1=${1 + 1}"
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	if got := lines(out); len(got) != 1 || got[0] != "hello world, 1+1=2" {
		t.Fatalf("got %q", got)
	}
}

func TestSliceBuiltin(t *testing.T) {
	src := `
let arr = [1, 2, 3, 4, 5]
show: slice(arr, 1, 3)
show: slice(arr, 2)
`
	out, exc := runProgram(t, src)
	if exc != nil {
		t.Fatalf("unexpected exception: %v", exc)
	}
	want := []string{"[2, 3]", "[3, 4, 5]"}
	got := lines(out)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMissingDictKeyRaises(t *testing.T) {
	_, exc := runProgram(t, `let d = {"a": 1}
show: d["b"]`)
	if exc == nil {
		t.Fatalf("expected an exception for missing key")
	}
}

func TestArityMismatchRaises(t *testing.T) {
	_, exc := runProgram(t, `funct f(a, b) {
	return a + b
}
show: f(1)`)
	if exc == nil {
		t.Fatalf("expected an exception for arity mismatch")
	}
}

func TestSelfAwaitRaises(t *testing.T) {
	src := `
async funct loopy() {
	await loopy_holder
}
let loopy_holder = null
async funct runner() {
	let c = loopy()
	loopy_holder = c
	await c
}
await runner()
`
	_, exc := runProgram(t, src)
	if exc == nil {
		t.Fatalf("expected an exception for self-await")
	}
}
