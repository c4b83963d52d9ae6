package interp

import "fmt"

// debugRingSize bounds the number of recent debug lines kept for the
// dump printed alongside a fatal error.
const debugRingSize = 64

// debugRing is a fixed-size circular buffer of recent debug log
// lines.
type debugRing struct {
	lines [debugRingSize]string
	next  int
	count int
}

func (r *debugRing) push(format string, args ...interface{}) {
	r.lines[r.next] = fmt.Sprintf(format, args...)
	r.next = (r.next + 1) % debugRingSize
	if r.count < debugRingSize {
		r.count++
	}
}

// dump returns the buffered lines oldest-first.
func (r *debugRing) dump() []string {
	out := make([]string, 0, r.count)
	start := r.next - r.count
	for i := 0; i < r.count; i++ {
		idx := ((start+i)%debugRingSize + debugRingSize) % debugRingSize
		out = append(out, r.lines[idx])
	}
	return out
}

// debugf records a debug line when Options.Debug is enabled; it is a
// cheap no-op otherwise.
func (interp *Interpreter) debugf(format string, args ...interface{}) {
	if !interp.opt.debug {
		return
	}
	interp.debug.push(format, args...)
}

// DebugLogs returns the buffered recent debug lines, oldest first, for
// the CLI to print alongside a fatal-error diagnostic when --debug was
// requested.
func (interp *Interpreter) DebugLogs() []string { return interp.debug.dump() }
