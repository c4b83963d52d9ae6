// Command scriptlang runs a single source file through the
// evaluation engine: one source-file argument, exit 0 on success, 1
// on a fatal error or an unhandled exception.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/scriptlang/scriptlang/interp"
	"github.com/scriptlang/scriptlang/lang"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("scriptlang", pflag.ContinueOnError)
	debug := flags.Bool("debug", false, "print recent debug logs on a fatal error")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scriptlang [--debug] <source-file>")
		return 2
	}
	path := flags.Arg(0)

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptlang: %v\n", interp.WrapFatalError(0, 0, err))
		return 1
	}

	ip := lang.NewInterpreter(interp.Options{
		Args:  flags.Args(),
		Env:   os.Environ(),
		Debug: *debug,
	}, path)

	if exc := lang.Run(ip, string(src)); exc != nil {
		fmt.Fprintln(os.Stderr, interp.UnhandledExceptionDiagnostic(path, exc))
		if *debug {
			for _, line := range ip.DebugLogs() {
				fmt.Fprintln(os.Stderr, line)
			}
		}
		return 1
	}
	return 0
}
