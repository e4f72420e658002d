package interpose

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// crashExitCode is the exit status of a fatal error.
const crashExitCode = 197

var (
	// ExitFn is invoked with every fatal error. It must not return.
	ExitFn = func(err error) {
		writeCrashReport(err)
		os.Exit(crashExitCode)
	}

	reportPath atomic.Pointer[string]
	// set once a report is being written
	crashing atomic.Bool
)

// Fatal reports err and terminates the process through ExitFn.
func Fatal(err error) {
	logger().Error("fatal error", zap.Error(err))
	_ = logger().Sync()
	ExitFn(err)
	// ExitFn must not return
	panic(err)
}

// CrashReport renders the text written for a fatal error.
func CrashReport(err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A fatal error occurred!\n\nMessage: %v\n\n", err)
	variant := "unknown (not fully loaded)"
	if v, verr := CurrentVariant(); verr == nil {
		variant = v.String()
	}
	fmt.Fprintf(&b, "Variant: %s\n\nBacktrace:\n%s", variant, debug.Stack())
	return b.String()
}

func writeCrashReport(err error) {
	report := CrashReport(err)
	if crashing.Swap(true) {
		// a report write failed into another fatal error
		fmt.Fprint(os.Stderr, report)
		return
	}
	path := reportPath.Load()
	if path == nil {
		fmt.Fprint(os.Stderr, report)
		return
	}
	if werr := os.WriteFile(*path, []byte(report), 0o644); werr != nil {
		fmt.Fprintf(os.Stderr, "%s\nCould not write the error report: %v\n", report, werr)
		return
	}
	fmt.Fprintf(os.Stderr, "fatal: %v\nAn error report is output at:\n%s\n", err, *path)
}
