package interpose

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCrashReport(t *testing.T) {
	resetProcess(t)
	report := CrashReport(errors.New("boom"))
	for _, want := range []string{"Message: boom", "Variant: unknown (not fully loaded)", "Backtrace:"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}

	useVariant(t, VariantA)
	if report := CrashReport(errors.New("boom")); !strings.Contains(report, "Variant: A") {
		t.Fatalf("expected variant A in report:\n%s", report)
	}
}

func TestWriteCrashReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.txt")
	reportPath.Store(&path)
	crashing.Store(false)
	t.Cleanup(func() {
		reportPath.Store(nil)
		crashing.Store(false)
	})

	writeCrashReport(errors.New("hook data_verify failed"))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hook data_verify failed") {
		t.Fatalf("report does not name the hook:\n%s", data)
	}
}

func TestFatal_ExitFnReturning(t *testing.T) {
	prev := ExitFn
	ExitFn = func(error) {}
	defer func() { ExitFn = prev }()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected Fatal to panic when ExitFn returns")
		}
	}()
	Fatal(errors.New("must stop"))
}
