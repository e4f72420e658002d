package interpose

import (
	"testing"
)

type players struct{}

func (players) Salt() uint16 { return 0x6C70 }

type objects struct{}

func (objects) Salt() uint16 { return 0x626F }

type fatalPanic struct {
	err error
}

// expectFatal runs fn and returns the error it handed to Fatal.
func expectFatal(t *testing.T, fn func()) error {
	t.Helper()
	prev := ExitFn
	ExitFn = func(err error) { panic(fatalPanic{err}) }
	defer func() { ExitFn = prev }()

	var got error
	func() {
		defer func() {
			r := recover()
			if fp, ok := r.(fatalPanic); ok {
				got = fp.err
			} else if r != nil {
				panic(r)
			}
		}()
		fn()
	}()
	if got == nil {
		t.Fatalf("expected a fatal error - got none")
	}
	return got
}

// resetProcess forgets any detected variant and attach.
func resetProcess(t *testing.T) {
	t.Helper()
	process.detecting.Store(false)
	process.ready.Store(false)
	process.variant.Store(0)
	process.attaching.Store(false)
	process.attached.Store(false)
	process.attachErr.Store(nil)
	process.installer.Store(nil)
	t.Cleanup(func() {
		process.detecting.Store(false)
		process.ready.Store(false)
		process.attaching.Store(false)
		process.attached.Store(false)
		process.attachErr.Store(nil)
		process.installer.Store(nil)
	})
}

// useVariant publishes v as if detection had run.
func useVariant(t *testing.T, v Variant) {
	t.Helper()
	resetProcess(t)
	_, err := DetectVariant(FingerprintFunc(func() (uint32, error) { return 0x1234, nil }), Builds{0x1234: v})
	if err != nil {
		t.Fatal(err)
	}
}
