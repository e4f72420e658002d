// Package interpose is an in-process interposition runtime. It redirects
// host call sites to replacement code and gives typed, generation-checked
// access to data tables whose storage lives in the host's memory.
package interpose

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrDoubleHook means two records target the same call site
	ErrDoubleHook = errors.New("double hook")
	// ErrHookNotFound means no installed hook matches the name
	ErrHookNotFound = errors.New("hook not found")
	// ErrOpcodeMismatch means the call site does not hold the expected instruction
	ErrOpcodeMismatch = errors.New("no expected instruction")
	// ErrDisplacementRange means the replacement is not reachable with a rel32 displacement
	ErrDisplacementRange = errors.New("displacement does not fit in 32 bits")
	// ErrNullBinding means a binding has no address for the active variant
	ErrNullBinding = errors.New("trying to get a null binding for this build")
	// ErrAlreadyInitialized means variant detection already ran
	ErrAlreadyInitialized = errors.New("initialization attempted already")
	// ErrNotInitialized means the variant was read before detection
	ErrNotInitialized = errors.New("not loaded; variant is not known yet")
	// ErrUnknownBuild means the fingerprint matches no known variant
	ErrUnknownBuild = errors.New("cannot determine which build is being used")
	// ErrIndexTooLarge means a handle index exceeds the 16-bit index space
	ErrIndexTooLarge = errors.New("index is too big")
	// ErrNotPointerSized means a function binding's type is not a single pointer
	ErrNotPointerSized = errors.New("binding type is not pointer-sized")
	// ErrStaleIterator means a table changed storage under a live iterator
	ErrStaleIterator = errors.New("incorrect salt for iterator")
	// ErrAttachFailed means an earlier Attach failed; the process stays detached
	ErrAttachFailed = errors.New("attach failed")
	// ErrAttachInProgress means Attach is still running on another goroutine
	ErrAttachInProgress = errors.New("attach in progress")
)

// process is the single process-wide state object. It is written once
// during attach and read-only afterwards.
var process state

type state struct {
	// swap-and-check guard for Detect
	detecting atomic.Bool
	// set once the variant below is published
	ready   atomic.Bool
	variant atomic.Uint32

	// swap-and-check guard for Attach
	attaching atomic.Bool
	attached  atomic.Bool
	attachErr atomic.Pointer[error]
	installer atomic.Pointer[Installer]
}

// IsInitialized reports whether the active variant has been published.
func IsInitialized() bool {
	return process.ready.Load()
}

// IsAttached reports whether Attach completed.
func IsAttached() bool {
	return process.attached.Load()
}
