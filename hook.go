package interpose

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HookRecord redirects one host call site to a replacement.
type HookRecord struct {
	Name string
	// Site locates the rel32 CALL/JMP to rewrite
	Site Binding[CallSite]
	// Replacement is the entry address control is sent to
	Replacement uintptr
	// Opcode is the instruction expected at Site; it is kept when patching
	Opcode byte
}

// PatchTable is the closed list of hooks applied at attach.
type PatchTable []HookRecord

// HookState is the progress of one record through the installer.
type HookState int

const (
	Unpatched HookState = iota
	Verifying
	Patched
	Failed
)

func (s HookState) String() string {
	switch s {
	case Unpatched:
		return "unpatched"
	case Verifying:
		return "verifying"
	case Patched:
		return "patched"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("HookState(%d)", int(s))
}

type hook struct {
	name string
	site uintptr
	// bytes found at the site before patching
	original CallSite
	patched  CallSite
}

// Installer rewrites call sites through a Memory.
type Installer struct {
	mem Memory

	// protect the maps below
	lock sync.Mutex
	// hooks applied with site addresses as keys
	hooks  map[uintptr]*hook
	states map[string]HookState
}

// NewInstaller returns an Installer writing through mem.
func NewInstaller(mem Memory) *Installer {
	return &Installer{
		mem:    mem,
		hooks:  make(map[uintptr]*hook),
		states: make(map[string]HookState),
	}
}

// State reports the state of the named record.
func (in *Installer) State(name string) HookState {
	in.lock.Lock()
	defer in.lock.Unlock()
	return in.states[name]
}

func (in *Installer) setState(name string, s HookState) {
	in.states[name] = s
}

// Install applies every record of table for the active variant. Sites are
// all resolved and checked for collisions before the first write, so no
// record depends on another having been installed.
func (in *Installer) Install(table PatchTable) error {
	in.lock.Lock()
	defer in.lock.Unlock()

	sites := make([]uintptr, len(table))
	seen := make(map[uintptr]string, len(table))
	for i, rec := range table {
		site, err := rec.Site.Address()
		if err != nil {
			in.setState(rec.Name, Failed)
			return fmt.Errorf("hook %s: %w", rec.Name, err)
		}
		if other, ok := seen[site]; ok {
			in.setState(rec.Name, Failed)
			return fmt.Errorf("%w: %s and %s at 0x%08X", ErrDoubleHook, other, rec.Name, site)
		}
		if h, ok := in.hooks[site]; ok {
			in.setState(rec.Name, Failed)
			return fmt.Errorf("%w: %s and %s at 0x%08X", ErrDoubleHook, h.name, rec.Name, site)
		}
		if rec.Replacement == 0 {
			in.setState(rec.Name, Failed)
			return fmt.Errorf("hook %s: null replacement", rec.Name)
		}
		seen[site] = rec.Name
		sites[i] = site
		in.setState(rec.Name, Unpatched)
	}

	for i, rec := range table {
		if err := in.install(rec, sites[i]); err != nil {
			return err
		}
	}
	logger().Info("hooks installed", zap.Int("count", len(table)))
	return nil
}

func (in *Installer) install(rec HookRecord, site uintptr) (err error) {
	in.setState(rec.Name, Verifying)
	defer func() {
		if err != nil {
			in.setState(rec.Name, Failed)
			logger().Error("hook failed", zap.String("hook", rec.Name), zap.Error(err))
		}
	}()

	code, err := in.mem.Read(site, JumpSize)
	if err != nil {
		return fmt.Errorf("hook %s: read 0x%08X: %w", rec.Name, site, err)
	}
	if err := VerifySite(rec.Name, site, code, rec.Opcode); err != nil {
		return err
	}
	seq, err := EncodeJump(site, rec.Replacement, rec.Opcode)
	if err != nil {
		return fmt.Errorf("hook %s: %w", rec.Name, err)
	}

	h := &hook{name: rec.Name, site: site, patched: seq}
	copy(h.original[:], code)
	if err := in.write(site, seq[:]); err != nil {
		return fmt.Errorf("hook %s: %w", rec.Name, err)
	}
	in.hooks[site] = h
	in.setState(rec.Name, Patched)

	logger().Debug("hook patched",
		zap.String("hook", rec.Name),
		zap.String("site", fmt.Sprintf("0x%08X", site)),
		zap.String("replacement", fmt.Sprintf("0x%08X", rec.Replacement)))
	return nil
}

// write stores p at addr with the page made writable for the duration of
// the write only.
func (in *Installer) write(addr uintptr, p []byte) (err error) {
	restore, err := in.mem.Protect(addr, uintptr(len(p)))
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return in.mem.Write(addr, p)
}

// Restore puts the original instruction back at the named hook's site.
func (in *Installer) Restore(name string) error {
	in.lock.Lock()
	defer in.lock.Unlock()

	for site, h := range in.hooks {
		if h.name != name {
			continue
		}
		if err := in.write(site, h.original[:]); err != nil {
			return fmt.Errorf("restore hook %s: %w", name, err)
		}
		delete(in.hooks, site)
		in.setState(name, Unpatched)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrHookNotFound, name)
}
