package interpose

import (
	"fmt"

	"github.com/k2io/interpose/internal/image"
	"go.uber.org/zap"
)

// AttachOptions describe what Attach applies to the host.
type AttachOptions struct {
	// Builds maps host fingerprints to variants
	Builds Builds
	// Patches is the patch table installed after detection
	Patches PatchTable
	// Fingerprint defaults to the on-disk image of the running executable
	Fingerprint Fingerprinter
	// Memory defaults to ProcessMemory
	Memory Memory
	// Config defaults to interpose.toml next to the executable
	Config *Config
}

// Attach detects the variant, installs the patch table and publishes the
// process state. Only the first call does anything. Later calls return nil
// once that call succeeded, and its error wrapped in ErrAttachFailed if it
// did not.
func Attach(opts AttachOptions) error {
	if process.attaching.Swap(true) {
		switch errp := process.attachErr.Load(); {
		case process.attached.Load():
			return nil
		case errp != nil:
			return fmt.Errorf("%w: %w", ErrAttachFailed, *errp)
		}
		return ErrAttachInProgress
	}
	if err := attach(opts); err != nil {
		process.attachErr.Store(&err)
		return err
	}
	return nil
}

func attach(opts AttachOptions) error {
	cfg := opts.Config
	if cfg == nil {
		dir, err := ExecutableDir()
		if err != nil {
			return fmt.Errorf("attach: %w", err)
		}
		if cfg, err = LoadConfig(dir); err != nil {
			return fmt.Errorf("attach: %w", err)
		}
	}
	if err := applyConfig(cfg); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	src := opts.Fingerprint
	if src == nil {
		src = FingerprintFunc(image.ExecutableFingerprint)
	}
	v, err := DetectVariant(src, opts.Builds)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	mem := opts.Memory
	if mem == nil {
		mem = ProcessMemory
	}
	in := NewInstaller(mem)
	if err := in.Install(opts.Patches); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	process.installer.Store(in)
	process.attached.Store(true)
	logger().Info("attached", zap.Stringer("variant", v), zap.Int("hooks", len(opts.Patches)))
	return nil
}

// AttachOrExit is Attach with any failure treated as fatal, leaving no
// partially attached process behind.
func AttachOrExit(opts AttachOptions) {
	if err := Attach(opts); err != nil {
		Fatal(err)
	}
}

// Hooks returns the installer used by Attach, nil before attach.
func Hooks() *Installer {
	return process.installer.Load()
}

func applyConfig(cfg *Config) error {
	if cfg.Report.Path != "" {
		path := cfg.Report.Path
		reportPath.Store(&path)
	}
	l, err := NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}
