// Package patchfile handles the TOML description of a patch table: the
// known builds, the hooked call sites and the bound host values.
package patchfile

import (
	"errors"
	"fmt"
	"go/token"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/k2io/interpose"
)

// File is a parsed patch description.
type File struct {
	Package  string    `toml:"package"`
	Builds   []Build   `toml:"build"`
	Hooks    []Hook    `toml:"hook"`
	Bindings []Binding `toml:"binding"`
}

// Build maps one host image fingerprint to a variant name ("a" or "b").
type Build struct {
	Variant     string `toml:"variant"`
	Fingerprint uint32 `toml:"fingerprint"`
}

// Sites holds one address per variant; 0 means absent.
type Sites struct {
	A uint64 `toml:"a"`
	B uint64 `toml:"b"`
}

// For returns the address for v.
func (s Sites) For(v interpose.Variant) uintptr {
	switch v {
	case interpose.VariantA:
		return uintptr(s.A)
	case interpose.VariantB:
		return uintptr(s.B)
	}
	return 0
}

// Hook is one intercepted call site.
type Hook struct {
	Name string `toml:"name"`
	// Replacement is the Go identifier of the replacement function
	Replacement string `toml:"replacement"`
	Opcode      uint8  `toml:"opcode"`
	Sites       Sites  `toml:"sites"`
}

// Binding is one host value exposed as an interpose.Binding.
type Binding struct {
	Name  string `toml:"name"`
	Ident string `toml:"ident"`
	Type  string `toml:"type"`
	// Func declares an interpose.FuncBinding; Type must be a func type
	Func  bool  `toml:"func"`
	Sites Sites `toml:"sites"`
}

// Load parses the patch description at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a patch description.
func Parse(data []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	// Defaults
	if f.Package == "" {
		f.Package = "patches"
	}
	for i := range f.Hooks {
		if f.Hooks[i].Opcode == 0 {
			f.Hooks[i].Opcode = interpose.OpcodeJump
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names, identifiers and collisions.
func (f *File) Validate() error {
	var errs []error
	if !token.IsIdentifier(f.Package) {
		errs = append(errs, fmt.Errorf("package %q is not an identifier", f.Package))
	}
	seen := make(map[uint32]bool)
	for _, b := range f.Builds {
		if _, err := interpose.ParseVariant(b.Variant); err != nil {
			errs = append(errs, fmt.Errorf("build 0x%08X: %w", b.Fingerprint, err))
		}
		if seen[b.Fingerprint] {
			errs = append(errs, fmt.Errorf("build 0x%08X listed twice", b.Fingerprint))
		}
		seen[b.Fingerprint] = true
	}
	names := make(map[string]bool)
	for _, h := range f.Hooks {
		switch {
		case h.Name == "":
			errs = append(errs, errors.New("hook without a name"))
		case names[h.Name]:
			errs = append(errs, fmt.Errorf("hook %s listed twice", h.Name))
		}
		names[h.Name] = true
		if !token.IsIdentifier(h.Replacement) {
			errs = append(errs, fmt.Errorf("hook %s: replacement %q is not an identifier", h.Name, h.Replacement))
		}
		if h.Opcode != interpose.OpcodeCall && h.Opcode != interpose.OpcodeJump {
			errs = append(errs, fmt.Errorf("hook %s: opcode 0x%02X is not a rel32 call or jump", h.Name, h.Opcode))
		}
		if h.Sites.A == 0 && h.Sites.B == 0 {
			errs = append(errs, fmt.Errorf("hook %s has no site in any build", h.Name))
		}
	}
	for _, b := range f.Bindings {
		if !token.IsIdentifier(b.Ident) {
			errs = append(errs, fmt.Errorf("binding %s: ident %q is not an identifier", b.Name, b.Ident))
		}
		if b.Type == "" {
			errs = append(errs, fmt.Errorf("binding %s has no type", b.Name))
		}
	}
	return errors.Join(errs...)
}

// BuildTable returns the fingerprint to variant mapping.
func (f *File) BuildTable() interpose.Builds {
	out := make(interpose.Builds, len(f.Builds))
	for _, b := range f.Builds {
		v, err := interpose.ParseVariant(b.Variant)
		if err != nil {
			continue
		}
		out[b.Fingerprint] = v
	}
	return out
}
