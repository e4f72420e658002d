package interpose

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Variant is one of the known builds of the host executable. Every binding
// holds one candidate address per variant.
type Variant uint32

const (
	VariantA Variant = iota
	VariantB

	variantCount
)

func (v Variant) String() string {
	switch v {
	case VariantA:
		return "A"
	case VariantB:
		return "B"
	}
	return fmt.Sprintf("Variant(%d)", uint32(v))
}

func (v Variant) valid() bool {
	return v < variantCount
}

// ParseVariant maps "a"/"b" (any case) to a Variant.
func ParseVariant(s string) (Variant, error) {
	for v := Variant(0); v < variantCount; v++ {
		if strings.EqualFold(s, v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

// Fingerprinter produces a byte-exact fingerprint of the host image.
type Fingerprinter interface {
	Fingerprint() (uint32, error)
}

// FingerprintFunc adapts a plain function to Fingerprinter.
type FingerprintFunc func() (uint32, error)

func (f FingerprintFunc) Fingerprint() (uint32, error) {
	return f()
}

// Builds is the closed mapping from host image fingerprint to variant.
type Builds map[uint32]Variant

// Lookup returns the variant for fp. An unknown fingerprint is never
// defaulted to some variant.
func (b Builds) Lookup(fp uint32) (Variant, error) {
	v, ok := b[fp]
	if !ok || !v.valid() {
		return 0, fmt.Errorf("%w (checksum = 0x%08X)", ErrUnknownBuild, fp)
	}
	return v, nil
}

// DetectVariant fingerprints the host and publishes the matching variant.
// It may run once per process; later calls fail with ErrAlreadyInitialized.
func DetectVariant(src Fingerprinter, builds Builds) (Variant, error) {
	if process.detecting.Swap(true) {
		return 0, ErrAlreadyInitialized
	}
	fp, err := src.Fingerprint()
	if err != nil {
		return 0, fmt.Errorf("fingerprint host image: %w", err)
	}
	v, err := builds.Lookup(fp)
	if err != nil {
		return 0, err
	}
	process.variant.Store(uint32(v))
	process.ready.Store(true)
	logger().Info("detected host build",
		zap.Stringer("variant", v),
		zap.String("checksum", fmt.Sprintf("0x%08X", fp)))
	return v, nil
}

// Detect is DetectVariant with every failure treated as fatal.
func Detect(src Fingerprinter, builds Builds) Variant {
	v, err := DetectVariant(src, builds)
	if err != nil {
		Fatal(err)
	}
	return v
}

// CurrentVariant returns the published variant.
func CurrentVariant() (Variant, error) {
	if !process.ready.Load() {
		return 0, ErrNotInitialized
	}
	return Variant(process.variant.Load()), nil
}

// Current returns the published variant, terminating if detection has
// not run yet.
func Current() Variant {
	v, err := CurrentVariant()
	if err != nil {
		Fatal(err)
	}
	return v
}
