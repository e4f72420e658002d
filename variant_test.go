package interpose

import (
	"errors"
	"testing"
)

func TestDetectVariant(t *testing.T) {
	resetProcess(t)
	if IsInitialized() {
		t.Fatal("initialized before detection")
	}
	builds := Builds{0x0066D124: VariantA, 0x00720EBD: VariantB}
	v, err := DetectVariant(FingerprintFunc(func() (uint32, error) { return 0x00720EBD, nil }), builds)
	if err != nil {
		t.Fatal(err)
	}
	if v != VariantB || Current() != VariantB {
		t.Fatalf("expected variant B - got %s", v)
	}

	_, err = DetectVariant(FingerprintFunc(func() (uint32, error) { return 0x0066D124, nil }), builds)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized - got %v", err)
	}
	if Current() != VariantB {
		t.Fatal("second detection changed the variant")
	}
}

func TestDetect_TwiceIsFatal(t *testing.T) {
	useVariant(t, VariantA)
	err := expectFatal(t, func() {
		Detect(FingerprintFunc(func() (uint32, error) { return 0x1234, nil }), Builds{0x1234: VariantA})
	})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized - got %v", err)
	}
}

func TestDetect_UnknownBuildIsFatal(t *testing.T) {
	resetProcess(t)
	err := expectFatal(t, func() {
		Detect(FingerprintFunc(func() (uint32, error) { return 0xDEADBEEF, nil }), Builds{0x1234: VariantA})
	})
	if !errors.Is(err, ErrUnknownBuild) {
		t.Fatalf("expected ErrUnknownBuild - got %v", err)
	}
	if IsInitialized() {
		t.Fatal("unknown build published a variant")
	}
}

func TestCurrent_BeforeDetectIsFatal(t *testing.T) {
	resetProcess(t)
	err := expectFatal(t, func() { Current() })
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized - got %v", err)
	}
}

func TestParseVariant(t *testing.T) {
	for s, exp := range map[string]Variant{"a": VariantA, "A": VariantA, "b": VariantB} {
		v, err := ParseVariant(s)
		if err != nil || v != exp {
			t.Fatalf("ParseVariant(%q): expected %s - got %s, %v", s, exp, v, err)
		}
	}
	if _, err := ParseVariant("c"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}
