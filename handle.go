package interpose

import "fmt"

// Domain separates unrelated handle spaces. Implementations are empty
// struct types whose Salt is a constant, e.g.
//
//	type Players struct{}
//
//	func (Players) Salt() uint16 { return 0x6C70 }
type Domain interface {
	Salt() uint16
}

const (
	nullHandle uint32 = 0xFFFFFFFF
	// MaxIndex is the largest index a handle can carry. 0xFFFF is the
	// index half of the null handle.
	MaxIndex = 0xFFFE
)

// Handle references a table slot by index and generation, packed as
// generation<<16 | index.
type Handle[D Domain] struct {
	raw uint32
}

// NullHandle returns the null handle of domain D.
func NullHandle[D Domain]() Handle[D] {
	return Handle[D]{raw: nullHandle}
}

// HandleFromRaw reinterprets a 32-bit value received from the host.
func HandleFromRaw[D Domain](raw uint32) Handle[D] {
	return Handle[D]{raw: raw}
}

// MakeHandle packs an explicit index and generation.
func MakeHandle[D Domain](index, generation uint16) Handle[D] {
	return Handle[D]{raw: uint32(generation)<<16 | uint32(index)}
}

// HandleFromIndex mints the handle for index in domain D.
func HandleFromIndex[D Domain](index int) (Handle[D], error) {
	if index < 0 || index > MaxIndex {
		return NullHandle[D](), fmt.Errorf("%w: %d", ErrIndexTooLarge, index)
	}
	var d D
	return Handle[D]{raw: GenerationFor(uint16(index), d.Salt())}, nil
}

// GenerationFor derives the raw handle for index under salt:
// (0x8000 | (index + salt)) << 16 | index, with a 16-bit wrapping add.
//
// The generation half depends only on index and salt, so two mintings of
// the same index are indistinguishable. Uniqueness across reuse of an index
// is not provided.
func GenerationFor(index, salt uint16) uint32 {
	gen := 0x8000 | (index + salt)
	return uint32(gen)<<16 | uint32(index)
}

func (h Handle[D]) Raw() uint32 {
	return h.raw
}

func (h Handle[D]) IsNull() bool {
	return h.raw == nullHandle
}

// Index returns the slot index, false for the null handle.
func (h Handle[D]) Index() (uint16, bool) {
	if h.IsNull() {
		return 0, false
	}
	return uint16(h.raw), true
}

// Generation returns the generation half, false for the null handle.
func (h Handle[D]) Generation() (uint16, bool) {
	if h.IsNull() {
		return 0, false
	}
	return uint16(h.raw >> 16), true
}

// IsWellFormed re-derives the handle from its own index and compares the
// raw bits. It catches corruption only; it says nothing about whether a
// table slot is still live. The null handle is well-formed.
func (h Handle[D]) IsWellFormed() bool {
	index, ok := h.Index()
	if !ok {
		return true
	}
	redone, err := HandleFromIndex[D](int(index))
	if err != nil {
		return false
	}
	return redone.raw == h.raw
}

func (h Handle[D]) String() string {
	if h.IsNull() {
		return "null"
	}
	return fmt.Sprintf("0x%08X", h.raw)
}
