package interpose

import (
	"errors"
	"fmt"
	"iter"
	"unsafe"

	"go.uber.org/zap"
)

const (
	// TableMagic marks an initialized table header ("d@t@").
	TableMagic uint32 = 0x64407440
	// MaxTableCapacity is one below the null index.
	MaxTableCapacity = 0xFFFE

	iteratorMagic = 0x69746572
	tableNameSize = 32
)

var (
	// ErrBadHandle is matched by lookups with the null handle
	ErrBadHandle = errors.New("bad handle")
	// ErrOutOfBounds is matched by lookups past the current size
	ErrOutOfBounds = errors.New("index out of bounds")
	// ErrGenerationMismatch is matched by lookups with a stale handle
	ErrGenerationMismatch = errors.New("generation mismatch")
)

// TableHeader is the in-memory header shared with the host.
type TableHeader struct {
	Name [tableNameSize]byte
	// Capacity is the number of reserved slots
	Capacity uint16
	// ElementSize is the size of one slot
	ElementSize uint16
	// Valid is set by the host once the table may be iterated
	Valid uint8
	// ZeroInvalid makes handles with a zero generation bad handles
	ZeroInvalid uint8
	_           [2]byte
	Magic       uint32
	_     uint16
	// CurrentSize is the high-water mark of used slots
	CurrentSize uint16
	// Count is the number of live slots
	Count uint16
	// NextGeneration is the generation the host hands out next
	NextGeneration uint16
	// First is the storage of Capacity slots
	First unsafe.Pointer
}

// Slot is one table element. A slot is occupied iff Tag is nonzero.
type Slot[T any] struct {
	Tag     uint16
	_       uint16
	Payload T
}

func (s *Slot[T]) Occupied() bool {
	return s.Tag != 0
}

// Table is a fixed-capacity arena over storage it does not own. Its layout
// is exactly a TableHeader so a host-resident table can be used in place.
type Table[T any, D Domain] struct {
	header TableHeader
}

// StructuralError reports a broken table header.
type StructuralError struct {
	Table  string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("table %s is broken: %s", e.Table, e.Reason)
}

// LookupError is returned by Table.Get. It matches ErrBadHandle,
// ErrOutOfBounds or ErrGenerationMismatch with errors.Is.
type LookupError struct {
	Kind        error
	Table       string
	Handle      uint32
	CurrentSize uint16
	Expected    uint16
	Found       uint16
}

func (e *LookupError) Error() string {
	switch e.Kind {
	case ErrOutOfBounds:
		return fmt.Sprintf("%s: handle 0x%08X %v (current size %d)", e.Table, e.Handle, e.Kind, e.CurrentSize)
	case ErrGenerationMismatch:
		return fmt.Sprintf("%s: handle 0x%08X %v (expected 0x%04X, found 0x%04X)", e.Table, e.Handle, e.Kind, e.Expected, e.Found)
	}
	return fmt.Sprintf("%s: handle 0x%08X: %v", e.Table, e.Handle, e.Kind)
}

func (e *LookupError) Is(target error) bool {
	return target == e.Kind
}

// NewTable builds a table header over storage. The slots must be zeroed
// and must stay allocated for the life of the table.
func NewTable[T any, D Domain](name string, storage []Slot[T]) (*Table[T, D], error) {
	t := &Table[T, D]{}
	if err := t.Init(name, storage); err != nil {
		return nil, err
	}
	return t, nil
}

// TableAt overlays a table header that lives in host memory.
func TableAt[T any, D Domain](_ ForeignAccess, addr uintptr) *Table[T, D] {
	return (*Table[T, D])(foreignPointer(addr))
}

// Init writes a fresh header in place.
func (t *Table[T, D]) Init(name string, storage []Slot[T]) error {
	if len(storage) > MaxTableCapacity-1 {
		return fmt.Errorf("table maximum is too big for a table %s", name)
	}
	elementSize := unsafe.Sizeof(Slot[T]{})
	if elementSize >= 0xFFFF {
		return fmt.Errorf("table element size is too big for a table %s", name)
	}
	// names keep a terminating NUL
	if len(name) > tableNameSize-1 {
		name = name[:tableNameSize-1]
	}
	if storage == nil {
		storage = []Slot[T]{}
	}

	h := &t.header
	*h = TableHeader{}
	copy(h.Name[:], name)
	h.Capacity = uint16(len(storage))
	h.ElementSize = uint16(elementSize)
	h.Magic = TableMagic
	h.First = unsafe.Pointer(unsafe.SliceData(storage))
	t.resetNextGeneration()

	logger().Debug("table initialized",
		zap.String("table", name),
		zap.Uint16("capacity", h.Capacity),
		zap.Uint16("element_size", h.ElementSize))
	return nil
}

// Header exposes the raw header. Writers take on keeping it consistent.
func (t *Table[T, D]) Header() *TableHeader {
	return &t.header
}

func (t *Table[T, D]) Name() string {
	n := t.header.Name[:]
	for i, c := range n {
		if c == 0 {
			return string(n[:i])
		}
	}
	return string(n)
}

func (t *Table[T, D]) Capacity() int    { return int(t.header.Capacity) }
func (t *Table[T, D]) CurrentSize() int { return int(t.header.CurrentSize) }
func (t *Table[T, D]) Count() int       { return int(t.header.Count) }

func (t *Table[T, D]) IsValid() bool {
	return t.header.Valid != 0
}

func (t *Table[T, D]) SetValid(valid bool) {
	if valid {
		t.header.Valid = 1
	} else {
		t.header.Valid = 0
	}
}

// Verify checks the header invariants. Call it before trusting a table
// read from host memory.
func (t *Table[T, D]) Verify() error {
	h := &t.header
	broken := func(reason string) error {
		return &StructuralError{Table: t.Name(), Reason: reason}
	}
	switch {
	case h.First == nil:
		return broken("data pointer is null")
	case h.Magic != TableMagic:
		return broken("data fourcc ('d@t@') is invalid")
	case uintptr(h.ElementSize) != unsafe.Sizeof(Slot[T]{}):
		return broken(fmt.Sprintf("element size %d does not match %d", h.ElementSize, unsafe.Sizeof(Slot[T]{})))
	case h.Capacity < h.Count:
		return broken("maximum was less than count")
	case h.Capacity < h.CurrentSize:
		return broken("maximum was less than current size")
	case h.CurrentSize < h.Count:
		return broken("current size was less than count")
	}
	return nil
}

// MustVerify is Verify with a broken table treated as fatal.
func (t *Table[T, D]) MustVerify() {
	if err := t.Verify(); err != nil {
		Fatal(err)
	}
}

// Get returns the slot for h. A vacant slot at a valid index is returned
// as is; an occupied slot must carry h's generation. A zero generation is
// a bad handle when the header's ZeroInvalid is set.
func (t *Table[T, D]) Get(h Handle[D]) (*Slot[T], error) {
	index, ok := h.Index()
	generation, _ := h.Generation()
	if !ok || (generation == 0 && t.header.ZeroInvalid != 0) {
		return nil, &LookupError{Kind: ErrBadHandle, Table: t.Name(), Handle: h.Raw()}
	}
	if int(index) >= int(t.header.CurrentSize) {
		return nil, &LookupError{Kind: ErrOutOfBounds, Table: t.Name(), Handle: h.Raw(), CurrentSize: t.header.CurrentSize}
	}
	slot := t.slot(int(index))
	if slot.Tag != 0 && slot.Tag != generation {
		return nil, &LookupError{
			Kind:     ErrGenerationMismatch,
			Table:    t.Name(),
			Handle:   h.Raw(),
			Expected: generation,
			Found:    slot.Tag,
		}
	}
	return slot, nil
}

// MustGet is Get with a stale or invalid handle treated as fatal.
func (t *Table[T, D]) MustGet(h Handle[D]) *Slot[T] {
	slot, err := t.Get(h)
	if err != nil {
		Fatal(err)
	}
	return slot
}

// Instances returns all Capacity slots without any checks.
func (t *Table[T, D]) Instances() []Slot[T] {
	if t.header.First == nil {
		return nil
	}
	return unsafe.Slice((*Slot[T])(t.header.First), int(t.header.Capacity))
}

// Clear vacates every slot and resets the header counters.
func (t *Table[T, D]) Clear() {
	t.header.CurrentSize = 0
	t.header.Count = 0
	slots := t.Instances()
	for i := range slots {
		slots[i].Tag = 0
	}
	t.resetNextGeneration()
}

func (t *Table[T, D]) resetNextGeneration() {
	var d D
	t.header.NextGeneration = uint16(GenerationFor(0, d.Salt()) >> 16)
}

func (t *Table[T, D]) slot(index int) *Slot[T] {
	return (*Slot[T])(unsafe.Add(t.header.First, uintptr(index)*uintptr(t.header.ElementSize)))
}

// stamp ties an iterator to this table and its storage.
func (t *Table[T, D]) stamp() uintptr {
	return uintptr(unsafe.Pointer(t)) ^ uintptr(t.header.First) ^ iteratorMagic
}

// Iter starts a single forward pass over the occupied slots.
func (t *Table[T, D]) Iter() *TableIterator[T, D] {
	return &TableIterator[T, D]{
		table:  t,
		handle: NullHandle[D](),
		stamp:  t.stamp(),
	}
}

// VerifiedIter is Iter behind the checks the host performs before it
// iterates: the table must be marked valid and pass Verify.
func (t *Table[T, D]) VerifiedIter() (*TableIterator[T, D], error) {
	if !t.IsValid() {
		return nil, &StructuralError{Table: t.Name(), Reason: "init iterator with invalid table"}
	}
	if err := t.Verify(); err != nil {
		return nil, err
	}
	return t.Iter(), nil
}

// All yields each occupied slot with its handle in ascending index order.
func (t *Table[T, D]) All() iter.Seq2[Handle[D], *Slot[T]] {
	return func(yield func(Handle[D], *Slot[T]) bool) {
		it := t.Iter()
		for {
			h, slot, ok := it.Next()
			if !ok || !yield(h, slot) {
				return
			}
		}
	}
}

// TableIterator walks a table once. It is not restartable.
type TableIterator[T any, D Domain] struct {
	table  *Table[T, D]
	index  int
	handle Handle[D]
	stamp  uintptr
}

// Next returns the next occupied slot and its handle. A table whose
// storage moved since Iter is fatal.
func (it *TableIterator[T, D]) Next() (Handle[D], *Slot[T], bool) {
	if it.table.stamp() != it.stamp {
		Fatal(fmt.Errorf("table %s: %w", it.table.Name(), ErrStaleIterator))
	}
	capacity := int(it.table.header.Capacity)
	for it.index < capacity {
		index := it.index
		it.index++
		slot := it.table.slot(index)
		if slot.Occupied() {
			it.handle = MakeHandle[D](uint16(index), slot.Tag)
			return it.handle, slot, true
		}
	}
	it.handle = NullHandle[D]()
	return it.handle, nil, false
}

// Handle returns the handle of the slot last returned by Next.
func (it *TableIterator[T, D]) Handle() Handle[D] {
	return it.handle
}
