package interpose

import (
	"fmt"
	"reflect"
	"unsafe"
)

// ForeignAccess marks a read or write of host memory. The host may touch
// the same memory from its own threads; nothing here synchronizes with it.
// Requiring the token keeps every such access visible at the call site.
type ForeignAccess struct{}

// Unchecked is the token passed to every accessor of host memory.
var Unchecked ForeignAccess

// Binding is one logical host value with a candidate address per variant.
// A zero address means the value does not exist in that build.
type Binding[T any] struct {
	name  string
	addrs [variantCount]uintptr
}

// Bind declares a binding. Bindings are normally package-level values.
func Bind[T any](name string, a, b uintptr) Binding[T] {
	return Binding[T]{name: name, addrs: [variantCount]uintptr{a, b}}
}

func (b Binding[T]) Name() string {
	return b.name
}

// AddressFor returns the candidate for v, 0 when absent.
func (b Binding[T]) AddressFor(v Variant) uintptr {
	if !v.valid() {
		return 0
	}
	return b.addrs[v]
}

// Address returns the candidate for the active variant.
func (b Binding[T]) Address() (uintptr, error) {
	return resolveAddress(b.name, b.addrs)
}

// Lookup returns a pointer into host memory for the active variant.
func (b Binding[T]) Lookup(ForeignAccess) (*T, error) {
	addr, err := b.Address()
	if err != nil {
		return nil, err
	}
	return (*T)(foreignPointer(addr)), nil
}

// Resolve is Lookup with failures treated as fatal. The returned pointer
// is used for both reads and writes of the host value.
func (b Binding[T]) Resolve(access ForeignAccess) *T {
	p, err := b.Lookup(access)
	if err != nil {
		Fatal(err)
	}
	return p
}

// ResolveCopy reads the host value.
func (b Binding[T]) ResolveCopy(access ForeignAccess) T {
	return *b.Resolve(access)
}

// FuncBinding is a host function with a candidate entry address per
// variant. F must be a func type; calls go through the Go calling
// convention, so the host entry must follow it (typically an assembly or
// Go-built routine).
type FuncBinding[F any] struct {
	name  string
	addrs [variantCount]uintptr
}

// BindFunc declares a function binding.
func BindFunc[F any](name string, a, b uintptr) FuncBinding[F] {
	return FuncBinding[F]{name: name, addrs: [variantCount]uintptr{a, b}}
}

func (b FuncBinding[F]) Name() string {
	return b.name
}

// Address returns the entry address for the active variant.
func (b FuncBinding[F]) Address() (uintptr, error) {
	return resolveAddress(b.name, b.addrs)
}

// Lookup builds a callable F for the active variant's entry address.
func (b FuncBinding[F]) Lookup(ForeignAccess) (F, error) {
	var fn F
	if reflect.TypeFor[F]().Kind() != reflect.Func || unsafe.Sizeof(fn) != unsafe.Sizeof(uintptr(0)) {
		return fn, fmt.Errorf("%s (%s): %w", b.name, reflect.TypeFor[F](), ErrNotPointerSized)
	}
	addr, err := b.Address()
	if err != nil {
		return fn, err
	}
	// a func value points at a funcval whose first word is the entry
	f := &funcval{fn: addr}
	*(*unsafe.Pointer)(unsafe.Pointer(&fn)) = unsafe.Pointer(f)
	return fn, nil
}

// Resolve is Lookup with failures treated as fatal.
func (b FuncBinding[F]) Resolve(access ForeignAccess) F {
	fn, err := b.Lookup(access)
	if err != nil {
		Fatal(err)
	}
	return fn
}

type funcval struct {
	fn uintptr
}

// FuncAddr returns the entry address of a func value, 0 if fn is not a func.
func FuncAddr(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

func resolveAddress(name string, addrs [variantCount]uintptr) (uintptr, error) {
	v, err := CurrentVariant()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	addr := addrs[v]
	if addr == 0 {
		return 0, fmt.Errorf("%w (%s, variant %s)", ErrNullBinding, name, v)
	}
	return addr, nil
}
