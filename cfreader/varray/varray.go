// Package varray implements a typed, contiguous, resizable one-dimensional
// buffer over a closed set of numeric element kinds.  It is the common
// currency between the file-format bindings, the metadata bag and the mesh.
package varray

import (
	"errors"
	"fmt"
	"reflect"
)

// Kind identifies the element type of an Array.  The set is closed: the
// container format's string and opaque types have no Kind.
type Kind int

const (
	Invalid Kind = iota
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
	Char
)

var (
	ErrKindMismatch    = errors.New("varray: element kinds do not match")
	ErrOutOfBounds     = errors.New("varray: index out of bounds")
	ErrUnsupportedKind = errors.New("varray: unsupported element kind")
)

var kindNames = map[Kind]string{
	Int8:    "int8",
	UInt8:   "uint8",
	Int16:   "int16",
	UInt16:  "uint16",
	Int32:   "int32",
	UInt32:  "uint32",
	Int64:   "int64",
	UInt64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Char:    "char",
}

func (k Kind) String() string {
	if s, has := kindNames[k]; has {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kindTypes maps each kind to the Go element type it is stored as.
// Char elements are bytes.
var kindTypes = map[Kind]reflect.Type{
	Int8:    reflect.TypeOf(int8(0)),
	UInt8:   reflect.TypeOf(uint8(0)),
	Int16:   reflect.TypeOf(int16(0)),
	UInt16:  reflect.TypeOf(uint16(0)),
	Int32:   reflect.TypeOf(int32(0)),
	UInt32:  reflect.TypeOf(uint32(0)),
	Int64:   reflect.TypeOf(int64(0)),
	UInt64:  reflect.TypeOf(uint64(0)),
	Float32: reflect.TypeOf(float32(0)),
	Float64: reflect.TypeOf(float64(0)),
	Char:    reflect.TypeOf(byte(0)),
}

// KindForGoType maps the container library's Go type names ("int8",
// "float64", ...) to a Kind.  The container's "string" type has no kind.
func KindForGoType(goType string) (Kind, bool) {
	for k, name := range kindNames {
		if name == goType {
			return k, true
		}
	}
	return Invalid, false
}

// Array is a one-dimensional buffer of elements of a single Kind.  The kind
// is fixed at construction.
type Array struct {
	kind Kind
	data reflect.Value // slice of the kind's element type
}

// New returns a zero-filled array of n elements of the given kind.
func New(kind Kind, n int) (*Array, error) {
	et, has := kindTypes[kind]
	if !has {
		return nil, ErrUnsupportedKind
	}
	st := reflect.SliceOf(et)
	return &Array{kind: kind, data: reflect.MakeSlice(st, n, n)}, nil
}

// FromSlice wraps a typed Go slice ([]float32, []int16, ..., []byte for
// characters) without copying.  Slices of unsupported element types
// (strings, nested slices) fail with ErrUnsupportedKind.
func FromSlice(data any) (*Array, error) {
	var kind Kind
	switch data.(type) {
	case []int8:
		kind = Int8
	case []uint8:
		// []byte is the same type; callers wanting Char use FromString.
		kind = UInt8
	case []int16:
		kind = Int16
	case []uint16:
		kind = UInt16
	case []int32:
		kind = Int32
	case []uint32:
		kind = UInt32
	case []int64:
		kind = Int64
	case []uint64:
		kind = UInt64
	case []float32:
		kind = Float32
	case []float64:
		kind = Float64
	default:
		return nil, ErrUnsupportedKind
	}
	return &Array{kind: kind, data: reflect.ValueOf(data)}, nil
}

// FromString returns a Char array holding the bytes of s.
func FromString(s string) *Array {
	return &Array{kind: Char, data: reflect.ValueOf([]byte(s))}
}

func (a *Array) Kind() Kind { return a.kind }

func (a *Array) Len() int { return a.data.Len() }

// Value returns element i as a scalar of the array's kind.
func (a *Array) Value(i int) (any, error) {
	if i < 0 || i >= a.data.Len() {
		return nil, ErrOutOfBounds
	}
	return a.data.Index(i).Interface(), nil
}

// SetValue stores v at index i, converting v to the array's element type.
// A value whose type cannot convert fails with ErrKindMismatch.
func (a *Array) SetValue(i int, v any) error {
	if i < 0 || i >= a.data.Len() {
		return ErrOutOfBounds
	}
	rv := reflect.ValueOf(v)
	et := kindTypes[a.kind]
	if !rv.Type().ConvertibleTo(et) {
		return ErrKindMismatch
	}
	a.data.Index(i).Set(rv.Convert(et))
	return nil
}

// Float64 returns element i widened to float64.  It is the numeric escape
// hatch used when assembling time values; out-of-range indices return 0.
func (a *Array) Float64(i int) float64 {
	if i < 0 || i >= a.data.Len() {
		return 0
	}
	ev := a.data.Index(i)
	switch {
	case ev.CanFloat():
		return ev.Float()
	case ev.CanInt():
		return float64(ev.Int())
	case ev.CanUint():
		return float64(ev.Uint())
	}
	return 0
}

// Int64 returns element i as an int64.  Float elements are truncated;
// out-of-range indices return 0.
func (a *Array) Int64(i int) int64 {
	if i < 0 || i >= a.data.Len() {
		return 0
	}
	ev := a.data.Index(i)
	switch {
	case ev.CanInt():
		return ev.Int()
	case ev.CanUint():
		return int64(ev.Uint())
	case ev.CanFloat():
		return int64(ev.Float())
	}
	return 0
}

// Resize grows or shrinks the array to n elements, preserving the prefix.
func (a *Array) Resize(n int) {
	if n == a.data.Len() {
		return
	}
	ns := reflect.MakeSlice(a.data.Type(), n, n)
	reflect.Copy(ns, a.data)
	a.data = ns
}

// Append appends all of other's elements, which must be of the same kind.
func (a *Array) Append(other *Array) error {
	if other.kind != a.kind {
		return ErrKindMismatch
	}
	a.data = reflect.AppendSlice(a.data, other.data)
	return nil
}

// Slice returns a new array holding copies of the elements in the inclusive
// range [lo, hi].
func (a *Array) Slice(lo, hi int) (*Array, error) {
	if lo < 0 || hi >= a.data.Len() || lo > hi {
		return nil, ErrOutOfBounds
	}
	n := hi - lo + 1
	ns := reflect.MakeSlice(a.data.Type(), n, n)
	reflect.Copy(ns, a.data.Slice(lo, hi+1))
	return &Array{kind: a.kind, data: ns}, nil
}

// Data returns the underlying typed slice ([]float32, []byte, ...).  It is
// the view handed to the file-format bindings; mutations alias the array.
func (a *Array) Data() any {
	return a.data.Interface()
}

// String renders Char arrays as text and other kinds via the default
// formatting of their element slice.
func (a *Array) String() string {
	if a.kind == Char {
		return string(a.data.Interface().([]byte))
	}
	return fmt.Sprint(a.data.Interface())
}

// Equal reports whether both arrays have the same kind and elements.
func (a *Array) Equal(other *Array) bool {
	if other == nil || a.kind != other.kind {
		return false
	}
	return reflect.DeepEqual(a.data.Interface(), other.data.Interface())
}
