// Package bag implements an ordered string-keyed metadata container.  Values
// are variant arrays, nested bags, or string lists.  Insertion order is
// preserved so that serialization is stable.
package bag

import (
	"errors"

	"github.com/batchatco/go-cf-reader/cfreader/varray"
)

var (
	ErrNotFound  = errors.New("bag: key not found")
	ErrWrongType = errors.New("bag: value has a different type")
	ErrBadValue  = errors.New("bag: unsupported value type")
)

// Bag maps string keys to values, remembering insertion order.  A value is
// a *varray.Array, a *Bag, or a []string.
type Bag struct {
	keys   []string
	values map[string]any
}

func New() *Bag {
	return &Bag{values: map[string]any{}}
}

// Set stores v under key, replacing any previous value but keeping the
// key's original position.
func (b *Bag) Set(key string, v any) error {
	switch v.(type) {
	case *varray.Array, *Bag, []string:
	default:
		return ErrBadValue
	}
	if _, has := b.values[key]; !has {
		b.keys = append(b.keys, key)
	}
	b.values[key] = v
	return nil
}

// SetString stores s as a Char array.
func (b *Bag) SetString(key, s string) {
	b.Set(key, varray.FromString(s))
}

// SetInt64 stores v as a one-element Int64 array.
func (b *Bag) SetInt64(key string, v int64) {
	b.Set(key, int64Array(v))
}

// SetInt64s stores vs as an Int64 array.
func (b *Bag) SetInt64s(key string, vs []int64) {
	b.Set(key, int64Array(vs...))
}

func int64Array(vs ...int64) *varray.Array {
	a, _ := varray.FromSlice(append([]int64(nil), vs...))
	return a
}

func (b *Bag) Has(key string) bool {
	_, has := b.values[key]
	return has
}

func (b *Bag) Get(key string) (any, bool) {
	v, has := b.values[key]
	return v, has
}

// Array returns the variant array stored under key.
func (b *Bag) Array(key string) (*varray.Array, error) {
	v, has := b.values[key]
	if !has {
		return nil, ErrNotFound
	}
	a, ok := v.(*varray.Array)
	if !ok {
		return nil, ErrWrongType
	}
	return a, nil
}

// Nested returns the bag stored under key.
func (b *Bag) Nested(key string) (*Bag, error) {
	v, has := b.values[key]
	if !has {
		return nil, ErrNotFound
	}
	nb, ok := v.(*Bag)
	if !ok {
		return nil, ErrWrongType
	}
	return nb, nil
}

// Strings returns the string list stored under key.
func (b *Bag) Strings(key string) ([]string, error) {
	v, has := b.values[key]
	if !has {
		return nil, ErrNotFound
	}
	ss, ok := v.([]string)
	if !ok {
		return nil, ErrWrongType
	}
	return ss, nil
}

// String returns the text stored under key, accepting either a Char array
// or a single-element string list.
func (b *Bag) String(key string) (string, error) {
	v, has := b.values[key]
	if !has {
		return "", ErrNotFound
	}
	switch t := v.(type) {
	case *varray.Array:
		if t.Kind() != varray.Char {
			return "", ErrWrongType
		}
		return t.String(), nil
	case []string:
		if len(t) == 1 {
			return t[0], nil
		}
	}
	return "", ErrWrongType
}

// Int64 returns the first element of an integer array stored under key.
func (b *Bag) Int64(key string) (int64, error) {
	vs, err := b.Int64s(key)
	if err != nil {
		return 0, err
	}
	if len(vs) == 0 {
		return 0, ErrWrongType
	}
	return vs[0], nil
}

// Int64s returns the elements of an integer-kind array widened to int64.
func (b *Bag) Int64s(key string) ([]int64, error) {
	a, err := b.Array(key)
	if err != nil {
		return nil, err
	}
	switch a.Kind() {
	case varray.Int8, varray.UInt8, varray.Int16, varray.UInt16,
		varray.Int32, varray.UInt32, varray.Int64, varray.UInt64:
	default:
		return nil, ErrWrongType
	}
	out := make([]int64, a.Len())
	for i := range out {
		out[i] = a.Int64(i)
	}
	return out, nil
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	return b.keys
}

func (b *Bag) Len() int { return len(b.keys) }

func (b *Bag) Empty() bool { return len(b.keys) == 0 }

// Clear removes every entry.
func (b *Bag) Clear() {
	b.keys = nil
	b.values = map[string]any{}
}

// Equal reports whether both bags hold the same keys in the same order with
// equal values.
func (b *Bag) Equal(other *Bag) bool {
	if other == nil || len(b.keys) != len(other.keys) {
		return false
	}
	for i, k := range b.keys {
		if other.keys[i] != k {
			return false
		}
		switch v := b.values[k].(type) {
		case *varray.Array:
			ov, ok := other.values[k].(*varray.Array)
			if !ok || !v.Equal(ov) {
				return false
			}
		case *Bag:
			ov, ok := other.values[k].(*Bag)
			if !ok || !v.Equal(ov) {
				return false
			}
		case []string:
			ov, ok := other.values[k].([]string)
			if !ok || len(ov) != len(v) {
				return false
			}
			for j := range v {
				if v[j] != ov[j] {
					return false
				}
			}
		}
	}
	return true
}
