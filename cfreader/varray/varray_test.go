package varray

import (
	"reflect"
	"testing"
)

func TestNewAndAccess(t *testing.T) {
	a, err := New(Float32, 3)
	if err != nil {
		t.Error(err)
		return
	}
	if a.Kind() != Float32 || a.Len() != 3 {
		t.Error("bad kind or length")
		return
	}
	if err := a.SetValue(1, float32(2.5)); err != nil {
		t.Error(err)
		return
	}
	v, err := a.Value(1)
	if err != nil {
		t.Error(err)
		return
	}
	if v.(float32) != 2.5 {
		t.Error("wrong value", v)
	}
	if _, err := a.Value(3); err != ErrOutOfBounds {
		t.Error("should have been out of bounds")
	}
	if err := a.SetValue(-1, float32(0)); err != ErrOutOfBounds {
		t.Error("should have been out of bounds")
	}
}

func TestUnsupportedKind(t *testing.T) {
	if _, err := New(Invalid, 1); err != ErrUnsupportedKind {
		t.Error("invalid kind should fail")
	}
	if _, err := FromSlice([]string{"a"}); err != ErrUnsupportedKind {
		t.Error("string slice should fail")
	}
	if _, err := FromSlice([][]float32{{1}}); err != ErrUnsupportedKind {
		t.Error("nested slice should fail")
	}
}

func TestFromSlice(t *testing.T) {
	cases := []struct {
		data any
		kind Kind
	}{
		{[]int8{-1}, Int8},
		{[]uint8{1}, UInt8},
		{[]int16{-1}, Int16},
		{[]uint16{1}, UInt16},
		{[]int32{-1}, Int32},
		{[]uint32{1}, UInt32},
		{[]int64{-1}, Int64},
		{[]uint64{1}, UInt64},
		{[]float32{1.5}, Float32},
		{[]float64{1.5}, Float64},
	}
	for _, c := range cases {
		a, err := FromSlice(c.data)
		if err != nil {
			t.Error(c.kind, err)
			continue
		}
		if a.Kind() != c.kind {
			t.Error("wrong kind for", c.kind)
		}
		if !reflect.DeepEqual(a.Data(), c.data) {
			t.Error("data does not alias input for", c.kind)
		}
	}
}

func TestAppend(t *testing.T) {
	a, _ := FromSlice([]float64{0, 1, 2})
	b, _ := FromSlice([]float64{3, 4})
	if err := a.Append(b); err != nil {
		t.Error(err)
		return
	}
	want := []float64{0, 1, 2, 3, 4}
	if !reflect.DeepEqual(a.Data(), want) {
		t.Error("append result wrong", a.Data())
	}
	c, _ := FromSlice([]float32{5})
	if err := a.Append(c); err != ErrKindMismatch {
		t.Error("mismatched append should fail")
	}
}

func TestSlice(t *testing.T) {
	a, _ := FromSlice([]int32{10, 11, 12, 13})
	s, err := a.Slice(1, 2)
	if err != nil {
		t.Error(err)
		return
	}
	if !reflect.DeepEqual(s.Data(), []int32{11, 12}) {
		t.Error("slice content wrong", s.Data())
	}
	// Copies, not views.
	if err := s.SetValue(0, int32(99)); err != nil {
		t.Error(err)
	}
	if v, _ := a.Value(1); v.(int32) != 11 {
		t.Error("slice aliases parent")
	}
	if _, err := a.Slice(2, 4); err != ErrOutOfBounds {
		t.Error("hi past end should fail")
	}
	if _, err := a.Slice(3, 2); err != ErrOutOfBounds {
		t.Error("lo > hi should fail")
	}
	// Single-element slice is legal.
	if s, err := a.Slice(3, 3); err != nil || s.Len() != 1 {
		t.Error("inclusive single-element slice failed")
	}
}

func TestResize(t *testing.T) {
	a, _ := FromSlice([]uint16{1, 2, 3})
	a.Resize(5)
	if a.Len() != 5 {
		t.Error("grow failed")
	}
	if v, _ := a.Value(2); v.(uint16) != 3 {
		t.Error("grow lost prefix")
	}
	if v, _ := a.Value(4); v.(uint16) != 0 {
		t.Error("grown tail not zeroed")
	}
	a.Resize(2)
	if a.Len() != 2 {
		t.Error("shrink failed")
	}
}

func TestChar(t *testing.T) {
	a := FromString("abc")
	if a.Kind() != Char || a.Len() != 3 {
		t.Error("bad char array")
	}
	if a.String() != "abc" {
		t.Error("char round trip failed")
	}
}

func TestKindForGoType(t *testing.T) {
	if k, has := KindForGoType("float32"); !has || k != Float32 {
		t.Error("float32 lookup failed")
	}
	if _, has := KindForGoType("string"); has {
		t.Error("string should have no kind")
	}
}
