package bag

import (
	"reflect"
	"testing"

	"github.com/batchatco/go-cf-reader/cfreader/varray"
)

func makeBag(t *testing.T) *Bag {
	t.Helper()
	b := New()
	b.Set("variables", []string{"tas", "pr"})
	b.SetString("root", "/data/cmip")
	b.SetInt64s("step_count", []int64{3, 2})
	coords := New()
	x, err := varray.FromSlice([]float64{0, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	coords.Set("x", x)
	coords.SetString("x_variable", "lon")
	b.Set("coordinates", coords)
	return b
}

func TestInsertionOrder(t *testing.T) {
	b := makeBag(t)
	want := []string{"variables", "root", "step_count", "coordinates"}
	if !reflect.DeepEqual(b.Keys(), want) {
		t.Error("keys out of order", b.Keys())
	}
	// Replacing a value keeps its position.
	b.SetString("root", "/data/other")
	if !reflect.DeepEqual(b.Keys(), want) {
		t.Error("replacement reordered keys", b.Keys())
	}
	if s, _ := b.String("root"); s != "/data/other" {
		t.Error("replacement lost value")
	}
}

func TestTypedGetters(t *testing.T) {
	b := makeBag(t)
	if _, err := b.Array("missing"); err != ErrNotFound {
		t.Error("missing key should be ErrNotFound")
	}
	if _, err := b.Array("variables"); err != ErrWrongType {
		t.Error("string list is not an array")
	}
	if _, err := b.Nested("root"); err != ErrWrongType {
		t.Error("char array is not a bag")
	}
	vs, err := b.Strings("variables")
	if err != nil || len(vs) != 2 || vs[0] != "tas" {
		t.Error("strings getter failed", vs, err)
	}
	sc, err := b.Int64s("step_count")
	if err != nil || !reflect.DeepEqual(sc, []int64{3, 2}) {
		t.Error("int64s getter failed", sc, err)
	}
	coords, err := b.Nested("coordinates")
	if err != nil {
		t.Error(err)
		return
	}
	if s, err := coords.String("x_variable"); err != nil || s != "lon" {
		t.Error("nested string failed", s, err)
	}
	if b.Empty() {
		t.Error("bag should not be empty")
	}
	if !New().Empty() {
		t.Error("fresh bag should be empty")
	}
}

func TestSetRejectsBadValue(t *testing.T) {
	b := New()
	if err := b.Set("k", 42); err != ErrBadValue {
		t.Error("plain int should be rejected")
	}
}

func TestRoundTrip(t *testing.T) {
	b := makeBag(t)
	data, err := b.MarshalBinary()
	if err != nil {
		t.Error(err)
		return
	}
	got := New()
	if err := got.UnmarshalBinary(data); err != nil {
		t.Error(err)
		return
	}
	if !got.Equal(b) {
		t.Error("round trip not equal")
	}
	// Stable bytes: marshaling again yields the identical stream.
	data2, err := b.MarshalBinary()
	if err != nil {
		t.Error(err)
		return
	}
	if !reflect.DeepEqual(data, data2) {
		t.Error("marshal not deterministic")
	}
}

func TestUnmarshalCorrupt(t *testing.T) {
	b := makeBag(t)
	data, err := b.MarshalBinary()
	if err != nil {
		t.Error(err)
		return
	}
	cases := map[string][]byte{
		"empty":       {},
		"bad magic":   append([]byte{'X', 'Y'}, data[2:]...),
		"bad version": append([]byte{'C', 'B', 99}, data[3:]...),
		"truncated":   data[:len(data)/2],
	}
	for name, stream := range cases {
		if err := New().UnmarshalBinary(stream); err == nil {
			t.Error(name, "should have failed")
		}
	}
}

func TestEqual(t *testing.T) {
	a := makeBag(t)
	b := makeBag(t)
	if !a.Equal(b) {
		t.Error("identical bags should be equal")
	}
	b.SetInt64("extra", 1)
	if a.Equal(b) {
		t.Error("different lengths should differ")
	}
	c := makeBag(t)
	c.SetInt64s("step_count", []int64{3, 3})
	if a.Equal(c) {
		t.Error("different values should differ")
	}
}
