package bag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/batchatco/go-cf-reader/cfreader/varray"
	"github.com/batchatco/go-thrower"
)

// Wire format, all big-endian: magic "CB" and a version byte, then the root
// bag.  A bag is an entry count followed by entries; an entry is a
// length-prefixed key, a tag byte, and the tagged payload.

const codecVersion = 1

const (
	tagArray = iota + 1
	tagBag
	tagStrings
)

var (
	ErrCorrupt = errors.New("bag: corrupt serialized stream")

	magic = [2]byte{'C', 'B'}
)

// MarshalBinary serializes the bag.  Key order is insertion order, so equal
// bags marshal to identical bytes.
func (b *Bag) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(codecVersion)
	if err := encodeBag(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the bag's contents with the serialized entries.
func (b *Bag) UnmarshalBinary(data []byte) (err error) {
	defer thrower.RecoverError(&err)
	r := bytes.NewReader(data)
	var m [3]byte
	readInto(r, m[:])
	if m[0] != magic[0] || m[1] != magic[1] || m[2] != codecVersion {
		thrower.Throw(ErrCorrupt)
	}
	nb := decodeBag(r)
	b.keys = nb.keys
	b.values = nb.values
	return nil
}

func encodeBag(w *bytes.Buffer, b *Bag) error {
	write32(w, uint32(len(b.keys)))
	for _, key := range b.keys {
		writeString(w, key)
		switch v := b.values[key].(type) {
		case *varray.Array:
			w.WriteByte(tagArray)
			write8(w, uint8(v.Kind()))
			write32(w, uint32(v.Len()))
			if err := binary.Write(w, binary.BigEndian, v.Data()); err != nil {
				return err
			}
		case *Bag:
			w.WriteByte(tagBag)
			if err := encodeBag(w, v); err != nil {
				return err
			}
		case []string:
			w.WriteByte(tagStrings)
			write32(w, uint32(len(v)))
			for _, s := range v {
				writeString(w, s)
			}
		default:
			return ErrBadValue
		}
	}
	return nil
}

func decodeBag(r io.Reader) *Bag {
	b := New()
	n := read32(r)
	for i := uint32(0); i < n; i++ {
		key := readString(r)
		switch read8(r) {
		case tagArray:
			kind := varray.Kind(read8(r))
			count := read32(r)
			a, err := varray.New(kind, int(count))
			if err != nil {
				thrower.Throw(ErrCorrupt)
			}
			thrower.ThrowIfError(binary.Read(r, binary.BigEndian, a.Data()))
			b.Set(key, a)
		case tagBag:
			b.Set(key, decodeBag(r))
		case tagStrings:
			count := read32(r)
			ss := make([]string, count)
			for j := range ss {
				ss[j] = readString(r)
			}
			b.Set(key, ss)
		default:
			thrower.Throw(ErrCorrupt)
		}
	}
	return b
}

func write8(w *bytes.Buffer, v uint8) {
	w.WriteByte(v)
}

func write32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeString(w *bytes.Buffer, s string) {
	write32(w, uint32(len(s)))
	w.WriteString(s)
}

func readInto(r io.Reader, b []byte) {
	_, err := io.ReadFull(r, b)
	thrower.ThrowIfError(err)
}

func read8(r io.Reader) uint8 {
	var b [1]byte
	readInto(r, b[:])
	return b[0]
}

func read32(r io.Reader) uint32 {
	var b [4]byte
	readInto(r, b[:])
	return binary.BigEndian.Uint32(b[:])
}

func readString(r io.Reader) string {
	n := read32(r)
	b := make([]byte, n)
	readInto(r, b)
	return string(b)
}
