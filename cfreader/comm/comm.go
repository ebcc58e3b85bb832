// Package comm provides the coarse collective-broadcast surface the reader
// uses to distribute consolidated metadata across a process group.  The
// coordinator is by convention the highest-ranked member.
package comm

import "errors"

var ErrBroadcast = errors.New("comm: broadcast failed")

// Group is a parallel process group.  Every member must make the same
// collective calls in the same order.  On the root, Bcast* sends the given
// value and returns it; on other ranks the argument is ignored and the
// root's value is returned.
type Group interface {
	Rank() int
	Size() int
	BcastInt64(v int64, root int) (int64, error)
	BcastBytes(b []byte, root int) ([]byte, error)
}

// Coordinator reports whether g's own rank is the group's coordinator.
func Coordinator(g Group) bool {
	return g.Rank() == g.Size()-1
}

// Single is the trivial one-member group used when no parallel runtime is
// active.
type Single struct{}

func (Single) Rank() int { return 0 }
func (Single) Size() int { return 1 }

func (Single) BcastInt64(v int64, root int) (int64, error) { return v, nil }

func (Single) BcastBytes(b []byte, root int) ([]byte, error) { return b, nil }
