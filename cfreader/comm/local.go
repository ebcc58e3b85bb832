package comm

import "encoding/binary"

// localShared fans broadcast payloads out to every member over per-rank
// channels.
type localShared struct {
	chans []chan []byte
}

// Member is one rank of an in-process group.  Each member must be used from
// its own goroutine during collectives.
type Member struct {
	rank   int
	shared *localShared
}

// NewLocal returns the members of an n-rank in-process group, indexed by
// rank.  It backs multi-rank tests and single-machine drivers.
func NewLocal(n int) []*Member {
	sh := &localShared{chans: make([]chan []byte, n)}
	for i := range sh.chans {
		sh.chans[i] = make(chan []byte, 4)
	}
	members := make([]*Member, n)
	for i := range members {
		members[i] = &Member{rank: i, shared: sh}
	}
	return members
}

func (m *Member) Rank() int { return m.rank }

func (m *Member) Size() int { return len(m.shared.chans) }

func (m *Member) BcastBytes(b []byte, root int) ([]byte, error) {
	if root < 0 || root >= m.Size() {
		return nil, ErrBroadcast
	}
	if m.rank != root {
		return <-m.shared.chans[m.rank], nil
	}
	for i, ch := range m.shared.chans {
		if i == root {
			continue
		}
		cp := make([]byte, len(b))
		copy(cp, b)
		ch <- cp
	}
	return b, nil
}

func (m *Member) BcastInt64(v int64, root int) (int64, error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	got, err := m.BcastBytes(b[:], root)
	if err != nil {
		return 0, err
	}
	if len(got) != 8 {
		return 0, ErrBroadcast
	}
	return int64(binary.BigEndian.Uint64(got)), nil
}
