package comm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPGroup connects a process group over TCP.  The coordinator (rank
// size-1) listens; every other rank dials in and identifies itself with its
// rank.  Frames are big-endian length-prefixed byte strings.
type TCPGroup struct {
	rank int
	size int
	// On the coordinator, conns[r] is the connection to rank r (the
	// coordinator's own slot is nil).  On other ranks only conns[size-1]
	// is set.
	conns []net.Conn
}

const dialTimeout = 10 * time.Second

// JoinTCP assembles the group.  The coordinator listens on addr; all other
// ranks dial addr, retrying until the coordinator is up or the timeout
// expires.
func JoinTCP(rank, size int, addr string) (*TCPGroup, error) {
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d not in group of %d", ErrBroadcast, rank, size)
	}
	g := &TCPGroup{rank: rank, size: size, conns: make([]net.Conn, size)}
	if size == 1 {
		return g, nil
	}
	if rank == size-1 {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		defer ln.Close()
		for i := 0; i < size-1; i++ {
			conn, err := ln.Accept()
			if err != nil {
				g.Close()
				return nil, err
			}
			var hello [4]byte
			if _, err := io.ReadFull(conn, hello[:]); err != nil {
				conn.Close()
				g.Close()
				return nil, err
			}
			r := int(binary.BigEndian.Uint32(hello[:]))
			if r < 0 || r >= size-1 || g.conns[r] != nil {
				conn.Close()
				g.Close()
				return nil, fmt.Errorf("%w: bad rank handshake %d", ErrBroadcast, r)
			}
			g.conns[r] = conn
		}
		return g, nil
	}
	deadline := time.Now().Add(dialTimeout)
	var conn net.Conn
	var err error
	for {
		conn, err = net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(100 * time.Millisecond)
	}
	var hello [4]byte
	binary.BigEndian.PutUint32(hello[:], uint32(rank))
	if _, err := conn.Write(hello[:]); err != nil {
		conn.Close()
		return nil, err
	}
	g.conns[size-1] = conn
	return g, nil
}

func (g *TCPGroup) Rank() int { return g.rank }

func (g *TCPGroup) Size() int { return g.size }

// Close tears down every connection.
func (g *TCPGroup) Close() {
	for i, c := range g.conns {
		if c != nil {
			c.Close()
			g.conns[i] = nil
		}
	}
}

func (g *TCPGroup) BcastBytes(b []byte, root int) ([]byte, error) {
	if root != g.size-1 {
		return nil, fmt.Errorf("%w: root must be the coordinator", ErrBroadcast)
	}
	if g.size == 1 {
		return b, nil
	}
	if g.rank == root {
		for r, conn := range g.conns {
			if conn == nil {
				continue
			}
			if err := writeFrame(conn, b); err != nil {
				return nil, fmt.Errorf("%w: rank %d: %v", ErrBroadcast, r, err)
			}
		}
		return b, nil
	}
	got, err := readFrame(g.conns[g.size-1])
	if err != nil {
		return nil, errors.Join(ErrBroadcast, err)
	}
	return got, nil
}

func (g *TCPGroup) BcastInt64(v int64, root int) (int64, error) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	got, err := g.BcastBytes(b[:], root)
	if err != nil {
		return 0, err
	}
	if len(got) != 8 {
		return 0, ErrBroadcast
	}
	return int64(binary.BigEndian.Uint64(got)), nil
}

func writeFrame(w io.Writer, b []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	b := make([]byte, binary.BigEndian.Uint64(hdr[:]))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
