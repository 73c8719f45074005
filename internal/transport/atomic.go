package transport

import (
	"sync/atomic"
	"syscall"
)

// atomicCounter is a tiny wrapper used where a named load/add reads more
// clearly at call sites than a bare atomic.Int64.
type atomicCounter struct {
	v atomic.Int64
}

func (c *atomicCounter) load() int64   { return c.v.Load() }
func (c *atomicCounter) add(n int64)   { c.v.Add(n) }

type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) Load() bool                   { return b.v.Load() }
func (b *atomicBool) CompareAndSwap(old, new bool) bool { return b.v.CompareAndSwap(old, new) }

// setNoDelayControl disables Nagle's algorithm on dialed TCP sockets,
// matching the teacher's low-latency transport tuning.
func setNoDelayControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
