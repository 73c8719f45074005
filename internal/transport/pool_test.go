package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackListener(t *testing.T) (net.Listener, string, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 1024)
				for {
					if _, err := c.Read(buf); err != nil {
						_ = c.Close()
						return
					}
				}
			}()
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return ln, host, port
}

func TestPool_AcquireOpensNewConnection(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	conn, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)
	assert.True(t, conn.IsValid())
	assert.Equal(t, int64(1), p.total.load())
}

func TestPool_ReleaseThenReuse(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	conn1, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)
	p.Release(conn1)

	conn2, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	assert.Same(t, conn1, conn2)
	assert.Equal(t, int64(1), p.total.load())
}

func TestPool_DirectRejectAtCapacity(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	cfg.MaxConnectionsPerHost = 1
	cfg.OverflowStrategy = DirectReject
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	_, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), host, port, false)
	require.Error(t, err)
}

func TestPool_FailFastAtCapacity(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	cfg.MaxConnectionsPerHost = 1
	cfg.OverflowStrategy = FailFast
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	_, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), host, port, false)
	require.Error(t, err)
}

func TestPool_QueueWaitTimesOut(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	cfg.MaxConnectionsPerHost = 1
	cfg.OverflowStrategy = QueueWait
	cfg.WaitTimeout = 50 * time.Millisecond
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	_, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(context.Background(), host, port, false)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPool_QueueWaitGetsReleasedConn(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	cfg.MaxConnectionsPerHost = 1
	cfg.OverflowStrategy = QueueWait
	cfg.WaitTimeout = 2 * time.Second
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	conn1, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	resultCh := make(chan *Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := p.Acquire(context.Background(), host, port, false)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- c
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(conn1)

	select {
	case c := <-resultCh:
		assert.Same(t, conn1, c)
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued acquire")
	}
}

func TestPool_InvalidateDropsConnection(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	conn, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	p.Invalidate(conn)
	assert.False(t, conn.IsValid())
	assert.Equal(t, int64(0), p.total.load())

	conn2, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)
	assert.NotSame(t, conn, conn2)
}

func TestPool_IdleSweepEvictsStaleConnections(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	cfg.MaxIdleTime = 20 * time.Millisecond
	p := NewPool(cfg, nil)
	defer p.Shutdown()

	conn, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)
	p.Release(conn)

	time.Sleep(60 * time.Millisecond)
	p.sweepOnceNow()

	assert.False(t, conn.IsValid())
	assert.Equal(t, int64(0), p.total.load())
}

func TestPool_ShutdownDrainsWaiters(t *testing.T) {
	_, host, port := newLoopbackListener(t)

	cfg := DefaultPoolConfig()
	cfg.MaxConnectionsPerHost = 1
	cfg.OverflowStrategy = QueueWait
	cfg.WaitTimeout = 2 * time.Second
	p := NewPool(cfg, nil)

	_, err := p.Acquire(context.Background(), host, port, false)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), host, port, false)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Shutdown()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not release waiter")
	}
}
