// Package transport owns loadforge's outbound connection lifecycle: a
// bucketed connection pool (C1) and the HTTP client built on top of it (C2).
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/loadforge/loadforge/internal/core/errs"
)

// OverflowStrategy governs what Acquire does when a bucket is at capacity
// and no AVAILABLE connection can be reused.
type OverflowStrategy string

const (
	// QueueWait parks the caller until another caller releases a connection
	// for the same host, or WaitTimeout elapses. A connection that is
	// invalidated or swept while callers wait does not wake them.
	QueueWait OverflowStrategy = "QUEUE_WAIT"
	// DirectReject fails the acquire immediately with a pool-full error.
	DirectReject OverflowStrategy = "DIRECT_REJECT"
	// FailFast fails the acquire immediately with an at-capacity error.
	FailFast OverflowStrategy = "FAIL_FAST"
)

// PoolConfig configures a Pool's capacity and eviction behaviour.
type PoolConfig struct {
	MaxConnections        int
	MaxConnectionsPerHost int
	MaxIdleTime           time.Duration
	WaitTimeout           time.Duration
	OverflowStrategy      OverflowStrategy
	EnableReuse           bool
	DialTimeout           time.Duration
}

// DefaultPoolConfig mirrors the defaults spec.md assigns C1.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnections:        256,
		MaxConnectionsPerHost: 64,
		MaxIdleTime:           90 * time.Second,
		WaitTimeout:           10 * time.Second,
		OverflowStrategy:      QueueWait,
		EnableReuse:           true,
		DialTimeout:           10 * time.Second,
	}
}

type connState int32

const (
	stateAvailable connState = iota
	stateInUse
	stateInvalid
)

// Conn is a single pooled network connection, tagged with the bucket key
// and state the pool uses to decide whether it can be reused.
type Conn struct {
	net.Conn

	key      bucketKey
	state    connState
	lastUsed time.Time

	mu sync.Mutex
}

func (c *Conn) markState(s connState) {
	c.mu.Lock()
	c.state = s
	if s == stateAvailable {
		c.lastUsed = time.Now()
	}
	c.mu.Unlock()
}

// IsValid reports whether the connection can still be handed out. A closed
// channel detected out-of-band (e.g. a read failure during use) must have
// already called Invalidate before this is observed, per C1's failure
// semantics.
func (c *Conn) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateInvalid
}

type bucketKey struct {
	host   string
	port   string
	scheme string
}

func (k bucketKey) String() string {
	return fmt.Sprintf("%s://%s:%s", k.scheme, k.host, k.port)
}

// bucket holds every connection (idle or in-use) for one (host,port,scheme)
// and the FIFO waiter queue formed when the bucket is at capacity.
type bucket struct {
	mu      sync.Mutex
	idle    []*Conn
	active  map[*Conn]struct{}
	waiters []chan acquireResult
}

type acquireResult struct {
	conn *Conn
	err  error
}

// Pool is a bucketed connection pool keyed by (host,port,scheme). The
// bucket directory is a lock-free map so lookups for distinct hosts never
// contend; per-bucket state is mutex-guarded because acquire/release/idle
// sweep all need to touch the same idle slice and waiter queue atomically.
type Pool struct {
	cfg PoolConfig

	buckets *xsync.Map[string, *bucket]
	total   atomicCounter

	dialer    *net.Dialer
	tlsConfig *tls.Config

	sweepStop chan struct{}
	sweepOnce sync.Once
	shutdown  atomicBool
}

// NewPool builds a Pool and starts its background idle sweep.
func NewPool(cfg PoolConfig, tlsConfig *tls.Config) *Pool {
	p := &Pool{
		cfg:     cfg,
		buckets: xsync.NewMap[string, *bucket](),
		dialer: &net.Dialer{
			Timeout: cfg.DialTimeout,
			Control: setNoDelayControl,
		},
		tlsConfig: tlsConfig,
		sweepStop: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Acquire returns a pooled connection for (host, port, tls), opening one if
// capacity allows, or applying the configured overflow policy otherwise.
func (p *Pool) Acquire(ctx context.Context, host, port string, useTLS bool) (*Conn, error) {
	if p.shutdown.Load() {
		return nil, errs.New(errs.KindCancelled, fmt.Errorf("pool is shut down"))
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	key := bucketKey{host: host, port: port, scheme: scheme}
	b := p.bucketFor(key.String())

	if conn, ok := p.tryReuse(b); ok {
		return conn, nil
	}

	if conn, err, ok := p.tryOpen(ctx, b, key); ok {
		return conn, err
	}

	return p.overflow(ctx, b, key)
}

func (p *Pool) bucketFor(k string) *bucket {
	b, _ := p.buckets.LoadOrCompute(k, func() (*bucket, bool) {
		return &bucket{active: make(map[*Conn]struct{})}, false
	})
	return b
}

func (p *Pool) tryReuse(b *bucket) (*Conn, bool) {
	if !p.cfg.EnableReuse {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.idle) > 0 {
		n := len(b.idle) - 1
		c := b.idle[n]
		b.idle = b.idle[:n]
		if !c.IsValid() {
			delete(b.active, c)
			continue
		}
		c.markState(stateInUse)
		b.active[c] = struct{}{}
		return c, true
	}
	return nil, false
}

// tryOpen opens a fresh connection if both the pool-wide and per-host caps
// allow it. The bool return reports whether this path was taken at all
// (false means the caller must fall through to the overflow policy).
func (p *Pool) tryOpen(ctx context.Context, b *bucket, key bucketKey) (*Conn, error, bool) {
	b.mu.Lock()
	perHost := len(b.active)
	if perHost >= p.cfg.MaxConnectionsPerHost {
		b.mu.Unlock()
		return nil, nil, false
	}
	if int(p.total.load()) >= p.cfg.MaxConnections {
		b.mu.Unlock()
		return nil, nil, false
	}
	// Reserve the slot before releasing the lock so concurrent callers
	// can't both observe capacity and both dial.
	p.total.add(1)
	b.mu.Unlock()

	conn, err := p.dial(ctx, key)
	if err != nil {
		p.total.add(-1)
		return nil, errs.New(errs.KindTransport, err), true
	}

	b.mu.Lock()
	b.active[conn] = struct{}{}
	b.mu.Unlock()
	return conn, nil, true
}

func (p *Pool) dial(ctx context.Context, key bucketKey) (*Conn, error) {
	addr := net.JoinHostPort(key.host, key.port)
	raw, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if key.scheme == "https" {
		tlsConn := tls.Client(raw, p.tlsConfig)
		hsCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
		defer cancel()
		if err := tlsConn.HandshakeContext(hsCtx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("tls handshake %s: %w", addr, err)
		}
		raw = tlsConn
	}

	return &Conn{Conn: raw, key: key, state: stateInUse, lastUsed: time.Now()}, nil
}

// overflow applies the pool's configured policy once neither reuse nor a
// fresh dial was possible.
func (p *Pool) overflow(ctx context.Context, b *bucket, key bucketKey) (*Conn, error) {
	switch p.cfg.OverflowStrategy {
	case DirectReject:
		return nil, errs.New(errs.KindPool, fmt.Errorf("pool full for %s", key))
	case FailFast:
		return nil, errs.New(errs.KindPool, fmt.Errorf("at capacity for %s", key))
	case QueueWait:
		return p.wait(ctx, b, key)
	default:
		return nil, errs.New(errs.KindPool, fmt.Errorf("unknown overflow strategy %q", p.cfg.OverflowStrategy))
	}
}

// wait parks the caller on a FIFO queue until Release hands it a connection,
// WaitTimeout elapses, or ctx is cancelled. drop (Invalidate, the idle
// sweep) frees capacity without waking a waiter.
func (p *Pool) wait(ctx context.Context, b *bucket, key bucketKey) (*Conn, error) {
	ch := make(chan acquireResult, 1)

	b.mu.Lock()
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()

	timeout := p.cfg.WaitTimeout
	var timer *time.Timer
	var timerC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		timerC = timer.C
		defer timer.Stop()
	}

	select {
	case res := <-ch:
		return res.conn, res.err
	case <-timerC:
		p.removeWaiter(b, ch)
		return nil, errs.New(errs.KindTimeout, fmt.Errorf("pool wait timeout for %s", key))
	case <-ctx.Done():
		p.removeWaiter(b, ch)
		return nil, errs.New(errs.KindCancelled, ctx.Err())
	}
}

func (p *Pool) removeWaiter(b *bucket, ch chan acquireResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.waiters {
		if w == ch {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// Release flips an in-use connection back to AVAILABLE, or drops it from
// the pool if it has been invalidated. If a waiter is parked on the same
// bucket it takes the connection directly (FIFO), skipping the idle slice.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}
	if !c.IsValid() {
		p.drop(c)
		return
	}

	b := p.bucketFor(c.key.String())
	b.mu.Lock()
	if w, ok := p.popWaiter(b); ok {
		b.mu.Unlock()
		c.markState(stateInUse)
		w <- acquireResult{conn: c}
		return
	}
	c.markState(stateAvailable)
	b.idle = append(b.idle, c)
	b.mu.Unlock()
}

func (p *Pool) popWaiter(b *bucket) (chan acquireResult, bool) {
	if len(b.waiters) == 0 {
		return nil, false
	}
	w := b.waiters[0]
	b.waiters = b.waiters[1:]
	return w, true
}

// Invalidate marks conn INVALID, closes its underlying channel, and removes
// it from its bucket. Transport errors observed mid-use must call this
// instead of Release so the connection is never handed out again.
func (p *Pool) Invalidate(c *Conn) {
	if c == nil {
		return
	}
	c.markState(stateInvalid)
	p.drop(c)
}

func (p *Pool) drop(c *Conn) {
	b := p.bucketFor(c.key.String())
	b.mu.Lock()
	if _, ok := b.active[c]; ok {
		delete(b.active, c)
		p.total.add(-1)
	}
	for i, idle := range b.idle {
		if idle == c {
			b.idle = append(b.idle[:i], b.idle[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	_ = c.Conn.Close()
}

// sweepLoop periodically evicts AVAILABLE connections idle past MaxIdleTime.
func (p *Pool) sweepLoop() {
	if p.cfg.MaxIdleTime <= 0 {
		return
	}
	ticker := time.NewTicker(p.cfg.MaxIdleTime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.sweepStop:
			return
		case <-ticker.C:
			p.sweepOnceNow()
		}
	}
}

func (p *Pool) sweepOnceNow() {
	cutoff := time.Now().Add(-p.cfg.MaxIdleTime)
	p.buckets.Range(func(_ string, b *bucket) bool {
		b.mu.Lock()
		kept := b.idle[:0]
		var stale []*Conn
		for _, c := range b.idle {
			c.mu.Lock()
			lu := c.lastUsed
			c.mu.Unlock()
			if lu.Before(cutoff) {
				stale = append(stale, c)
			} else {
				kept = append(kept, c)
			}
		}
		b.idle = kept
		for _, c := range stale {
			delete(b.active, c)
			p.total.add(-1)
		}
		b.mu.Unlock()
		for _, c := range stale {
			c.markState(stateInvalid)
			_ = c.Conn.Close()
		}
		return true
	})
}

// Shutdown drains every waiter with a cancellation error, closes every
// connection, and transitions the pool to a terminal state.
func (p *Pool) Shutdown() {
	if !p.shutdown.CompareAndSwap(false, true) {
		return
	}
	p.sweepOnce.Do(func() { close(p.sweepStop) })

	p.buckets.Range(func(_ string, b *bucket) bool {
		b.mu.Lock()
		for _, w := range b.waiters {
			w <- acquireResult{err: errs.New(errs.KindCancelled, fmt.Errorf("pool shutting down"))}
		}
		b.waiters = nil
		for _, c := range b.idle {
			_ = c.Conn.Close()
		}
		for c := range b.active {
			_ = c.Conn.Close()
		}
		b.idle = nil
		b.active = make(map[*Conn]struct{})
		b.mu.Unlock()
		return true
	})
}
