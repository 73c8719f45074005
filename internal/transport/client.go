package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loadforge/loadforge/internal/core/errs"
	"github.com/loadforge/loadforge/internal/sse"
	"github.com/loadforge/loadforge/pkg/pool"
)

const (
	// DefaultBufferedBodyCeiling caps how much of a buffered response body
	// Execute will read before giving up, per spec.md's C2 buffered mode.
	DefaultBufferedBodyCeiling = 1 << 20 // 1 MiB
)

// ClientConfig configures a Client's per-request timeouts and limits.
type ClientConfig struct {
	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	BufferedBodyCeiling int64
	Retry               RetryConfig
}

// DefaultClientConfig mirrors the defaults spec.md assigns C2.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         120 * time.Second,
		BufferedBodyCeiling: DefaultBufferedBodyCeiling,
		Retry:               RetryConfig{MaxRetries: 3, RetryDelay: time.Second},
	}
}

// Request is the minimal shape Client needs to dispatch one HTTP call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the result of a buffered Execute call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ChunkSink receives decoded SSE payloads as they arrive; ErrorSink
// receives a terminal error, if any, before the stream ends.
type ChunkSink func(chunk string)
type ErrorSink func(err error)

var bufPool = pool.NewLitePool(func() *bytes.Buffer { return new(bytes.Buffer) })

// Client executes requests against connections leased from a Pool,
// matching the teacher's low-level transport tuning while adding the
// buffered/streaming duality C2 requires.
type Client struct {
	pool *Pool
	cfg  ClientConfig
}

// NewClient builds a Client that draws connections from p.
func NewClient(p *Pool, cfg ClientConfig) *Client {
	return &Client{pool: p, cfg: cfg}
}

// Execute sends request and returns its fully buffered response, reading at
// most BufferedBodyCeiling bytes of body. Transient failures (connect,
// 5xx, read timeout, 429) are retried per cfg.Retry before giving up,
// per §7; non-transient failures return on the first attempt.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	return ExecuteWithRetry(ctx, c.cfg.Retry, func() (*Response, error) {
		return c.executeOnce(ctx, req)
	})
}

// executeOnce performs a single buffered request/response round trip with
// no retry of its own.
func (c *Client) executeOnce(ctx context.Context, req Request) (*Response, error) {
	conn, u, err := c.lease(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if err := c.runCancelable(ctx, conn, func() error { return c.writeRequest(conn, req, u, false) }); err != nil {
		c.pool.Invalidate(conn)
		return nil, classifyIOError(ctx, err)
	}

	if c.cfg.ReadTimeout > 0 {
		_ = conn.Conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}

	br := bufio.NewReader(conn.Conn)
	var httpResp *http.Response
	if err := c.runCancelable(ctx, conn, func() error {
		httpResp, err = http.ReadResponse(br, nil)
		return err
	}); err != nil {
		c.pool.Invalidate(conn)
		return nil, classifyIOError(ctx, fmt.Errorf("reading response: %w", err))
	}
	defer httpResp.Body.Close()

	// bufPool.Put resets every *bytes.Buffer it receives (it satisfies
	// pool.Resettable), so a buffer handed back by Get is always already
	// empty — no Reset needed here.
	buf := bufPool.Get()
	defer bufPool.Put(buf)

	var copyErr error
	runErr := c.runCancelable(ctx, conn, func() error {
		_, copyErr = io.CopyN(buf, httpResp.Body, c.cfg.BufferedBodyCeiling)
		if copyErr == io.EOF {
			return nil
		}
		return copyErr
	})
	if runErr != nil {
		c.pool.Invalidate(conn)
		return nil, classifyIOError(ctx, fmt.Errorf("reading body: %w", runErr))
	}

	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}

	// copyErr == nil means CopyN filled the ceiling without reaching EOF: the
	// body was truncated and bytes remain unread on the wire. The connection
	// can't be reused without first draining an unbounded remainder, so it's
	// invalidated instead of returned to the pool.
	truncated := copyErr == nil
	release := c.pool.Release
	if truncated {
		release = c.pool.Invalidate
	}

	if resp.StatusCode >= 400 {
		release(conn)
		return resp, errs.NewStatus(resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}

	release(conn)
	return resp, nil
}

// ExecuteStreaming sends request with SSE headers and forwards decoded
// "data:" payloads to sink until [DONE], end-of-body, or error. Unlike
// Execute, this is not retried: once chunks have reached sink there is no
// way to retract them, so a mid-stream failure is reported as-is.
func (c *Client) ExecuteStreaming(ctx context.Context, req Request, sink ChunkSink, errSink ErrorSink) error {
	conn, u, err := c.lease(ctx, req.URL)
	if err != nil {
		return err
	}

	if err := c.runCancelable(ctx, conn, func() error { return c.writeRequest(conn, req, u, true) }); err != nil {
		c.pool.Invalidate(conn)
		wrapped := classifyIOError(ctx, err)
		errSink(wrapped)
		return wrapped
	}

	if c.cfg.ReadTimeout > 0 {
		_ = conn.Conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}

	br := bufio.NewReader(conn.Conn)
	var httpResp *http.Response
	if err := c.runCancelable(ctx, conn, func() error {
		httpResp, err = http.ReadResponse(br, nil)
		return err
	}); err != nil {
		c.pool.Invalidate(conn)
		wrapped := classifyIOError(ctx, fmt.Errorf("reading response: %w", err))
		errSink(wrapped)
		return wrapped
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, c.cfg.BufferedBodyCeiling))
		c.pool.Invalidate(conn)
		wrapped := errs.NewStatus(httpResp.StatusCode, fmt.Errorf("status %d: %s", httpResp.StatusCode, body))
		errSink(wrapped)
		return wrapped
	}

	dec := sse.NewDecoder(httpResp.Body)
	for {
		var chunk string
		var done bool
		runErr := c.runCancelable(ctx, conn, func() error {
			var decErr error
			chunk, done, decErr = dec.Next()
			return decErr
		})
		if runErr != nil {
			c.pool.Invalidate(conn)
			wrapped := classifyIOError(ctx, runErr)
			errSink(wrapped)
			return wrapped
		}
		if done {
			c.pool.Release(conn)
			return nil
		}
		if chunk != "" {
			sink(chunk)
		}
	}
}

// runCancelable runs op to completion, but if ctx is done before op returns
// on its own it force-unblocks op early by pulling conn's deadline to now —
// the only portal net.Conn gives us to cancel an in-flight Read/Write. The
// caller should pass op's resulting error through classifyIOError, which
// inspects ctx.Err() to tell a genuine deadline/cancellation apart from an
// ordinary network failure that happened to race with one.
func (c *Client) runCancelable(ctx context.Context, conn *Conn, op func() error) error {
	if ctx.Done() == nil {
		return op()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Conn.SetDeadline(time.Now())
		case <-done:
		}
	}()

	return op()
}

// classifyIOError wraps err with the Kind ctx's own state explains: a
// timeout if ctx's deadline fired, a cancellation if the caller cancelled
// it, or a plain transport failure otherwise.
func classifyIOError(ctx context.Context, err error) *errs.Error {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return errs.New(errs.KindTimeout, err)
	case context.Canceled:
		return errs.New(errs.KindCancelled, err)
	default:
		return errs.New(errs.KindTransport, err)
	}
}

func (c *Client) lease(ctx context.Context, rawURL string) (*Conn, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, errs.New(errs.KindConfig, fmt.Errorf("invalid url %q: %w", rawURL, err))
	}

	host := u.Hostname()
	port := u.Port()
	useTLS := u.Scheme == "https"
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	leaseCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		leaseCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := c.pool.Acquire(leaseCtx, host, port, useTLS)
	if err != nil {
		return nil, nil, err
	}
	return conn, u, nil
}

// writeRequest serialises req onto conn, injecting the default headers C2
// requires when the caller omitted them.
func (c *Client) writeRequest(conn *Conn, req Request, u *url.URL, streaming bool) error {
	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	if header.Get("Host") == "" {
		header.Set("Host", u.Host)
	}
	if len(req.Body) > 0 {
		if header.Get("Content-Length") == "" {
			header.Set("Content-Length", strconv.Itoa(len(req.Body)))
		}
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	if streaming {
		header.Set("Accept", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
	} else if header.Get("Connection") == "" {
		header.Set("Connection", "close")
	}

	path := u.RequestURI()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", req.Method, path)
	for k, vals := range header {
		for _, v := range vals {
			fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
	if len(req.Body) > 0 {
		buf.Write(req.Body)
	}

	_, err := conn.Conn.Write(buf.Bytes())
	return err
}
