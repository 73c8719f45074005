package transport

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startHTTPStub runs a minimal single-shot HTTP server that replies with
// the given raw response bytes to every connection it accepts.
func startHTTPStub(t *testing.T, raw string) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_, _ = bufio.NewReader(c).ReadString('\n')
				_, _ = c.Write([]byte(raw))
			}(conn)
		}
	}()

	h, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return h, p
}

func TestClient_ExecuteBuffered(t *testing.T) {
	host, port := startHTTPStub(t, "HTTP/1.1 200 OK\r\nContent-Length: 13\r\nConnection: close\r\n\r\n{\"ok\":true}\r\n")

	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Shutdown()
	c := NewClient(p, DefaultClientConfig())

	resp, err := c.Execute(context.Background(), Request{
		Method: "POST",
		URL:    "http://" + net.JoinHostPort(host, port) + "/v1/chat/completions",
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "ok")
}

func TestClient_ExecuteBufferedErrorStatus(t *testing.T) {
	host, port := startHTTPStub(t, "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 5\r\nConnection: close\r\n\r\noops\n")

	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Shutdown()
	c := NewClient(p, DefaultClientConfig())

	_, err := c.Execute(context.Background(), Request{
		Method: "POST",
		URL:    "http://" + net.JoinHostPort(host, port) + "/v1/chat/completions",
		Body:   []byte(`{}`),
	})
	require.Error(t, err)
}

func TestClient_ExecuteStreaming(t *testing.T) {
	body := "data: hello\r\ndata: world\r\ndata: [DONE]\r\n"
	raw := "HTTP/1.1 200 OK\r\nContent-Length: " +
		itoa(len(body)) + "\r\nConnection: close\r\n\r\n" + body
	host, port := startHTTPStub(t, raw)

	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Shutdown()
	c := NewClient(p, DefaultClientConfig())

	var chunks []string
	var streamErr error
	err := c.ExecuteStreaming(context.Background(), Request{
		Method: "POST",
		URL:    "http://" + net.JoinHostPort(host, port) + "/v1/chat/completions",
		Body:   []byte(`{}`),
	}, func(chunk string) {
		chunks = append(chunks, chunk)
	}, func(e error) {
		streamErr = e
	})

	require.NoError(t, err)
	assert.Nil(t, streamErr)
	assert.Equal(t, []string{"hello", "world"}, chunks)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
