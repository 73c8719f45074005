package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_BasicSequence(t *testing.T) {
	input := "data: hello\ndata: world\ndata: [DONE]\n"
	d := NewDecoder(strings.NewReader(input))

	chunk, done, err := d.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "hello", chunk)

	chunk, done, err = d.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "world", chunk)

	_, done, err = d.Next()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	input := ": a comment\nevent: message\nid: 1\nretry: 3000\n\ndata: payload\n"
	d := NewDecoder(strings.NewReader(input))

	chunk, done, err := d.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "payload", chunk)
}

func TestDecoder_EndOfBodyWithoutDone(t *testing.T) {
	input := "data: only\n"
	d := NewDecoder(strings.NewReader(input))

	chunk, done, err := d.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "only", chunk)

	_, done, err = d.Next()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestDecoder_BuffersPartialLineAcrossChunks(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewDecoder(pr)

	go func() {
		_, _ = pw.Write([]byte("data: par"))
		_, _ = pw.Write([]byte("tial\n"))
		_, _ = pw.Write([]byte("data: [DONE]\n"))
		_ = pw.Close()
	}()

	chunk, done, err := d.Next()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "partial", chunk)

	_, done, err = d.Next()
	require.NoError(t, err)
	assert.True(t, done)
}

func TestDecoder_WhitespaceAroundDoneSentinel(t *testing.T) {
	d := NewDecoder(strings.NewReader("data:  [DONE]  \n"))
	chunk, done, err := d.Next()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, chunk)
}

func TestScanLines(t *testing.T) {
	out := ScanLines([]byte("data: a\ndata: b\ndata: [DONE]\n"))
	assert.Equal(t, []string{"a", "b"}, out)
}
