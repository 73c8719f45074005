// Package sse decodes a Server-Sent Events byte stream into the bare
// "data:" payloads callers care about, buffering partial lines across
// chunk boundaries so a payload is never emitted truncated.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const dataPrefix = "data: "
const doneSentinel = "[DONE]"

// Decoder turns an io.Reader carrying an SSE stream into a sequence of
// decoded event payloads, obtained by repeated calls to Next.
type Decoder struct {
	r    *bufio.Reader
	done bool
}

// NewDecoder wraps r. r is read in increasingly large line-buffered chunks;
// callers should not read from r directly once a Decoder owns it.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 4096)}
}

// Next returns the next decoded chunk. done is true once the terminal
// sentinel was observed or the stream ended; no further calls should be
// made once done is true (a subsequent Next returns "", true, nil).
// Lines that aren't a "data: " event (blank lines, ":" comments, "event:",
// "id:", "retry:") are skipped without being returned.
func (d *Decoder) Next() (chunk string, done bool, err error) {
	if d.done {
		return "", true, nil
	}

	for {
		line, err := d.r.ReadString('\n')
		if err == nil {
			if payload, ok := parseDataLine(line); ok {
				if isDoneSentinel(payload) {
					d.done = true
					return "", true, nil
				}
				return payload, false, nil
			}
		}
		if err != nil {
			d.done = true
			if err == io.EOF {
				return "", true, nil
			}
			return "", false, err
		}
	}
}

// parseDataLine strips a trailing newline/CR and the "data: " prefix. ok is
// false for any line that isn't a data event. Next only passes it complete,
// newline-terminated lines; a trailing partial line left by bufio at EOF or
// on a read error is never decoded (handled by the caller's error branch).
func parseDataLine(line string) (payload string, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	return line[len(dataPrefix):], true
}

func isDoneSentinel(payload string) bool {
	return strings.TrimSpace(payload) == doneSentinel
}

// ScanLines is a small helper for tests and callers that already have the
// full buffer in memory and want the decoded payload list without an
// io.Reader round-trip.
func ScanLines(buf []byte) []string {
	var out []string
	d := NewDecoder(bytes.NewReader(buf))
	for {
		chunk, done, err := d.Next()
		if err != nil {
			break
		}
		if chunk != "" {
			out = append(out, chunk)
		}
		if done {
			break
		}
	}
	return out
}
