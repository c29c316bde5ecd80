// Package sse decodes the line-framed event stream returned by the chat endpoint
// into text fragments. Lines prefixed with "data:" carry a payload, blank lines
// separate events, and bare lines are tolerated as payloads on their own.
package sse

import (
	"bytes"
	"io"
	"iter"
	"strings"
)

// DataPrefix marks a payload line in the event stream.
const DataPrefix = "data:"

// Decoder turns raw byte chunks into fragments. It keeps only the trailing
// unterminated line between calls. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf    []byte
	closed bool
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns the fragments of every line it completed,
// in arrival order. Feeding a flushed decoder returns nil.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.closed || len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var out []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		if frag, ok := parseLine(line); ok {
			out = append(out, frag)
		}
	}
	// Drop the consumed prefix so the backing array does not grow forever.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// Flush emits the unterminated trailing line, if any, and closes the decoder.
// Calling Flush again returns nil.
func (d *Decoder) Flush() []string {
	if d.closed {
		return nil
	}
	d.closed = true
	rest := string(d.buf)
	d.buf = nil
	if strings.TrimSpace(rest) == "" {
		return nil
	}
	if frag, ok := parseLine(rest); ok {
		return []string{frag}
	}
	return nil
}

// Pending reports how many bytes of partial line are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// parseLine classifies one complete line. Blank lines and marker lines with an
// empty payload produce no fragment.
func parseLine(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	if payload, ok := strings.CutPrefix(line, DataPrefix); ok {
		if payload == "" {
			return "", false
		}
		return payload, true
	}
	return line, true
}

const readSize = 4096

// Fragments reads r to EOF and yields decoded fragments lazily. A read error
// other than io.EOF is yielded once with an empty fragment and ends the
// sequence. The sequence cannot be restarted.
func Fragments(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dec := NewDecoder()
		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, frag := range dec.Feed(buf[:n]) {
					if !yield(frag, nil) {
						return
					}
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				yield("", err)
				return
			}
		}
		for _, frag := range dec.Flush() {
			if !yield(frag, nil) {
				return
			}
		}
	}
}
