package stream

import (
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/rusenback/dockergate/internal/redact"
)

// NewlineMarker stands in for "\n" inside an event so that the event
// stream's own line framing stays unambiguous.
const NewlineMarker = "<newline>"

// DefaultChunkSize bounds a single upstream read.
const DefaultChunkSize = 32 * 1024

// Chunks yields one element per successful Read of r, in order. The
// sequence ends at io.EOF; any other read error is yielded once and ends it.
// The yielded slice is only valid until the next step.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}
		}
	}
}

// Events maps raw chunks to event payloads: lossy decode, redact, then
// normalize line endings. Chunks that decode to nothing (a rune split
// across reads) produce no event; the held bytes complete the next one.
func Events(chunks iter.Seq2[[]byte, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dec := NewDecoder()
		for chunk, err := range chunks {
			if err != nil {
				if tail := dec.Flush(); tail != "" && !yield(Format(tail), nil) {
					return
				}
				yield("", err)
				return
			}
			text := dec.Decode(chunk, false)
			if text == "" {
				continue
			}
			if !yield(Format(text), nil) {
				return
			}
		}
		if tail := dec.Flush(); tail != "" {
			yield(Format(tail), nil)
		}
	}
}

// Format redacts text, then drops carriage returns and replaces each newline
// with NewlineMarker. Redaction runs on the raw chunk, so an endpoint split by
// a carriage return reaches the client unmasked.
func Format(text string) string {
	text = strings.ReplaceAll(redact.Redact(text), "\r", "")
	return strings.ReplaceAll(text, "\n", NewlineMarker)
}

// Unformat reverses the newline marker substitution on the receiving side.
func Unformat(data string) string {
	return strings.ReplaceAll(data, NewlineMarker, "\n")
}
