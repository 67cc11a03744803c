package stream

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a sequence of raw chunks into valid UTF-8. Invalid bytes
// become U+FFFD. A multi-byte rune split across two chunks is held back
// and completed by the next chunk instead of being replaced.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

// NewDecoder creates a decoder with no pending bytes.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode converts one chunk. With atEOF set, pending bytes are flushed and
// replaced if they never became a complete rune.
func (d *Decoder) Decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	// Worst case every byte becomes a three byte replacement character.
	dst := make([]byte, 3*len(src)+4)
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		// Unreachable with the sizing above; fall back to byte-wise replacement.
		d.t.Reset()
		return string([]rune(string(src)))
	}
	if nSrc < len(src) {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}
	return string(dst[:nDst])
}

// Flush returns whatever is still pending, with invalid bytes replaced.
func (d *Decoder) Flush() string {
	return d.Decode(nil, true)
}

// DecodeLossy converts a complete payload in one go.
func DecodeLossy(b []byte) string {
	return NewDecoder().Decode(b, true)
}
