package stream

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("lossy decoder", func() {

	It("passes valid text through", func() {
		Expect(DecodeLossy([]byte("hello, wörld 🚀"))).To(Equal("hello, wörld 🚀"))
	})

	It("replaces invalid bytes instead of failing", func() {
		Expect(DecodeLossy([]byte{'a', 0xff, 'b'})).To(Equal("a�b"))
	})

	It("completes a rune split across chunks", func() {
		dec := NewDecoder()
		Expect(dec.Decode([]byte{'a', 0xc3}, false)).To(Equal("a"))
		Expect(dec.Decode([]byte{0xa9, 'b'}, false)).To(Equal("éb"))
		Expect(dec.Flush()).To(BeEmpty())
	})

	It("replaces a dangling partial rune at the end", func() {
		dec := NewDecoder()
		Expect(dec.Decode([]byte{'x', 0xe2, 0x82}, false)).To(Equal("x"))
		tail := dec.Flush()
		Expect(tail).To(ContainSubstring("�"))
		Expect(utf8.ValidString(tail)).To(BeTrue())
	})

})
