// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Buffer", func() {
	var b *Buffer

	BeforeEach(func() {
		b = &Buffer{}
	})

	Context("with no data", func() {
		It("has zero size and capacity", func() {
			Expect(b.Size()).To(Equal(0))
			Expect(b.Capacity()).To(Equal(0))
			Expect(b.Bytes()).To(BeEmpty())
		})
	})

	Context("SetSize", func() {
		It("grows the backing array and preserves existing bytes", func() {
			copy(b.Grow(3), []byte{1, 2, 3})
			Expect(b.Bytes()).To(Equal([]byte{1, 2, 3}))

			copy(b.Grow(2), []byte{4, 5})
			Expect(b.Bytes()).To(Equal([]byte{1, 2, 3, 4, 5}))
		})

		It("shrinking keeps the backing array but reduces the reported size", func() {
			b.SetSize(8)
			cap1 := b.Capacity()

			b.SetSize(2)
			Expect(b.Size()).To(Equal(2))
			Expect(b.Capacity()).To(Equal(cap1))
		})

		It("growing again after a shrink doesn't reallocate until capacity is exceeded", func() {
			b.SetSize(8)
			cap1 := b.Capacity()
			b.SetSize(2)
			b.SetSize(8)
			Expect(b.Capacity()).To(Equal(cap1))
		})
	})

	Context("Reset", func() {
		It("truncates to size 0 without losing the backing array", func() {
			b.SetSize(16)
			cap1 := b.Capacity()
			b.Reset()
			Expect(b.Size()).To(Equal(0))
			Expect(b.Capacity()).To(Equal(cap1))
		})
	})

	Context("Swap", func() {
		It("exchanges contents between two buffers", func() {
			other := &Buffer{}
			copy(b.Grow(3), []byte{1, 2, 3})
			copy(other.Grow(2), []byte{9, 9})

			b.Swap(other)

			Expect(b.Bytes()).To(Equal([]byte{9, 9}))
			Expect(other.Bytes()).To(Equal([]byte{1, 2, 3}))
		})
	})
})
