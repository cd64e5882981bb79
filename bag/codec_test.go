// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("compression codecs", func() {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 64)

	Context("lz4", func() {
		It("round-trips a compressible payload", func() {
			compressed, err := lz4CompressBlock(payload)
			Expect(err).ToNot(HaveOccurred())

			out, err := lz4DecompressBlock(compressed, len(payload))
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal(payload))
		})

		It("round-trips an empty payload", func() {
			compressed, err := lz4CompressBlock(nil)
			Expect(err).ToNot(HaveOccurred())

			out, err := lz4DecompressBlock(compressed, 0)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(BeEmpty())
		})
	})

	Context("bz2", func() {
		It("round-trips a compressible payload", func() {
			compressed, err := bz2CompressBlock(payload)
			Expect(err).ToNot(HaveOccurred())

			out, err := bz2DecompressBlock(compressed, len(payload))
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal(payload))
		})
	})
})
