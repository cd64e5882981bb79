// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Compression", func() {
	It("round-trips through ParseCompression and String", func() {
		for _, c := range []Compression{CompressionNone, CompressionBZ2, CompressionLZ4} {
			parsed, err := ParseCompression(c.String())
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(c))
		}
	})

	It("rejects unknown names", func() {
		_, err := ParseCompression("zstd")
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
	})
})

var _ = Describe("connectionIndex", func() {
	entries := func(times ...uint32) connectionIndex {
		var idx connectionIndex
		for i, t := range times {
			idx = append(idx, IndexEntry{Time: Time{Sec: t}, ChunkPos: uint64(i)})
		}
		return idx
	}

	It("sorts by (time, chunk_pos, offset)", func() {
		idx := connectionIndex{
			{Time: Time{Sec: 5}, ChunkPos: 1, Offset: 0},
			{Time: Time{Sec: 1}, ChunkPos: 2, Offset: 0},
			{Time: Time{Sec: 1}, ChunkPos: 1, Offset: 5},
			{Time: Time{Sec: 1}, ChunkPos: 1, Offset: 1},
		}
		idx.sort()

		Expect(idx[0]).To(Equal(IndexEntry{Time: Time{Sec: 1}, ChunkPos: 1, Offset: 1}))
		Expect(idx[1]).To(Equal(IndexEntry{Time: Time{Sec: 1}, ChunkPos: 1, Offset: 5}))
		Expect(idx[2]).To(Equal(IndexEntry{Time: Time{Sec: 1}, ChunkPos: 2, Offset: 0}))
		Expect(idx[3]).To(Equal(IndexEntry{Time: Time{Sec: 5}, ChunkPos: 1, Offset: 0}))
	})

	It("insertSorted keeps entries ordered", func() {
		var idx connectionIndex
		idx = idx.insertSorted(IndexEntry{Time: Time{Sec: 3}})
		idx = idx.insertSorted(IndexEntry{Time: Time{Sec: 1}})
		idx = idx.insertSorted(IndexEntry{Time: Time{Sec: 2}})

		Expect(idx[0].Time).To(Equal(Time{Sec: 1}))
		Expect(idx[1].Time).To(Equal(Time{Sec: 2}))
		Expect(idx[2].Time).To(Equal(Time{Sec: 3}))
	})

	It("firstAtOrAfter and firstAfter bracket a [start,end] range", func() {
		idx := entries(10, 20, 20, 30, 40)
		lo := idx.firstAtOrAfter(Time{Sec: 20})
		hi := idx.firstAfter(Time{Sec: 30})
		Expect(idx[lo:hi]).To(HaveLen(3))
		for _, e := range idx[lo:hi] {
			Expect(e.Time.Sec).To(BeNumerically(">=", 20))
			Expect(e.Time.Sec).To(BeNumerically("<=", 30))
		}
	})

	It("firstAtOrAfter returns len(idx) when nothing qualifies", func() {
		idx := entries(1, 2, 3)
		Expect(idx.firstAtOrAfter(Time{Sec: 100})).To(Equal(len(idx)))
	})
})
