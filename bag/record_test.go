// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bytes"
	"encoding/binary"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("record framing", func() {
	Context("writeRecord/readRecord", func() {
		It("round-trips op, fields, and data", func() {
			var buf bytes.Buffer
			fields := RecordHeader{"topic": []byte("/foo"), "type": []byte("bar/Baz")}
			Expect(writeRecord(&buf, opConnection, fields, []byte("payload"))).To(Succeed())

			rec, err := readRecord(&buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Op).To(Equal(opConnection))
			Expect(rec.Header["topic"]).To(Equal([]byte("/foo")))
			Expect(rec.Header["type"]).To(Equal([]byte("bar/Baz")))
			Expect(rec.Data).To(Equal([]byte("payload")))
		})

		It("handles an empty data section", func() {
			var buf bytes.Buffer
			Expect(writeRecord(&buf, opFileHeader, RecordHeader{}, nil)).To(Succeed())

			rec, err := readRecord(&buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(rec.Op).To(Equal(opFileHeader))
			Expect(rec.Data).To(BeEmpty())
		})
	})

	Context("decodeHeader", func() {
		It("rejects a field with no '='", func() {
			var raw []byte
			raw = appendField(raw, "badfield")

			_, _, err := decodeHeader(raw)
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(&FormatError{}))
		})

		It("rejects duplicate fields", func() {
			var raw []byte
			raw = appendField(raw, "topic=/a")
			raw = appendField(raw, "topic=/b")

			_, _, err := decodeHeader(raw)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a truncated field length prefix", func() {
			_, _, err := decodeHeader([]byte{1, 2})
			Expect(err).To(HaveOccurred())
		})

		It("extracts and removes the op field", func() {
			var raw []byte
			raw = appendField(raw, "op=\x05")
			raw = appendField(raw, "topic=/a")

			op, fields, err := decodeHeader(raw)
			Expect(err).ToNot(HaveOccurred())
			Expect(op).To(Equal(opChunk))
			Expect(fields).To(HaveKey("topic"))
			Expect(fields).ToNot(HaveKey("op"))
		})
	})

	Context("u32/u64/time field helpers", func() {
		It("round-trips through put/require", func() {
			fields := RecordHeader{}
			putU32Field(fields, "a", 1234)
			putU64Field(fields, "b", 987654321)
			putTimeField(fields, "c", Time{Sec: 1, Nsec: 2})

			a, err := fields.requireU32("a")
			Expect(err).ToNot(HaveOccurred())
			Expect(a).To(Equal(uint32(1234)))

			b, err := fields.requireU64("b")
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(uint64(987654321)))

			c, err := fields.requireTime("c")
			Expect(err).ToNot(HaveOccurred())
			Expect(c).To(Equal(Time{Sec: 1, Nsec: 2}))
		})

		It("requireField errors when the field is missing", func() {
			_, err := RecordHeader{}.requireField("missing")
			Expect(err).To(HaveOccurred())
		})
	})
})

// appendField encodes one "name=value" field in the on-disk
// length-prefixed form, for tests that need to build a raw header block
// by hand.
func appendField(dst []byte, field string) []byte {
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(field)))
	dst = append(dst, lenBytes[:]...)
	return append(dst, field...)
}
