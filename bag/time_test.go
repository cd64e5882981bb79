// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Time", func() {
	Context("Before/After", func() {
		It("orders by seconds first", func() {
			Expect(Time{Sec: 1, Nsec: 0}.Before(Time{Sec: 2, Nsec: 0})).To(BeTrue())
			Expect(Time{Sec: 2, Nsec: 0}.After(Time{Sec: 1, Nsec: 0})).To(BeTrue())
		})

		It("orders by nanoseconds when seconds are equal", func() {
			Expect(Time{Sec: 5, Nsec: 1}.Before(Time{Sec: 5, Nsec: 2})).To(BeTrue())
			Expect(Time{Sec: 5, Nsec: 2}.Before(Time{Sec: 5, Nsec: 1})).To(BeFalse())
		})

		It("is never before or after itself", func() {
			t := Time{Sec: 5, Nsec: 2}
			Expect(t.Before(t)).To(BeFalse())
			Expect(t.After(t)).To(BeFalse())
		})
	})

	Context("Compare", func() {
		It("returns -1, 0, 1", func() {
			Expect(Time{Sec: 1}.Compare(Time{Sec: 2})).To(Equal(-1))
			Expect(Time{Sec: 2}.Compare(Time{Sec: 2})).To(Equal(0))
			Expect(Time{Sec: 3}.Compare(Time{Sec: 2})).To(Equal(1))
		})
	})

	Context("IsZero", func() {
		It("is true only for the zero value", func() {
			Expect(Time{}.IsZero()).To(BeTrue())
			Expect(TimeMin.IsZero()).To(BeFalse())
		})
	})

	Context("String", func() {
		It("renders sec.nsec, zero-padded", func() {
			Expect(Time{Sec: 5, Nsec: 42}.String()).To(Equal("5.000000042"))
		})
	})
})
