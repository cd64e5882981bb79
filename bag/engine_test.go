// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"os"
	"path/filepath"

	"filippo.io/age"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "bag-test-")
		Expect(err).ToNot(HaveOccurred())
		path = filepath.Join(dir, "test.bag")
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	writeSample := func(compression Compression) {
		e := New()
		Expect(e.SetCompression(compression)).To(Succeed())
		Expect(e.Open(path, ModeWrite)).To(Succeed())

		desc := MessageDescriptor{DataType: "std_msgs/String", MD5Sum: "abc123", MessageDefinition: "string data"}
		for i := uint32(1); i <= 5; i++ {
			Expect(e.Write("/chatter", Time{Sec: i}, []byte{byte(i)}, desc, nil)).To(Succeed())
		}
		for i := uint32(1); i <= 3; i++ {
			Expect(e.Write("/odom", Time{Sec: i}, []byte{byte(i) + 100}, desc, nil)).To(Succeed())
		}
		Expect(e.Close()).To(Succeed())
	}

	Context("writing and reading back, uncompressed", func() {
		BeforeEach(func() { writeSample(CompressionNone) })

		It("reports the format version and an indexed size", func() {
			e := New()
			Expect(e.Open(path, ModeRead)).To(Succeed())
			defer e.Close()

			Expect(e.GetMajorVersion()).To(Equal(2))
			size, err := e.GetSize()
			Expect(err).ToNot(HaveOccurred())
			Expect(size).To(BeNumerically(">", 0))
		})

		It("reads every message back in time order via View", func() {
			e := New()
			Expect(e.Open(path, ModeRead)).To(Succeed())
			defer e.Close()

			v := NewView([]*Engine{e}, nil, Time{}, Time{})
			Expect(v.Size()).To(Equal(8))

			q := v.Query()
			var lastTime Time
			count := 0
			for {
				msg, ok, err := q.Next()
				Expect(err).ToNot(HaveOccurred())
				if !ok {
					break
				}
				Expect(msg.Time().Before(lastTime)).To(BeFalse())
				lastTime = msg.Time()
				count++
			}
			Expect(count).To(Equal(8))
		})

		It("filters by topic", func() {
			e := New()
			Expect(e.Open(path, ModeRead)).To(Succeed())
			defer e.Close()

			v := NewView([]*Engine{e}, []string{"/odom"}, Time{}, Time{})
			Expect(v.Size()).To(Equal(3))

			q := v.Query()
			for {
				msg, ok, err := q.Next()
				Expect(err).ToNot(HaveOccurred())
				if !ok {
					break
				}
				Expect(msg.Topic()).To(Equal("/odom"))
			}
		})

		It("filters by time range", func() {
			e := New()
			Expect(e.Open(path, ModeRead)).To(Succeed())
			defer e.Close()

			v := NewView([]*Engine{e}, nil, Time{Sec: 2}, Time{Sec: 3})
			q := v.Query()
			count := 0
			for {
				msg, ok, err := q.Next()
				Expect(err).ToNot(HaveOccurred())
				if !ok {
					break
				}
				Expect(msg.Time().Sec).To(BeNumerically(">=", 2))
				Expect(msg.Time().Sec).To(BeNumerically("<=", 3))
				count++
			}
			Expect(count).To(BeNumerically(">", 0))
		})
	})

	for _, c := range []Compression{CompressionLZ4, CompressionBZ2} {
		compression := c
		Context("writing and reading back, "+compression.String()+" compressed", func() {
			BeforeEach(func() { writeSample(compression) })

			It("decompresses chunks transparently", func() {
				e := New()
				Expect(e.Open(path, ModeRead)).To(Succeed())
				defer e.Close()

				v := NewView([]*Engine{e}, nil, Time{}, Time{})
				q := v.Query()
				count := 0
				for {
					_, ok, err := q.Next()
					Expect(err).ToNot(HaveOccurred())
					if !ok {
						break
					}
					count++
				}
				Expect(count).To(Equal(8))
			})
		})
	}

	Context("a small chunk threshold forces multiple chunks", func() {
		BeforeEach(func() {
			e := New()
			Expect(e.SetChunkThreshold(1)).To(Succeed())
			Expect(e.Open(path, ModeWrite)).To(Succeed())

			desc := MessageDescriptor{DataType: "std_msgs/String", MD5Sum: "abc123"}
			for i := uint32(1); i <= 10; i++ {
				Expect(e.Write("/chatter", Time{Sec: i}, []byte{byte(i)}, desc, nil)).To(Succeed())
			}
			Expect(e.Close()).To(Succeed())
		})

		It("still reads every message back in order", func() {
			e := New()
			Expect(e.Open(path, ModeRead)).To(Succeed())
			defer e.Close()

			q := NewView([]*Engine{e}, nil, Time{}, Time{}).Query()
			var got []uint32
			for {
				msg, ok, err := q.Next()
				Expect(err).ToNot(HaveOccurred())
				if !ok {
					break
				}
				got = append(got, msg.Time().Sec)
			}
			Expect(got).To(Equal([]uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
		})
	})

	Context("append mode", func() {
		BeforeEach(func() { writeSample(CompressionNone) })

		It("preserves existing messages and adds new ones", func() {
			e := New()
			Expect(e.Open(path, ModeAppend)).To(Succeed())

			desc := MessageDescriptor{DataType: "std_msgs/String", MD5Sum: "abc123"}
			Expect(e.Write("/chatter", Time{Sec: 6}, []byte{6}, desc, nil)).To(Succeed())
			Expect(e.Close()).To(Succeed())

			r := New()
			Expect(r.Open(path, ModeRead)).To(Succeed())
			defer r.Close()

			v := NewView([]*Engine{r}, []string{"/chatter"}, Time{}, Time{})
			Expect(v.Size()).To(Equal(6))
		})
	})

	Context("closing twice", func() {
		BeforeEach(func() { writeSample(CompressionNone) })

		It("is idempotent", func() {
			e := New()
			Expect(e.Open(path, ModeRead)).To(Succeed())
			Expect(e.Close()).To(Succeed())
			Expect(e.Close()).To(Succeed())
			Expect(e.IsOpen()).To(BeFalse())
		})
	})

	Context("rejecting a message timestamped before TimeMin", func() {
		It("returns InvalidArgumentError", func() {
			e := New()
			Expect(e.Open(path, ModeWrite)).To(Succeed())
			defer e.Close()

			err := e.Write("/chatter", Time{}, []byte{1}, MessageDescriptor{}, nil)
			Expect(err).To(BeAssignableToTypeOf(&InvalidArgumentError{}))
		})
	})

	Context("reading a bag written with the age encryptor", func() {
		It("round-trips when reopened with the right identity", func() {
			id, err := age.GenerateX25519Identity()
			Expect(err).ToNot(HaveOccurred())

			w := New()
			Expect(w.SetEncryptorPlugin("age", id.String())).To(Succeed())
			Expect(w.Open(path, ModeWrite)).To(Succeed())
			Expect(w.Write("/chatter", Time{Sec: 1}, []byte("secret"), MessageDescriptor{}, nil)).To(Succeed())
			Expect(w.Close()).To(Succeed())

			r := New()
			Expect(r.SetEncryptorPlugin("age", id.String())).To(Succeed())
			Expect(r.Open(path, ModeRead)).To(Succeed())
			defer r.Close()

			q := NewView([]*Engine{r}, nil, Time{}, Time{}).Query()
			msg, ok, err := q.Next()
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(msg.Data()).To(Equal([]byte("secret")))
		})

		It("fails to open with the wrong identity", func() {
			id, err := age.GenerateX25519Identity()
			Expect(err).ToNot(HaveOccurred())

			w := New()
			Expect(w.SetEncryptorPlugin("age", id.String())).To(Succeed())
			Expect(w.Open(path, ModeWrite)).To(Succeed())
			Expect(w.Write("/chatter", Time{Sec: 1}, []byte("secret"), MessageDescriptor{}, nil)).To(Succeed())
			Expect(w.Close()).To(Succeed())

			wrong, err := age.GenerateX25519Identity()
			Expect(err).ToNot(HaveOccurred())

			r := New()
			Expect(r.SetEncryptorPlugin("age", wrong.String())).To(Succeed())
			Expect(r.Open(path, ModeRead)).To(HaveOccurred())
		})
	})

	Context("opening a file with a bad magic line", func() {
		It("returns a FormatError", func() {
			Expect(os.WriteFile(path, []byte("not a bag file"), 0o644)).To(Succeed())

			e := New()
			err := e.Open(path, ModeRead)
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(&FormatError{}))
		})
	})
})
