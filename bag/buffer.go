// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

// Buffer is a growable byte region reused across writes and reads to avoid
// allocation churn. It tracks a capacity (the backing array's length) and a
// size (the number of bytes currently considered valid), mirroring the
// original engine's Buffer type: getData/getCapacity/getSize/setSize.
//
// Buffer is move-only in spirit: copying a Buffer by value and mutating the
// copy will alias the same backing array, which is never what callers want.
// Pass *Buffer, never Buffer, and don't duplicate field-by-field.
type Buffer struct {
	data []byte
	size int
}

// Bytes returns the valid portion of the buffer: data[:size].
//
// The returned slice aliases the Buffer's backing array. It is only valid
// until the next call that grows the Buffer (SetSize to a larger size).
func (b *Buffer) Bytes() []byte {
	if b.data == nil {
		return nil
	}
	return b.data[:b.size]
}

// Capacity returns the length of the backing array.
func (b *Buffer) Capacity() int { return len(b.data) }

// Size returns the number of valid bytes.
func (b *Buffer) Size() int { return b.size }

// SetSize grows the buffer, if necessary, and sets its valid size to n.
//
// Growth doubles capacity (or grows to exactly fit n, whichever is larger)
// and never shrinks the backing array; shrinking SetSize calls just reduce
// the reported size, leaving the backing array (and its now-stale tail
// bytes) in place for reuse by a future grow.
func (b *Buffer) SetSize(n int) {
	if n > len(b.data) {
		newCap := len(b.data) * 2
		if newCap < n {
			newCap = n
		}
		grown := make([]byte, newCap)
		copy(grown, b.data[:b.size])
		b.data = grown
	}
	b.size = n
}

// Grow is SetSize(Size() + extra), returning the newly-available tail slice
// so the caller can write directly into it.
func (b *Buffer) Grow(extra int) []byte {
	start := b.size
	b.SetSize(start + extra)
	return b.data[start : start+extra]
}

// Reset truncates the buffer to size 0 without releasing its backing array.
func (b *Buffer) Reset() { b.size = 0 }

// Swap exchanges the contents of b and other. This is the Go analogue of the
// original engine's Buffer::swap, used so callers can hand off ownership of a
// backing array without a copy.
func (b *Buffer) Swap(other *Buffer) {
	b.data, other.data = other.data, b.data
	b.size, other.size = other.size, b.size
}
