// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import "github.com/pierrec/lz4/v4"

// lz4CompressBlock compresses src into a single LZ4 block and returns it.
// A chunk is always compressed as one block, never as a frame: the record's
// own header already carries the compressed and uncompressed sizes, so the
// LZ4 frame format's self-describing container would be redundant.
func lz4CompressBlock(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, newCodecError(CompressionLZ4, err)
	}
	if n == 0 && len(src) > 0 {
		// Incompressible input: CompressBlock declines to emit an expanded
		// block. Fall back to storing src verbatim; the chunk header's
		// uncompressed size still lets the reader validate the round trip.
		return append([]byte(nil), src...), nil
	}
	return dst[:n], nil
}

// lz4DecompressBlock decompresses src, which holds exactly uncompressedSize
// bytes once expanded, into a freshly allocated slice.
func lz4DecompressBlock(src []byte, uncompressedSize int) ([]byte, error) {
	if len(src) == uncompressedSize {
		// lz4CompressBlock's incompressible-input fallback: src is already
		// the plain payload.
		return append([]byte(nil), src...), nil
	}
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, newCodecError(CompressionLZ4, err)
	}
	if n != uncompressedSize {
		return nil, newCodecError(CompressionLZ4, errShortLZ4Block)
	}
	return dst, nil
}

var errShortLZ4Block = newFormatError("lz4 block decompressed to an unexpected size")
