// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// bz2CompressBlock compresses src as a single bzip2 stream and returns it.
// Like the LZ4 path, a chunk is compressed once, as a whole, on stop_write;
// there is no streaming bzip2 writer in this package, only this
// buffer-in-buffer-out helper.
func bz2CompressBlock(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	if err != nil {
		return nil, newCodecError(CompressionBZ2, err)
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return nil, newCodecError(CompressionBZ2, err)
	}
	if err := w.Close(); err != nil {
		return nil, newCodecError(CompressionBZ2, err)
	}
	return buf.Bytes(), nil
}

// bz2DecompressBlock decompresses src, a complete bzip2 stream, expecting
// exactly uncompressedSize bytes of output.
func bz2DecompressBlock(src []byte, uncompressedSize int) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(src), nil)
	if err != nil {
		return nil, newCodecError(CompressionBZ2, err)
	}
	defer r.Close()

	dst := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, dst); err != nil {
		return nil, newCodecError(CompressionBZ2, err)
	}
	return dst, nil
}
