// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// chunkedFileState distinguishes "accumulating a chunk in memory" from
// "idle", mirroring ChunkedFile's write/non-write distinction in the
// original engine.
type chunkedFileState int

const (
	chunkedFileIdle chunkedFileState = iota
	chunkedFileWriting
)

// chunkedFile wraps an *os.File with the buffered-whole-chunk-compression
// discipline the chunk record format requires: while a chunk is open,
// every record the writer path produces is appended to an in-memory Buffer
// instead of touching disk. finishChunk compresses that buffer as a single
// block and hands the bytes back to the caller, which still has to frame
// them as a chunk record (and optionally encrypt them) before writing them
// out — chunkedFile itself never writes chunk bytes to disk.
type chunkedFile struct {
	f     *os.File
	state chunkedFileState

	compression Compression
	pending     Buffer // accumulates appendToChunk calls while state == chunkedFileWriting
}

func openChunkedFile(path string, flag int, perm os.FileMode) (*chunkedFile, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return &chunkedFile{f: f, state: chunkedFileIdle}, nil
}

func (cf *chunkedFile) Close() error {
	return cf.f.Close()
}

// offset returns the underlying file's current cursor position, where the
// next direct (non-chunk) write or read would occur. Bytes buffered by
// appendToChunk are not counted: while a chunk is open the cursor still
// sits at the start of the (not yet written) chunk record. Offsets within
// an in-progress chunk body come from chunkSize instead (see writer.go's
// index-entry offsets).
func (cf *chunkedFile) offset() (int64, error) {
	return cf.f.Seek(0, io.SeekCurrent)
}

func (cf *chunkedFile) seek(pos int64, whence int) (int64, error) {
	if cf.state == chunkedFileWriting {
		return 0, errors.New("bag: cannot seek while a chunk is open for writing")
	}
	return cf.f.Seek(pos, whence)
}

// beginChunk starts accumulating a new chunk compressed with c. The file
// must be in the idle state.
func (cf *chunkedFile) beginChunk(c Compression) error {
	if cf.state != chunkedFileIdle {
		return errors.New("bag: chunkedFile: beginChunk called while already writing")
	}
	cf.compression = c
	cf.pending.Reset()
	cf.state = chunkedFileWriting
	return nil
}

// chunkOpen reports whether a chunk is currently being accumulated.
func (cf *chunkedFile) chunkOpen() bool { return cf.state == chunkedFileWriting }

// chunkSize returns the number of uncompressed bytes accumulated so far.
func (cf *chunkedFile) chunkSize() int { return cf.pending.Size() }

// appendToChunk appends p to the chunk being accumulated.
func (cf *chunkedFile) appendToChunk(p []byte) error {
	if cf.state != chunkedFileWriting {
		return errors.New("bag: chunkedFile: appendToChunk called while not writing")
	}
	copy(cf.pending.Grow(len(p)), p)
	return nil
}

// finishChunk compresses the accumulated chunk as a single block and
// returns to the idle state. The returned bytes are the chunk's would-be
// data section; the caller is responsible for encrypting them (if an
// Encryptor is configured) and framing them as a chunk record.
func (cf *chunkedFile) finishChunk() (compressed []byte, uncompressedSize uint32, err error) {
	if cf.state != chunkedFileWriting {
		return nil, 0, errors.New("bag: chunkedFile: finishChunk called while not writing")
	}
	defer func() {
		cf.pending.Reset()
		cf.state = chunkedFileIdle
	}()

	raw := cf.pending.Bytes()
	uncompressedSize = uint32(len(raw))

	switch cf.compression {
	case CompressionNone:
		compressed = append([]byte(nil), raw...)
	case CompressionLZ4:
		compressed, err = lz4CompressBlock(raw)
	case CompressionBZ2:
		compressed, err = bz2CompressBlock(raw)
	default:
		return nil, 0, newInvalidArgumentError("unknown compression %v", cf.compression)
	}
	return compressed, uncompressedSize, err
}
