// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import "github.com/pkg/errors"

// FormatError indicates a malformed record: a bad magic line, an unknown
// opcode, a missing required header field, a duplicated field, or a
// truncated file.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return "bag: format error: " + e.Msg }

func newFormatError(format string, args ...interface{}) error {
	return &FormatError{Msg: errors.Errorf(format, args...).Error()}
}

// UnindexedBagError indicates that a bag's file header reports
// index_pos == 0: the writer that produced the file aborted before Close,
// and no trailing connection/chunk-info records exist. The bag is only
// recoverable by scanning every record from the start, which this package
// does not implement.
type UnindexedBagError struct {
	Path string
}

func (e *UnindexedBagError) Error() string {
	return "bag: " + e.Path + " is unindexed (writer did not close cleanly)"
}

// CodecError indicates a compression or decompression failure.
type CodecError struct {
	Compression Compression
	Msg         string
}

func (e *CodecError) Error() string {
	return "bag: " + e.Compression.String() + " codec error: " + e.Msg
}

func newCodecError(c Compression, cause error) error {
	return &CodecError{Compression: c, Msg: cause.Error()}
}

// InvalidArgumentError indicates a caller-supplied argument was rejected:
// a Time before TimeMin, an unknown BagMode, an unknown compression name,
// or an unknown encryptor plugin name.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string { return "bag: invalid argument: " + e.Msg }

func newInvalidArgumentError(format string, args ...interface{}) error {
	return &InvalidArgumentError{Msg: errors.Errorf(format, args...).Error()}
}

// EncryptionError wraps a failure from an Encryptor hook.
type EncryptionError struct {
	Op  string
	Msg string
}

func (e *EncryptionError) Error() string {
	return "bag: encryptor." + e.Op + ": " + e.Msg
}

func newEncryptionError(op string, cause error) error {
	return &EncryptionError{Op: op, Msg: cause.Error()}
}
