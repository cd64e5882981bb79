// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import "github.com/spf13/pflag"

var _ pflag.Value = (*CompressionFlag)(nil)

// CompressionFlag adapts Compression to pflag.Value, so a command-line
// tool can expose "--compression=lz4" the way the teacher's streamfile
// package exposes "--compression=snappy" via its own CompressionFlag.
type CompressionFlag struct {
	Compression Compression
}

// String implements pflag.Value.
func (f *CompressionFlag) String() string { return f.Compression.String() }

// Set implements pflag.Value.
func (f *CompressionFlag) Set(s string) error {
	c, err := ParseCompression(s)
	if err != nil {
		return err
	}
	f.Compression = c
	return nil
}

// Type implements pflag.Value.
func (f *CompressionFlag) Type() string { return "compression" }
