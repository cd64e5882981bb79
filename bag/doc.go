// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bag reads and writes a chunked, indexed, optionally compressed
// and optionally encrypted container format for time-stamped message
// streams.
//
// A bag is a single append-only file: a magic line, a file header record,
// a sequence of chunk records (each one a compressed block of connection
// and message-data records, followed by one index-data record per
// connection it contains), and a trailing index section of connection and
// chunk-info records that lets a reader rebuild the whole time index
// without scanning the chunks themselves.
//
// Engine is the single entry point for both directions: Open it in
// ModeWrite to produce a bag, ModeRead to consume one, or ModeAppend to
// resume writing one that was closed cleanly. View and Query merge one or
// more open, read-mode Engines into a single time-ordered stream.
package bag
