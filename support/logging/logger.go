// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package logging

// L accepts the three log levels bag.Engine actually emits at: errors
// (EncryptChunk/DecryptChunk/finalize failures), warnings (legacy-format
// bags), and debug-level lifecycle notes (open/close). Any
// f-suffixed logger whose method set covers these, zap's SugaredLogger
// among them via NewZap, satisfies L without an adapter.
type L interface {
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Nop discards everything; Must returns it in place of a nil L.
var Nop L = nopLogger{}

// Must returns l, or Nop if l is nil, so callers never need to guard a
// possibly-unset Engine.Logger before calling it.
func Must(l L) L {
	if l != nil {
		return l
	}
	return Nop
}

type nopLogger struct{}

func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) Warnf(format string, args ...interface{})  {}
func (nopLogger) Debugf(format string, args ...interface{}) {}
