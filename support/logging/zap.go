// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package logging

import "go.uber.org/zap"

// NewZap adapts a zap.SugaredLogger to L.
//
// l's method set already satisfies L; NewZap exists so callers don't need to
// depend on zap directly to obtain an L.
func NewZap(l *zap.SugaredLogger) L {
	if l == nil {
		return Nop
	}
	return zapLogger{l}
}

type zapLogger struct {
	*zap.SugaredLogger
}
