// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	chunksWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bag_chunks_written",
		Help: "Count of chunk records written across all engines.",
	})

	messagesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bag_messages_written",
		Help: "Count of messages written, by compression codec.",
	}, []string{"compression"})

	bytesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bag_bytes_written",
		Help: "Count of compressed chunk bytes written, by compression codec.",
	}, []string{"compression"})

	chunksRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bag_chunks_read",
		Help: "Count of chunk bodies decompressed while reading.",
	})

	chunkCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bag_chunk_cache_misses",
		Help: "Count of reads that required decompressing a chunk not already cached.",
	})

	encryptionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bag_encryption_errors",
		Help: "Count of Encryptor hook failures, by operation.",
	}, []string{"op"})
)

// RegisterMonitoring registers this package's monitoring metrics with reg.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		chunksWritten,
		messagesWritten,
		bytesWritten,
		chunksRead,
		chunkCacheMisses,
		encryptionErrors,
	)
}
