// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import "sort"

// Compression names a chunk's on-disk compression codec.
type Compression int

const (
	// CompressionNone stores chunk bytes verbatim.
	CompressionNone Compression = iota
	// CompressionBZ2 compresses a chunk as a single bzip2 block.
	CompressionBZ2
	// CompressionLZ4 compresses a chunk as a single LZ4 block.
	CompressionLZ4
)

// compressionName/compressionValue mirror the teacher's
// Compression_name/Compression_value maps (streamfile's protobuf enum),
// adapted to the three codecs this format actually specifies.
var compressionName = map[Compression]string{
	CompressionNone: "none",
	CompressionBZ2:  "bz2",
	CompressionLZ4:  "lz4",
}

var compressionValue = map[string]Compression{
	"none": CompressionNone,
	"bz2":  CompressionBZ2,
	"lz4":  CompressionLZ4,
}

// String implements fmt.Stringer.
func (c Compression) String() string {
	if s, ok := compressionName[c]; ok {
		return s
	}
	return "unknown"
}

// ParseCompression parses a compression name as written in the "compression"
// header field. It returns InvalidArgumentError on an unrecognized name.
func ParseCompression(s string) (Compression, error) {
	if c, ok := compressionValue[s]; ok {
		return c, nil
	}
	return 0, newInvalidArgumentError("unknown compression type: %q", s)
}

// MessageDescriptor carries the caller-supplied type metadata for a
// connection: the payload's type name, content hash, and wire definition.
// The engine treats all three as opaque strings; it never interprets them.
type MessageDescriptor struct {
	DataType          string
	MD5Sum            string
	MessageDefinition string
}

// RecordHeader is the decoded field set of a single record: an ASCII field
// name mapped to its raw value bytes. It mirrors ros::M_string: a map of
// byte strings, not a typed struct, because spec.md defines the header as
// an open set of name=value entries.
type RecordHeader map[string][]byte

// ConnectionInfo describes one connection: a topic plus the message type
// metadata and optional caller-supplied header that were in effect the first
// time a message was written to it.
type ConnectionInfo struct {
	ID         uint32
	Topic      string
	Descriptor MessageDescriptor
	Header     RecordHeader
}

// connectionKey identifies a ConnectionInfo for deduplication during
// writing. Two writes produce the same ConnectionInfo iff they key the same:
// by topic alone (no caller header), or by a caller header that has had
// "topic" forced into it (so otherwise-identical headers on distinct topics
// remain distinct connections, matching doWrite in bag.h).
type connectionKey string

// ChunkHeader is the decoded body of a chunk record's header fields:
// compression codec plus compressed/uncompressed sizes.
type ChunkHeader struct {
	Compression      Compression
	CompressedSize   uint32
	UncompressedSize uint32
}

// decodeChunkHeader parses a chunk record's header fields into a
// ChunkHeader.
func decodeChunkHeader(fields RecordHeader) (ChunkHeader, error) {
	c, err := parseCompressionField(fields)
	if err != nil {
		return ChunkHeader{}, err
	}
	size, err := fields.requireU32("size")
	if err != nil {
		return ChunkHeader{}, err
	}
	compressedSize, err := fields.requireU32("compressed_size")
	if err != nil {
		return ChunkHeader{}, err
	}
	return ChunkHeader{Compression: c, CompressedSize: compressedSize, UncompressedSize: size}, nil
}

// ChunkInfo is a bookkeeping snapshot of one chunk: its absolute file
// offset, the time range of the messages it contains, and how many messages
// of each connection it holds.
type ChunkInfo struct {
	Pos              uint64
	StartTime        Time
	EndTime          Time
	ConnectionCounts map[uint32]uint32
}

// newChunkInfo returns a ChunkInfo with its time range set to the sentinel
// "nothing recorded yet" values: StartTime is timeMaxSentinel and EndTime is
// timeMinSentinel, so the first observe call sets both to that message's
// time.
func newChunkInfo(pos uint64) ChunkInfo {
	return ChunkInfo{
		Pos:              pos,
		StartTime:        timeMaxSentinel,
		EndTime:          timeMinSentinel,
		ConnectionCounts: make(map[uint32]uint32),
	}
}

// observe widens ci's [StartTime,EndTime] range to include t, matching
// writeMessageDataRecord's time-range bookkeeping in bag.h.
func (ci *ChunkInfo) observe(t Time) {
	if t.After(ci.EndTime) {
		ci.EndTime = t
	}
	if t.Before(ci.StartTime) {
		ci.StartTime = t
	}
}

// IndexEntry locates one message: its timestamp, the chunk (or, for legacy
// v1.02 bags, message record) containing it, and the byte offset within the
// uncompressed chunk where its message-data record begins.
type IndexEntry struct {
	Time     Time
	ChunkPos uint64
	Offset   uint32
}

// indexEntryLess orders IndexEntry values by (Time, ChunkPos, Offset),
// matching the original engine's std::multiset<IndexEntry> ordering
// (structures.h's operator< over the same triple). Equal-time entries are
// resolved by chunk position and then by offset, giving a deterministic,
// stable total order.
func indexEntryLess(a, b IndexEntry) bool {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c < 0
	}
	if a.ChunkPos != b.ChunkPos {
		return a.ChunkPos < b.ChunkPos
	}
	return a.Offset < b.Offset
}

// connectionIndex is a per-connection, time-ordered list of IndexEntry.
// It is sorted after every bulk ingestion (reader path) and kept in sorted
// insertion order incrementally while writing in Append mode, matching
// invariant 1 of spec.md §3.
type connectionIndex []IndexEntry

func (idx connectionIndex) sort() {
	sort.Slice(idx, func(i, j int) bool { return indexEntryLess(idx[i], idx[j]) })
}

// insertSorted inserts e into idx, which must already be sorted, preserving
// order. This is used by the writer path, which appends one entry per write
// and must keep connection_indexes_ ordered for in-process Append queries.
func (idx connectionIndex) insertSorted(e IndexEntry) connectionIndex {
	i := sort.Search(len(idx), func(i int) bool { return !indexEntryLess(idx[i], e) })
	idx = append(idx, IndexEntry{})
	copy(idx[i+1:], idx[i:])
	idx[i] = e
	return idx
}

// firstAtOrAfter returns the index of the first entry in the (sorted) idx
// whose time is >= t, or len(idx) if none qualifies.
func (idx connectionIndex) firstAtOrAfter(t Time) int {
	return sort.Search(len(idx), func(i int) bool { return !idx[i].Time.Before(t) })
}

// firstAfter returns the index of the first entry in the (sorted) idx
// whose time is > t, or len(idx) if none qualifies. Combined with
// firstAtOrAfter, idx[firstAtOrAfter(start):firstAfter(end)] is exactly the
// entries in [start, end].
func (idx connectionIndex) firstAfter(t Time) int {
	return sort.Search(len(idx), func(i int) bool { return idx[i].Time.After(t) })
}
