// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"github.com/pkg/errors"

	"github.com/seoulrobotics/rosbag-io/support/logging"
)

// Write appends one message to the bag. topic identifies the connection;
// desc carries the connection's type metadata (only consulted the first
// time topic is seen); header, if non-nil, is a caller-supplied connection
// header — "topic" is forced into a copy of it, matching doWrite's
// constructConnInfo in bag.h, so the same logical connection header reused
// across two different topics still produces two distinct connections.
//
// Write is only valid in ModeWrite and ModeAppend.
func (e *Engine) Write(topic string, t Time, data []byte, desc MessageDescriptor, header RecordHeader) error {
	if !e.IsOpen() {
		return errEngineNotOpen
	}
	if e.mode == ModeRead {
		return newInvalidArgumentError("Write: bag opened read-only")
	}
	if t.Before(TimeMin) {
		return newInvalidArgumentError("Write: time %s is before TimeMin", t)
	}

	connID, err := e.resolveConnection(topic, desc, header)
	if err != nil {
		return err
	}

	if !e.file.chunkOpen() {
		if err := e.startWritingChunk(); err != nil {
			return err
		}
	}

	if !e.curChunkConns[connID] {
		ci := e.connections[connID]
		fields := buildConnectionFields(ci)
		if err := e.file.appendToChunk(encodeRecord(opConnection, fields, nil)); err != nil {
			return err
		}
		e.curChunkConns[connID] = true
	}

	offset := uint32(e.file.chunkSize())
	msgFields := RecordHeader{}
	putU32Field(msgFields, "conn", connID)
	putTimeField(msgFields, "time", t)
	if err := e.file.appendToChunk(encodeRecord(opMessageData, msgFields, data)); err != nil {
		return err
	}

	entry := IndexEntry{Time: t, ChunkPos: e.curChunkPos, Offset: offset}
	e.curChunkEntries[connID] = append(e.curChunkEntries[connID], entry)
	e.connectionIndexes[connID] = e.connectionIndexes[connID].insertSorted(entry)

	e.curChunkInfo.observe(t)
	e.curChunkInfo.ConnectionCounts[connID]++
	e.revision++
	messagesWritten.WithLabelValues(e.compression.String()).Inc()

	if uint32(e.file.chunkSize()) >= e.chunkThreshold {
		if err := e.stopWritingChunk(); err != nil {
			return err
		}
	}
	return nil
}

// encodeRecord is encodeHeaderFields plus the data-length/data framing,
// returned as a single slice suitable for appending directly into a chunk
// buffer (as opposed to writeRecord, which streams straight to an
// io.Writer).
func encodeRecord(op opcode, fields RecordHeader, data []byte) []byte {
	header := encodeHeaderFields(op, fields)
	out := make([]byte, 0, 4+len(header)+4+len(data))
	out = appendU32(out, uint32(len(header)))
	out = append(out, header...)
	out = appendU32(out, uint32(len(data)))
	out = append(out, data...)
	return out
}

func appendU32(dst []byte, v uint32) []byte {
	return append(dst, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// resolveConnection returns the connection id for topic/desc/header,
// minting a new ConnectionInfo the first time this key is seen.
func (e *Engine) resolveConnection(topic string, desc MessageDescriptor, header RecordHeader) (uint32, error) {
	key, effHeader := connectionKeyFor(topic, header)
	if id, ok := e.connectionIDs[key]; ok {
		return id, nil
	}

	id := e.nextConnID
	e.nextConnID++
	e.connections[id] = &ConnectionInfo{
		ID:         id,
		Topic:      topic,
		Descriptor: desc,
		Header:     effHeader,
	}
	e.connectionIDs[key] = id
	return id, nil
}

// connectionKeyFor derives the connectionKey for a write and returns the
// connection header that should be stored on the ConnectionInfo: header
// itself if nil, otherwise a copy with "topic" forced to topic.
func connectionKeyFor(topic string, header RecordHeader) (connectionKey, RecordHeader) {
	if header == nil {
		return connectionKey("t:" + topic), nil
	}
	copied := make(RecordHeader, len(header)+1)
	for k, v := range header {
		copied[k] = v
	}
	copied["topic"] = []byte(topic)

	// The key must not depend on field order. Go map iteration order
	// varies, so instead of iterating copied directly, key on a canonical
	// dump of its fields sorted by name (see canonicalHeaderBytes).
	return connectionKey("h:" + string(canonicalHeaderBytes(copied))), copied
}

func canonicalHeaderBytes(h RecordHeader) []byte {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sortStrings(names)
	var out []byte
	for _, name := range names {
		out = append(out, name...)
		out = append(out, '=')
		out = append(out, h[name]...)
		out = append(out, 0)
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// buildConnectionFields assembles the header fields written for both the
// inline (in-chunk) and trailing copies of a connection record.
func buildConnectionFields(ci *ConnectionInfo) RecordHeader {
	fields := RecordHeader{}
	for k, v := range ci.Header {
		fields[k] = v
	}
	putU32Field(fields, "conn", ci.ID)
	fields["topic"] = []byte(ci.Topic)
	fields["type"] = []byte(ci.Descriptor.DataType)
	fields["md5sum"] = []byte(ci.Descriptor.MD5Sum)
	fields["message_definition"] = []byte(ci.Descriptor.MessageDefinition)
	return fields
}

// startWritingChunk begins a new chunk at the file's current write cursor.
func (e *Engine) startWritingChunk() error {
	pos, err := e.file.offset()
	if err != nil {
		return err
	}
	e.curChunkPos = uint64(pos)
	info := newChunkInfo(e.curChunkPos)
	e.curChunkInfo = &info
	e.curChunkConns = make(map[uint32]bool)
	e.curChunkEntries = make(map[uint32][]IndexEntry)
	return e.file.beginChunk(e.compression)
}

// stopWritingChunk compresses and encrypts the accumulated chunk, writes
// its chunk record, writes one index-data record per connection present in
// the chunk, and records the chunk's summary in e.chunkInfos.
func (e *Engine) stopWritingChunk() error {
	compressed, uncompressedSize, err := e.file.finishChunk()
	if err != nil {
		return err
	}

	ciphertext, err := e.encryptor.EncryptChunk(compressed)
	if err != nil {
		encryptionErrors.WithLabelValues("EncryptChunk").Inc()
		logging.Must(e.Logger).Errorf("bag: EncryptChunk failed for %q: %v", e.path, err)
		return newEncryptionError("EncryptChunk", err)
	}
	chunksWritten.Inc()
	bytesWritten.WithLabelValues(e.compression.String()).Add(float64(len(ciphertext)))

	fields := RecordHeader{}
	fields["compression"] = []byte(e.compression.String())
	putU32Field(fields, "size", uncompressedSize)
	putU32Field(fields, "compressed_size", uint32(len(ciphertext)))

	if err := writeRecordEncryptedHeader(e.file.f, opChunk, fields, ciphertext, e.encryptor); err != nil {
		return errors.Wrap(err, "bag: write chunk record")
	}

	for connID, entries := range e.curChunkEntries {
		idxFields := RecordHeader{}
		putU32Field(idxFields, "ver", 1)
		putU32Field(idxFields, "conn", connID)
		putU32Field(idxFields, "count", uint32(len(entries)))

		data := make([]byte, 0, len(entries)*12)
		for _, entry := range entries {
			data = appendU32(data, entry.Time.Sec)
			data = appendU32(data, entry.Time.Nsec)
			data = appendU32(data, entry.Offset)
		}
		if err := writeRecord(e.file.f, opIndexData, idxFields, data); err != nil {
			return errors.Wrap(err, "bag: write index data record")
		}
	}

	e.chunkInfos = append(e.chunkInfos, *e.curChunkInfo)
	e.curChunkInfo = nil
	e.curChunkConns = nil
	e.curChunkEntries = nil
	return nil
}

// writeFileHeaderRecord (re)writes the file header at e.magicLen, the
// position right after the magic line. Called once as a placeholder when
// opening for write, and again by finalizeWrite once index_pos and the
// connection/chunk counts are final. Both calls produce a header of
// identical byte length, since every field but the three below is fixed by
// fileHeaderEncFields at open time — so the second call never has to grow
// the record or touch anything past it.
func (e *Engine) writeFileHeaderRecord() error {
	fields := RecordHeader{}
	for k, v := range e.fileHeaderEncFields {
		fields[k] = v
	}
	putU64Field(fields, "index_pos", e.indexPos)
	putU32Field(fields, "conn_count", uint32(len(e.connections)))
	putU32Field(fields, "chunk_count", uint32(len(e.chunkInfos)))

	if _, err := e.file.f.Seek(e.magicLen, 0); err != nil {
		return err
	}
	return writeRecord(e.file.f, opFileHeader, fields, nil)
}

// finalizeWrite closes any open chunk, writes the trailing connection and
// chunk-info records, and patches the file header with the final
// index_pos/conn_count/chunk_count.
func (e *Engine) finalizeWrite() error {
	if e.file.chunkOpen() {
		if err := e.stopWritingChunk(); err != nil {
			return err
		}
	}

	pos, err := e.file.offset()
	if err != nil {
		return err
	}
	e.indexPos = uint64(pos)

	for _, connID := range e.sortedConnectionIDs() {
		fields := buildConnectionFields(e.connections[connID])
		if err := writeRecord(e.file.f, opConnection, fields, nil); err != nil {
			return errors.Wrap(err, "bag: write trailing connection record")
		}
	}

	for _, ci := range e.chunkInfos {
		fields := RecordHeader{}
		putU32Field(fields, "ver", 1)
		putU64Field(fields, "chunk_pos", ci.Pos)
		putTimeField(fields, "start_time", ci.StartTime)
		putTimeField(fields, "end_time", ci.EndTime)
		putU32Field(fields, "count", uint32(len(ci.ConnectionCounts)))

		data := make([]byte, 0, len(ci.ConnectionCounts)*8)
		for _, connID := range sortedUint32Keys(ci.ConnectionCounts) {
			data = appendU32(data, connID)
			data = appendU32(data, ci.ConnectionCounts[connID])
		}
		if err := writeRecord(e.file.f, opChunkInfo, fields, data); err != nil {
			return errors.Wrap(err, "bag: write chunk info record")
		}
	}

	endPos, err := e.file.offset()
	if err != nil {
		return err
	}
	if err := e.writeFileHeaderRecord(); err != nil {
		return err
	}
	// The new trailing section may be shorter than whatever it's
	// overwriting (ModeAppend with fewer connections/chunks than the file
	// originally had room for past indexPos), so truncate to the true end.
	return e.file.f.Truncate(endPos)
}

func sortedUint32Keys(m map[uint32]uint32) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// prepareAppend repositions the file so further Write calls land right
// where the trailing index section used to start, overwriting it; the
// index has already been loaded into memory by loadIndex/loadLegacyIndex,
// so nothing is lost.
func (e *Engine) prepareAppend() error {
	if e.indexPos == 0 {
		return &UnindexedBagError{Path: e.path}
	}
	if _, err := e.file.f.Seek(int64(e.indexPos), 0); err != nil {
		return err
	}

	// Match future Write calls back to the connections this bag already
	// has, by topic alone. A custom per-write connection header (see
	// connectionKeyFor) can no longer be distinguished once round-tripped
	// through disk, since the stored ConnectionInfo.Header always carries
	// the descriptor fields buildConnectionFields adds regardless of
	// whether the original writer passed a header; topic is the only
	// identity append can recover.
	for id, ci := range e.connections {
		e.connectionIDs[connectionKey("t:"+ci.Topic)] = id
	}
	return nil
}
