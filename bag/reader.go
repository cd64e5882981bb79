// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/seoulrobotics/rosbag-io/support/logging"
)

// noChunkCached is the chunkCachePos sentinel meaning "nothing decoded
// yet", distinct from any real position (which is always < the file's
// index_pos, itself > 0 for an indexed bag).
const noChunkCached = ^uint64(0)

// loadIndex reads a v2.00 bag's file header and trailing index section
// (connection records, chunk-info records, and each chunk's index-data
// records) into memory. It is the read-side counterpart of
// finalizeWrite/stopWritingChunk.
func (e *Engine) loadIndex() error {
	e.chunkCachePos = noChunkCached
	e.connectionIndexes = make(map[uint32]connectionIndex)

	rec, err := readRecord(e.file.f)
	if err != nil {
		return errors.Wrap(err, "bag: read file header")
	}
	if rec.Op != opFileHeader {
		return newFormatError("expected file header record, got op 0x%02x", rec.Op)
	}
	if err := e.selectEncryptorFromFileHeader(rec.Header); err != nil {
		return err
	}
	if err := e.encryptor.ReadFieldsFromFileHeader(rec.Header); err != nil {
		return err
	}
	e.fileHeaderEncFields = rec.Header

	indexPos, err := rec.Header.requireU64("index_pos")
	if err != nil {
		return err
	}
	e.indexPos = indexPos
	if e.indexPos == 0 {
		return &UnindexedBagError{Path: e.path}
	}

	if _, err := e.file.seek(int64(e.indexPos), io.SeekStart); err != nil {
		return err
	}

	e.connections = make(map[uint32]*ConnectionInfo)
	e.chunkInfos = e.chunkInfos[:0]
	var maxConnID uint32

	for {
		rec, err := readRecord(e.file.f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "bag: read trailing index record")
		}
		switch rec.Op {
		case opConnection:
			ci, err := decodeConnectionFields(rec.Header)
			if err != nil {
				return err
			}
			e.connections[ci.ID] = ci
			if ci.ID >= maxConnID {
				maxConnID = ci.ID + 1
			}
		case opChunkInfo:
			ci, err := decodeChunkInfoRecord(rec.Header, rec.Data)
			if err != nil {
				return err
			}
			e.chunkInfos = append(e.chunkInfos, ci)
		default:
			return newFormatError("unexpected op 0x%02x in trailing index section", rec.Op)
		}
	}
	e.nextConnID = maxConnID

	for _, ci := range e.chunkInfos {
		if err := e.loadChunkIndexData(ci); err != nil {
			return err
		}
	}
	for id, idx := range e.connectionIndexes {
		idx.sort()
		e.connectionIndexes[id] = idx
	}
	return nil
}

// loadChunkIndexData reads the index-data records written immediately
// after the chunk at ci.Pos — exactly len(ci.ConnectionCounts) of them,
// one per connection the chunk contains — without decompressing the
// chunk's own body.
func (e *Engine) loadChunkIndexData(ci ChunkInfo) error {
	if _, err := e.file.seek(int64(ci.Pos), io.SeekStart); err != nil {
		return err
	}
	chunkRec, err := readRecordEncryptedHeader(e.file.f, e.encryptor)
	if err != nil {
		return errors.Wrap(err, "bag: read chunk record header")
	}
	if chunkRec.Op != opChunk {
		return newFormatError("expected chunk record at 0x%x, got op 0x%02x", ci.Pos, chunkRec.Op)
	}

	for i := 0; i < len(ci.ConnectionCounts); i++ {
		rec, err := readRecord(e.file.f)
		if err != nil {
			return errors.Wrap(err, "bag: read index data record")
		}
		if rec.Op != opIndexData {
			return newFormatError("expected index data record after chunk 0x%x, got op 0x%02x", ci.Pos, rec.Op)
		}
		connID, err := rec.Header.requireU32("conn")
		if err != nil {
			return err
		}
		count, err := rec.Header.requireU32("count")
		if err != nil {
			return err
		}
		if len(rec.Data) != int(count)*12 {
			return newFormatError("index data record has %d bytes, expected %d for count=%d", len(rec.Data), count*12, count)
		}
		entries := e.connectionIndexes[connID]
		for j := uint32(0); j < count; j++ {
			b := rec.Data[j*12 : j*12+12]
			entries = append(entries, IndexEntry{
				Time:     Time{Sec: le32(b[0:4]), Nsec: le32(b[4:8])},
				ChunkPos: ci.Pos,
				Offset:   le32(b[8:12]),
			})
		}
		e.connectionIndexes[connID] = entries
	}
	return nil
}

func decodeConnectionFields(fields RecordHeader) (*ConnectionInfo, error) {
	id, err := fields.requireU32("conn")
	if err != nil {
		return nil, err
	}
	topic, err := fields.requireField("topic")
	if err != nil {
		return nil, err
	}
	dataType, _ := fields.headerField("type")
	md5sum, _ := fields.headerField("md5sum")
	msgDef, _ := fields.headerField("message_definition")

	header := make(RecordHeader, len(fields))
	for k, v := range fields {
		header[k] = v
	}
	delete(header, "conn")

	return &ConnectionInfo{
		ID:    id,
		Topic: string(topic),
		Descriptor: MessageDescriptor{
			DataType:          string(dataType),
			MD5Sum:            string(md5sum),
			MessageDefinition: string(msgDef),
		},
		Header: header,
	}, nil
}

func decodeChunkInfoRecord(fields RecordHeader, data []byte) (ChunkInfo, error) {
	pos, err := fields.requireU64("chunk_pos")
	if err != nil {
		return ChunkInfo{}, err
	}
	start, err := fields.requireTime("start_time")
	if err != nil {
		return ChunkInfo{}, err
	}
	end, err := fields.requireTime("end_time")
	if err != nil {
		return ChunkInfo{}, err
	}
	count, err := fields.requireU32("count")
	if err != nil {
		return ChunkInfo{}, err
	}
	if len(data) != int(count)*8 {
		return ChunkInfo{}, newFormatError("chunk info record has %d bytes, expected %d for count=%d", len(data), count*8, count)
	}

	counts := make(map[uint32]uint32, count)
	for i := uint32(0); i < count; i++ {
		b := data[i*8 : i*8+8]
		counts[le32(b[0:4])] = le32(b[4:8])
	}
	return ChunkInfo{Pos: pos, StartTime: start, EndTime: end, ConnectionCounts: counts}, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// readMessageAt decodes the message-data record located at entry's
// (ChunkPos, Offset) into a MessageInstance for conn, decompressing and
// caching the owning chunk if it isn't already the cached one.
func (e *Engine) readMessageAt(conn *ConnectionInfo, entry IndexEntry) (*MessageInstance, error) {
	if err := e.ensureChunkLoaded(entry.ChunkPos); err != nil {
		return nil, err
	}
	body := e.chunkCache.Bytes()
	if uint64(len(body)) < uint64(entry.Offset) {
		return nil, newFormatError("index entry offset %d beyond chunk body (%d bytes)", entry.Offset, len(body))
	}
	rec, err := readRecord(bytes.NewReader(body[entry.Offset:]))
	if err != nil {
		return nil, errors.Wrap(err, "bag: read message data record")
	}
	if rec.Op != opMessageData {
		return nil, newFormatError("index entry points at op 0x%02x, expected message data", rec.Op)
	}
	return &MessageInstance{
		conn: conn,
		time: entry.Time,
		data: rec.Data,
	}, nil
}

// ensureChunkLoaded decompresses (and decrypts) the chunk at pos into the
// single-slot cache, unless it's there already.
//
// Because it mutates the cache and the file cursor, every read through an
// Engine is exclusive, even though it is logically read-only: one Engine
// must not serve reads from several goroutines at once, and concurrent
// readers need separate Engine instances.
func (e *Engine) ensureChunkLoaded(pos uint64) error {
	if e.chunkCachePos == pos {
		return nil
	}
	chunkCacheMisses.Inc()
	chunksRead.Inc()
	if _, err := e.file.seek(int64(pos), io.SeekStart); err != nil {
		return err
	}
	rec, err := readRecordEncryptedHeader(e.file.f, e.encryptor)
	if err != nil {
		return errors.Wrap(err, "bag: read chunk record")
	}
	if rec.Op != opChunk {
		return newFormatError("expected chunk record at 0x%x, got op 0x%02x", pos, rec.Op)
	}

	hdr, err := decodeChunkHeader(rec.Header)
	if err != nil {
		return err
	}

	plaintext, err := e.encryptor.DecryptChunk(rec.Header, rec.Data)
	if err != nil {
		encryptionErrors.WithLabelValues("DecryptChunk").Inc()
		logging.Must(e.Logger).Errorf("bag: DecryptChunk failed for %q at 0x%x: %v", e.path, pos, err)
		return newEncryptionError("DecryptChunk", err)
	}

	var body []byte
	switch hdr.Compression {
	case CompressionNone:
		body = plaintext
	case CompressionLZ4:
		body, err = lz4DecompressBlock(plaintext, int(hdr.UncompressedSize))
	case CompressionBZ2:
		body, err = bz2DecompressBlock(plaintext, int(hdr.UncompressedSize))
	default:
		return newInvalidArgumentError("unknown chunk compression field %q", hdr.Compression)
	}
	if err != nil {
		return err
	}

	e.chunkCache.Reset()
	copy(e.chunkCache.Grow(len(body)), body)
	e.chunkCachePos = pos
	return nil
}

func parseCompressionField(fields RecordHeader) (Compression, error) {
	v, err := fields.requireField("compression")
	if err != nil {
		return 0, err
	}
	return ParseCompression(string(v))
}

// loadLegacyIndex reads a v1.02 bag, which predates the chunk/chunk-info
// layout entirely: connection and message-data records are written flat,
// one after another, with no compression and no trailing index section.
// Every message-data record carries its own connection id and time inline,
// so the whole file is scanned once to rebuild connectionIndexes; v1.02
// bags are read-only in this package (see open.go).
func (e *Engine) loadLegacyIndex() error {
	e.chunkCachePos = noChunkCached
	e.connections = make(map[uint32]*ConnectionInfo)
	e.connectionIndexes = make(map[uint32]connectionIndex)
	e.chunkInfos = nil
	e.indexPos = 0
	var maxConnID uint32

	for {
		pos, err := e.file.offset()
		if err != nil {
			return err
		}
		rec, err := readRecord(e.file.f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "bag: read legacy record")
		}
		switch rec.Op {
		case opFileHeader:
			// v1.02 also starts with a (here unused) file header record.
		case opConnection:
			ci, err := decodeConnectionFields(rec.Header)
			if err != nil {
				return err
			}
			e.connections[ci.ID] = ci
			if ci.ID >= maxConnID {
				maxConnID = ci.ID + 1
			}
		case opMessageData:
			connID, err := rec.Header.requireU32("conn")
			if err != nil {
				return err
			}
			t, err := rec.Header.requireTime("time")
			if err != nil {
				return err
			}
			e.connectionIndexes[connID] = append(e.connectionIndexes[connID], IndexEntry{
				Time:     t,
				ChunkPos: uint64(pos),
				Offset:   0,
			})
		default:
			return newFormatError("unexpected op 0x%02x in v1.02 bag", rec.Op)
		}
	}

	for id, idx := range e.connectionIndexes {
		idx.sort()
		e.connectionIndexes[id] = idx
	}
	e.nextConnID = maxConnID
	return nil
}

// readLegacyMessageAt reads a v1.02 message-data record directly from its
// absolute file position (legacy bags have no chunks to cache).
func (e *Engine) readLegacyMessageAt(conn *ConnectionInfo, entry IndexEntry) (*MessageInstance, error) {
	if _, err := e.file.seek(int64(entry.ChunkPos), io.SeekStart); err != nil {
		return nil, err
	}
	rec, err := readRecord(e.file.f)
	if err != nil {
		return nil, err
	}
	if rec.Op != opMessageData {
		return nil, newFormatError("expected message data record at 0x%x, got op 0x%02x", entry.ChunkPos, rec.Op)
	}
	return &MessageInstance{conn: conn, time: entry.Time, data: rec.Data}, nil
}

// ReadMessage is the low-level single-message accessor used by View: it
// dispatches to the chunked or legacy read path depending on the bag's
// on-disk format.
func (e *Engine) ReadMessage(connID uint32, entry IndexEntry) (*MessageInstance, error) {
	conn, ok := e.connections[connID]
	if !ok {
		return nil, newFormatError("index entry references unknown connection %d", connID)
	}
	if e.majorVersion == legacyFormatMajor {
		return e.readLegacyMessageAt(conn, entry)
	}
	return e.readMessageAt(conn, entry)
}
