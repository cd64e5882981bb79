// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bytes"
	"encoding/binary"
	"io"
)

// readFull reads from r until buf is full or an error other than a clean
// EOF right at the boundary is encountered; io.Reader is allowed to return
// less than len(buf) without erroring, so every length-prefixed field in
// this format's record framing reads through this instead of r.Read
// directly.
func readFull(r io.Reader, buf []byte) error {
	for len(buf) > 0 {
		n, err := r.Read(buf)
		buf = buf[n:]
		if err != nil {
			if err == io.EOF && len(buf) == 0 {
				return nil
			}
			return err
		}
	}
	return nil
}

// opcode identifies a record's kind. It is carried as the "op" header
// field, a single byte, and must be the first field written so a reader can
// dispatch before decoding the rest of the header.
type opcode byte

const (
	opFileHeader  opcode = 0x03
	opChunk       opcode = 0x05
	opConnection  opcode = 0x07
	opMessageData opcode = 0x02
	opIndexData   opcode = 0x04
	opChunkInfo   opcode = 0x06
)

// encodeHeaderFields serializes op and fields into a raw header block, "op"
// first, exactly as it would appear between a record's header-length prefix
// and its data-length prefix.
func encodeHeaderFields(op opcode, fields RecordHeader) []byte {
	var header bytes.Buffer
	writeField(&header, "op", []byte{byte(op)})
	for name, value := range fields {
		writeField(&header, name, value)
	}
	return header.Bytes()
}

// writeRecord writes one record to w: a header length, the header fields
// (each "name=value", "op" first), a data length, and the data bytes.
//
// fields must not contain the key "op"; op is always emitted as the first
// field, formatted as a single byte, matching the original engine's
// convention that op is written ahead of every other header field.
func writeRecord(w io.Writer, op opcode, fields RecordHeader, data []byte) error {
	header := encodeHeaderFields(op, fields)
	if err := writeU32(w, uint32(len(header))); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// writeRecordEncryptedHeader is writeRecord's counterpart for records whose
// header block is itself opaque ciphertext: it encodes the fields, runs the
// result through enc.EncryptHeader, and writes that instead. Only chunk
// records use this (writer.go's stopWritingChunk); every other record type's
// header stays in plain field=value form. Chunk positions are always known
// ahead of time from ChunkInfo.Pos, so a reader never has to opcode-dispatch
// an encrypted-header record blind the way it would a record discovered by
// sequential scan; see readRecordEncryptedHeader for the matching read side.
func writeRecordEncryptedHeader(w io.Writer, op opcode, fields RecordHeader, data []byte, enc Encryptor) error {
	raw := encodeHeaderFields(op, fields)
	header, err := enc.EncryptHeader(raw)
	if err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(header))); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readRecordEncryptedHeader reads one record whose header block is opaque
// ciphertext, decrypting it with enc before parsing fields out of it.
func readRecordEncryptedHeader(r io.Reader, enc Encryptor) (*decodedRecord, error) {
	headerLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	encHeader := make([]byte, headerLen)
	if err := readFull(r, encHeader); err != nil {
		return nil, newFormatError("truncated encrypted header: %v", err)
	}
	rawHeader, err := enc.DecryptHeader(encHeader)
	if err != nil {
		return nil, err
	}
	op, fields, err := decodeHeader(rawHeader)
	if err != nil {
		return nil, err
	}

	dataLen, err := readU32(r)
	if err != nil {
		return nil, newFormatError("truncated record: missing data length: %v", err)
	}
	data := make([]byte, dataLen)
	if err := readFull(r, data); err != nil {
		return nil, newFormatError("truncated record data: %v", err)
	}

	return &decodedRecord{Op: op, Header: fields, Data: data}, nil
}

func writeField(buf *bytes.Buffer, name string, value []byte) {
	fieldLen := len(name) + 1 + len(value)
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(fieldLen))
	buf.Write(lenBytes[:])
	buf.WriteString(name)
	buf.WriteByte('=')
	buf.Write(value)
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// decodedRecord is a record's header fields plus its data payload, read
// from a byte slice already known to hold exactly one record (e.g. the
// contents of a decompressed chunk, sliced at a record boundary).
type decodedRecord struct {
	Op     opcode
	Header RecordHeader
	Data   []byte
}

// decodeHeader parses the field=value entries of a raw header block
// (the bytes between the header-length prefix and the following
// data-length prefix), returning an error on any malformed or duplicated
// field. The "op" field, if present, is removed from the returned map and
// exposed as op.
func decodeHeader(raw []byte) (op opcode, fields RecordHeader, err error) {
	fields = make(RecordHeader)
	pos := 0
	for pos < len(raw) {
		if pos+4 > len(raw) {
			return 0, nil, newFormatError("truncated header field length")
		}
		fieldLen := binary.LittleEndian.Uint32(raw[pos : pos+4])
		pos += 4
		if uint64(pos)+uint64(fieldLen) > uint64(len(raw)) {
			return 0, nil, newFormatError("header field overruns header block")
		}
		field := raw[pos : pos+int(fieldLen)]
		pos += int(fieldLen)

		eq := bytes.IndexByte(field, '=')
		if eq < 0 {
			return 0, nil, newFormatError("header field missing '=': %q", field)
		}
		name := string(field[:eq])
		value := field[eq+1:]

		if name == "op" {
			if len(value) != 1 {
				return 0, nil, newFormatError("op field must be exactly one byte")
			}
			op = opcode(value[0])
			continue
		}
		if _, dup := fields[name]; dup {
			return 0, nil, newFormatError("duplicate header field %q", name)
		}
		fields[name] = append([]byte(nil), value...)
	}
	return op, fields, nil
}

// readRecord reads one full record (header length, header, data length,
// data) from r.
func readRecord(r io.Reader) (*decodedRecord, error) {
	headerLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	headerRaw := make([]byte, headerLen)
	if err := readFull(r, headerRaw); err != nil {
		return nil, newFormatError("truncated header: %v", err)
	}
	op, fields, err := decodeHeader(headerRaw)
	if err != nil {
		return nil, err
	}

	dataLen, err := readU32(r)
	if err != nil {
		return nil, newFormatError("truncated record: missing data length: %v", err)
	}
	data := make([]byte, dataLen)
	if err := readFull(r, data); err != nil {
		return nil, newFormatError("truncated record data: %v", err)
	}

	return &decodedRecord{Op: op, Header: fields, Data: data}, nil
}

// headerField is a convenience accessor that reports whether name is
// present, distinguishing "absent" from "present but empty".
func (h RecordHeader) headerField(name string) ([]byte, bool) {
	v, ok := h[name]
	return v, ok
}

func (h RecordHeader) requireField(name string) ([]byte, error) {
	v, ok := h[name]
	if !ok {
		return nil, newFormatError("missing required header field %q", name)
	}
	return v, nil
}

func (h RecordHeader) requireU32(name string) (uint32, error) {
	v, err := h.requireField(name)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, newFormatError("header field %q must be 4 bytes, got %d", name, len(v))
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (h RecordHeader) requireU64(name string) (uint64, error) {
	v, err := h.requireField(name)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, newFormatError("header field %q must be 8 bytes, got %d", name, len(v))
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (h RecordHeader) requireTime(name string) (Time, error) {
	v, err := h.requireField(name)
	if err != nil {
		return Time{}, err
	}
	if len(v) != 8 {
		return Time{}, newFormatError("header field %q must be 8 bytes, got %d", name, len(v))
	}
	return Time{
		Sec:  binary.LittleEndian.Uint32(v[:4]),
		Nsec: binary.LittleEndian.Uint32(v[4:]),
	}, nil
}

func putU32Field(fields RecordHeader, name string, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	fields[name] = b[:]
}

func putU64Field(fields RecordHeader, name string, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	fields[name] = b[:]
}

func putTimeField(fields RecordHeader, name string, t Time) {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[:4], t.Sec)
	binary.LittleEndian.PutUint32(b[4:], t.Nsec)
	fields[name] = b[:]
}
