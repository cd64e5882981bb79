// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

// MessageInstance is one message read back out of a bag: its connection's
// metadata, its timestamp, and its raw payload. It corresponds to
// rosbag::MessageInstance, minus the templated instantiate<T>/write<Stream>
// methods — this package has no message-type system of its own, so callers
// get the payload as bytes and decode it themselves.
type MessageInstance struct {
	conn *ConnectionInfo
	time Time
	data []byte
}

// Time returns the message's timestamp.
func (m *MessageInstance) Time() Time { return m.time }

// Topic returns the topic the message was written to.
func (m *MessageInstance) Topic() string { return m.conn.Topic }

// DataType returns the connection's declared message type name.
func (m *MessageInstance) DataType() string { return m.conn.Descriptor.DataType }

// MD5Sum returns the connection's declared content hash.
func (m *MessageInstance) MD5Sum() string { return m.conn.Descriptor.MD5Sum }

// MessageDefinition returns the connection's declared wire definition.
func (m *MessageInstance) MessageDefinition() string { return m.conn.Descriptor.MessageDefinition }

// ConnectionHeader returns the caller-supplied header the connection was
// created with (nil if none was given).
func (m *MessageInstance) ConnectionHeader() RecordHeader { return m.conn.Header }

// CallerID returns the connection header's "callerid" field, or "" if
// absent.
func (m *MessageInstance) CallerID() string {
	if v, ok := m.conn.Header["callerid"]; ok {
		return string(v)
	}
	return ""
}

// Latching reports whether the connection header's "latching" field is
// "1", matching isLatching in message_instance.h.
func (m *MessageInstance) Latching() bool {
	v, ok := m.conn.Header["latching"]
	return ok && len(v) == 1 && v[0] == '1'
}

// IsType reports whether this message's declared type matches md5sum,
// matching message_instance.h's wildcard convention: a connection whose
// MD5Sum is "*" matches any requested type.
func (m *MessageInstance) IsType(md5sum string) bool {
	return m.conn.Descriptor.MD5Sum == "*" || m.conn.Descriptor.MD5Sum == md5sum
}

// Data returns the message's raw payload bytes.
func (m *MessageInstance) Data() []byte { return m.data }

// Size returns the length of the message's raw payload.
func (m *MessageInstance) Size() int { return len(m.data) }

// ConnectionID returns the id of the connection this message belongs to,
// for callers (like View) that need to correlate messages back to
// per-connection state without re-resolving by topic.
func (m *MessageInstance) ConnectionID() uint32 { return m.conn.ID }
