// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bytes"
	"io"

	"filippo.io/age"
)

// ageEncryptor is the built-in "age" Encryptor plugin. Its Initialize
// parameter is an age X25519 identity string (an "AGE-SECRET-KEY-1..."
// value, as produced by age.GenerateX25519Identity); every chunk body and
// every chunk record's header is sealed to that identity's public
// recipient, so the chunks of any bag written with this plugin can only be
// read back by a caller holding the matching secret key.
type ageEncryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

func newAgeEncryptor() *ageEncryptor {
	return &ageEncryptor{}
}

func (e *ageEncryptor) Initialize(param string) error {
	id, err := age.ParseX25519Identity(param)
	if err != nil {
		return newEncryptionError("Initialize", err)
	}
	e.identity = id
	e.recipient = id.Recipient()
	return nil
}

func (e *ageEncryptor) seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, newEncryptionError("seal", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		w.Close()
		return nil, newEncryptionError("seal", err)
	}
	if err := w.Close(); err != nil {
		return nil, newEncryptionError("seal", err)
	}
	return buf.Bytes(), nil
}

func (e *ageEncryptor) unseal(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, newEncryptionError("unseal", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, newEncryptionError("unseal", err)
	}
	return plaintext, nil
}

func (e *ageEncryptor) EncryptChunk(plaintext []byte) ([]byte, error) { return e.seal(plaintext) }

func (e *ageEncryptor) DecryptChunk(_ RecordHeader, ciphertext []byte) ([]byte, error) {
	return e.unseal(ciphertext)
}

func (e *ageEncryptor) EncryptHeader(plaintext []byte) ([]byte, error) { return e.seal(plaintext) }

func (e *ageEncryptor) DecryptHeader(ciphertext []byte) ([]byte, error) { return e.unseal(ciphertext) }

// AddFieldsToFileHeader records the plugin name under "encryptor" so a
// reader can look the factory up again without being told out of band, and
// stashes the recipient's public key string under "age_recipient", which
// ReadFieldsFromFileHeader checks against the configured identity; the
// recipient carries no secret material, since age recipients are public by
// design.
func (e *ageEncryptor) AddFieldsToFileHeader(fields RecordHeader) error {
	fields["encryptor"] = []byte(e.Name())
	fields["age_recipient"] = []byte(e.recipient.String())
	return nil
}

// ReadFieldsFromFileHeader verifies the file's recorded recipient matches
// the identity Initialize was given; a mismatch means the wrong secret key
// was supplied and DecryptChunk would fail anyway, so fail fast here.
func (e *ageEncryptor) ReadFieldsFromFileHeader(fields RecordHeader) error {
	v, ok := fields["age_recipient"]
	if !ok {
		return nil
	}
	if string(v) != e.recipient.String() {
		return newEncryptionError("ReadFieldsFromFileHeader", errAgeRecipientMismatch)
	}
	return nil
}

func (e *ageEncryptor) Name() string { return "age" }

var errAgeRecipientMismatch = newFormatError("age: file header recipient does not match configured identity")
