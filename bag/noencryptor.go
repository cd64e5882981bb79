// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

// noEncryptor is the default Encryptor: every chunk and header hook is the
// identity function, and its only file-header contribution is
// "encryptor"="none". It is what Engine uses when the caller never calls
// SetEncryptorPlugin, matching the original engine's "no encryption
// configured" default.
type noEncryptor struct{}

func (*noEncryptor) Initialize(string) error                       { return nil }
func (*noEncryptor) EncryptChunk(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (*noEncryptor) DecryptChunk(_ RecordHeader, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}
func (*noEncryptor) AddFieldsToFileHeader(fields RecordHeader) error {
	fields["encryptor"] = []byte("none")
	return nil
}
func (*noEncryptor) ReadFieldsFromFileHeader(RecordHeader) error    { return nil }
func (*noEncryptor) EncryptHeader(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (*noEncryptor) DecryptHeader(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
func (*noEncryptor) Name() string                                   { return "none" }
