// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Encryptor is the pluggable hook the engine calls at four points: once per
// chunk to encrypt/decrypt its compressed body, and once per chunk record
// to encrypt/decrypt just that record's header block. It mirrors
// EncryptorBase in the original engine.
//
// Implementations must be safe for use by a single Engine at a time; the
// engine never calls an Encryptor from more than one goroutine
// concurrently, matching the single-threaded engine model.
type Encryptor interface {
	// Initialize is called once per instance: by Engine.SetEncryptorPlugin
	// with the caller's plugin-specific parameter, or, when Open selects the
	// plugin from a file header's "encryptor" field, with an empty
	// parameter (see selectEncryptorFromFileHeader).
	Initialize(param string) error

	// EncryptChunk encrypts plaintext (a whole compressed chunk body) and
	// returns the ciphertext to write to the chunk record's data section.
	EncryptChunk(plaintext []byte) ([]byte, error)

	// DecryptChunk reverses EncryptChunk, given the chunk record's header
	// fields (so an implementation can, e.g., read a per-chunk nonce it
	// stashed there) and the ciphertext read from the data section.
	DecryptChunk(header RecordHeader, ciphertext []byte) ([]byte, error)

	// AddFieldsToFileHeader is called while writing the file header, to let
	// the plugin stash whatever it needs to decrypt later (e.g. a wrapped
	// key) as additional header fields.
	AddFieldsToFileHeader(fields RecordHeader) error

	// ReadFieldsFromFileHeader is the read-side counterpart, called with
	// the file header's fields once it's been read back.
	ReadFieldsFromFileHeader(fields RecordHeader) error

	// EncryptHeader and DecryptHeader protect a single record's header
	// block. The engine calls them only for chunk records (see
	// writeRecordEncryptedHeader/readRecordEncryptedHeader); every other
	// record's header is written and read in plain form.
	EncryptHeader(plaintext []byte) ([]byte, error)
	DecryptHeader(ciphertext []byte) ([]byte, error)

	// Name returns the plugin's registered name, written to the file
	// header's "encryptor" field (see AddFieldsToFileHeader) so a reader
	// can look the plugin up again by name alone.
	Name() string
}

// EncryptorFactory constructs a fresh Encryptor instance. Plugins register
// a factory under a unique name; Engine.SetEncryptorPlugin looks the name
// up and calls Initialize with the caller's parameter.
type EncryptorFactory func() Encryptor

var (
	encryptorRegistryMu sync.RWMutex
	encryptorRegistry   = map[string]EncryptorFactory{}
)

// RegisterEncryptor makes a named Encryptor plugin available to
// Engine.SetEncryptorPlugin. It panics if name is already registered,
// matching the usual Go registry idiom (database/sql drivers, image
// decoders): a duplicate registration is a programming error, not a
// runtime condition to recover from.
func RegisterEncryptor(name string, factory EncryptorFactory) {
	encryptorRegistryMu.Lock()
	defer encryptorRegistryMu.Unlock()
	if _, dup := encryptorRegistry[name]; dup {
		panic(fmt.Sprintf("bag: RegisterEncryptor called twice for %q", name))
	}
	encryptorRegistry[name] = factory
}

// newEncryptor looks name up in the registry and constructs an instance.
func newEncryptor(name string) (Encryptor, error) {
	encryptorRegistryMu.RLock()
	factory, ok := encryptorRegistry[name]
	encryptorRegistryMu.RUnlock()
	if !ok {
		return nil, newInvalidArgumentError("unknown encryptor plugin %q", name)
	}
	return factory(), nil
}

// selectEncryptorFromFileHeader peeks fields' "encryptor" field (absent
// means "none") and, unless the caller already called SetEncryptorPlugin
// explicitly, swaps e.encryptor for the matching registered factory so
// ModeRead/ModeAppend never need to be told out of band which plugin wrote
// the file. The auto-selected instance is initialized with an empty
// parameter, which suffices for "none" and any other parameterless plugin;
// a plugin that needs a secret (e.g. age's identity) will fail Initialize,
// at which point the caller does need SetEncryptorPlugin — but only to
// supply that secret, not to name the plugin.
//
// If the caller did call SetEncryptorPlugin and its name disagrees with
// the file, that's a hard configuration error: the engine has the wrong
// key material, not a missing one.
func (e *Engine) selectEncryptorFromFileHeader(fields RecordHeader) error {
	name := "none"
	if v, ok := fields["encryptor"]; ok {
		name = string(v)
	}
	if name == e.encryptor.Name() {
		return nil
	}
	if e.encryptorSet {
		return newFormatError("file header specifies encryptor %q, but SetEncryptorPlugin configured %q", name, e.encryptor.Name())
	}
	enc, err := newEncryptor(name)
	if err != nil {
		return err
	}
	if err := enc.Initialize(""); err != nil {
		return errors.Wrapf(err, "bag: file header specifies encryptor plugin %q; call SetEncryptorPlugin(%q, <param>) before Open to supply its secret", name, name)
	}
	e.encryptor = enc
	return nil
}

func init() {
	RegisterEncryptor("none", func() Encryptor { return &noEncryptor{} })
	RegisterEncryptor("age", func() Encryptor { return newAgeEncryptor() })
}
