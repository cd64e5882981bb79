// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/seoulrobotics/rosbag-io/support/logging"
)

// Open opens the bag at path in the given mode. In ModeWrite it creates (or
// truncates) the file and writes a placeholder file-header record,
// matching openWrite in bag.h. In ModeRead and ModeAppend it reads the
// magic line and file header, then loads the trailing index section; in
// ModeAppend the file is then repositioned so further writes land after the
// last chunk.
func (e *Engine) Open(path string, mode Mode) error {
	if e.IsOpen() {
		return newInvalidArgumentError("Open: engine is already open")
	}

	switch mode {
	case ModeWrite:
		if err := e.openWrite(path); err != nil {
			return err
		}
	case ModeRead, ModeAppend:
		if err := e.openReadOrAppend(path, mode); err != nil {
			return err
		}
	default:
		return newInvalidArgumentError("Open: unknown mode %v", mode)
	}

	e.path = path
	e.mode = mode
	return nil
}

// Close flushes and finalizes the bag. In ModeWrite and ModeAppend this
// closes any open chunk, writes the trailing connection/chunk-info/index
// records, and patches the file header's index_pos field. Close is
// idempotent: calling it on an already-closed Engine is a no-op, matching
// the original engine's destructor semantics extended to an explicit Close.
func (e *Engine) Close() error {
	if !e.IsOpen() {
		return nil
	}
	var closeErr error
	if e.mode != ModeRead {
		closeErr = e.finalizeWrite()
		if closeErr != nil {
			logging.Must(e.Logger).Errorf("bag: finalize %q failed: %v", e.path, closeErr)
		} else {
			logging.Must(e.Logger).Debugf("bag: closed %q, %d messages written this session", e.path, e.revision)
		}
	}
	if err := e.file.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	e.file = nil
	return closeErr
}

func (e *Engine) openWrite(path string) error {
	f, err := openChunkedFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "bag: open for write")
	}
	e.file = f
	e.majorVersion = formatMajorVersion
	e.minorVersion = formatMinorVersion
	e.indexPos = 0
	e.fileHeaderEncFields = make(RecordHeader)
	if err := e.encryptor.AddFieldsToFileHeader(e.fileHeaderEncFields); err != nil {
		return err
	}

	magicLine := fmt.Sprintf("%s%d.%02d\n", magicPrefix, formatMajorVersion, formatMinorVersion)
	if _, err := f.f.WriteString(magicLine); err != nil {
		return errors.Wrap(err, "bag: write magic")
	}
	e.magicLen = int64(len(magicLine))
	// A placeholder file-header record reserves its own size on disk;
	// Close rewrites it in place once index_pos and connection/chunk
	// counts are known, matching writeFileHeaderRecord's two-pass use in
	// bag.h (empty fields reserve space, a later call overwrites them).
	if err := e.writeFileHeaderRecord(); err != nil {
		return errors.Wrap(err, "bag: write file header placeholder")
	}
	logging.Must(e.Logger).Debugf("bag: opened %q for write, compression=%s, encryptor=%s", path, e.compression, e.encryptor.Name())
	return nil
}

func (e *Engine) openReadOrAppend(path string, mode Mode) error {
	flag := os.O_RDONLY
	if mode == ModeAppend {
		flag = os.O_RDWR
	}
	f, err := openChunkedFile(path, flag, 0o644)
	if err != nil {
		return errors.Wrap(err, "bag: open for read")
	}
	e.file = f

	major, minor, magicLen, err := readMagic(f.f)
	if err != nil {
		return err
	}
	e.majorVersion, e.minorVersion = major, minor
	e.magicLen = magicLen

	switch {
	case major == legacyFormatMajor && minor == legacyFormatMinor:
		logging.Must(e.Logger).Warnf("bag: %q is a legacy v%d.%02d bag; scanning the whole file to rebuild its index", path, major, minor)
		if err := e.loadLegacyIndex(); err != nil {
			return err
		}
	case major == formatMajorVersion:
		if err := e.loadIndex(); err != nil {
			return err
		}
	default:
		return newFormatError("unsupported bag format version %d.%02d", major, minor)
	}

	if mode == ModeAppend {
		if err := e.prepareAppend(); err != nil {
			return err
		}
	}
	logging.Must(e.Logger).Debugf("bag: opened %q in %s mode, %d connections, %d chunks", path, mode, len(e.connections), len(e.chunkInfos))
	return nil
}

// readMagic reads and parses the "#ROSBAG Vmajor.minor\n" line the format
// requires as the first bytes of every bag file.
func readMagic(f *os.File) (major, minor int, lineLen int64, err error) {
	br := bufio.NewReaderSize(f, 32)
	line, err := br.ReadString('\n')
	if err != nil {
		return 0, 0, 0, newFormatError("cannot read magic line: %v", err)
	}
	// br may have buffered past the line into the file header; rewind to
	// just after the newline so subsequent reads through f see the right
	// bytes. bufio's internal read-ahead means we can't just trust f's
	// cursor here.
	if _, err := f.Seek(int64(len(line)), 0); err != nil {
		return 0, 0, 0, err
	}
	lineLen = int64(len(line))

	line = strings.TrimSuffix(line, "\n")
	if !strings.HasPrefix(line, magicPrefix) {
		return 0, 0, 0, newFormatError("bad magic line %q", line)
	}
	verStr := strings.TrimPrefix(line, magicPrefix)
	dot := strings.IndexByte(verStr, '.')
	if dot < 0 {
		return 0, 0, 0, newFormatError("bad version in magic line %q", line)
	}
	major64, err := strconv.ParseInt(verStr[:dot], 10, 32)
	if err != nil {
		return 0, 0, 0, newFormatError("bad major version in magic line %q", line)
	}
	minor64, err := strconv.ParseInt(verStr[dot+1:], 10, 32)
	if err != nil {
		return 0, 0, 0, newFormatError("bad minor version in magic line %q", line)
	}
	return int(major64), int(minor64), lineLen, nil
}
