package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Validation failures. Both are wrapped with the offending size or signature.
var (
	ErrTooLarge = errors.New("source file too large")
	ErrBinary   = errors.New("file appears to be binary")
)

// DefaultMaxFileSize bounds the files handed to parser threads. Amalgamated
// sources such as sqlite3.c stay well below it.
const DefaultMaxFileSize = 16 << 20

// SourceValidator checks files before they are loaded into a parser thread.
// Build outputs that carry a source extension (precompiled headers, objects
// renamed .h) would otherwise be tokenized as garbage.
type SourceValidator struct {
	MaxFileSize int64 // 0 = unlimited
	HeaderSize  int64 // prefix inspected for binary content
}

func NewSourceValidator(maxFileSize int64) *SourceValidator {
	return &SourceValidator{
		MaxFileSize: maxFileSize,
		HeaderSize:  8 * 1024,
	}
}

// signatures of binary formats that turn up in C/C++ trees.
var magicBytes = []struct {
	name  string
	magic []byte
}{
	{"ELF object", []byte{0x7F, 'E', 'L', 'F'}},
	{"Mach-O object", []byte{0xCF, 0xFA, 0xED, 0xFE}},
	{"ar archive", []byte("!<arch>\n")},
	{"gzip data", []byte{0x1F, 0x8B}},
	{"zip archive", []byte{'P', 'K', 0x03, 0x04}},
	{"PNG image", []byte{0x89, 'P', 'N', 'G'}},
	{"clang precompiled header", []byte("CPCH")},
	{"gcc precompiled header", []byte("gpch")},
}

// ReadSource validates path and returns its content.
func (v *SourceValidator) ReadSource(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if v.MaxFileSize > 0 && info.Size() > v.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), v.MaxFileSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if err := v.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Validate inspects the leading bytes of a buffer.
func (v *SourceValidator) Validate(data []byte) error {
	header := data
	if v.HeaderSize > 0 && int64(len(header)) > v.HeaderSize {
		header = header[:v.HeaderSize]
	}
	for _, sig := range magicBytes {
		if bytes.HasPrefix(header, sig.magic) {
			return fmt.Errorf("%w: %s", ErrBinary, sig.name)
		}
	}
	if isBinaryData(header) {
		return ErrBinary
	}
	return nil
}

// isBinaryData reports a NUL byte or more than 30% control characters.
func isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range data {
		// Control characters except tab, LF, VT, FF, CR, and DEL
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}
