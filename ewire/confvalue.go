package ewire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	prefixNull     = 0x00
	prefixExplicit = 0x01

	// ExplicitValueSize is the size of an explicit value encoding.
	ExplicitValueSize = 9

	// CommitmentSize is the size of an asset, value or nonce commitment.
	CommitmentSize = 33
)

// nullable returns the encoding of a possibly absent field.
func nullable(b []byte) []byte {
	if len(b) == 0 {
		return []byte{prefixNull}
	}

	return b
}

// IsNull reports whether a confidential field is absent.
func IsNull(b []byte) bool {
	return len(b) == 0 || (len(b) == 1 && b[0] == prefixNull)
}

// IsExplicit reports whether a confidential asset or value field is
// explicit.
func IsExplicit(b []byte) bool {
	return len(b) > 0 && b[0] == prefixExplicit
}

// ExplicitValue encodes an explicit amount.
func ExplicitValue(v uint64) []byte {
	b := make([]byte, ExplicitValueSize)
	b[0] = prefixExplicit
	binary.BigEndian.PutUint64(b[1:], v)

	return b
}

// ParseExplicitValue decodes an explicit amount. It returns false if the
// field is absent or a commitment.
func ParseExplicitValue(b []byte) (uint64, bool) {
	if len(b) != ExplicitValueSize || b[0] != prefixExplicit {
		return 0, false
	}

	return binary.BigEndian.Uint64(b[1:]), true
}

// ParseExplicitAsset decodes an explicit asset tag.
func ParseExplicitAsset(b []byte) ([32]byte, bool) {
	var a [32]byte
	if len(b) != CommitmentSize || b[0] != prefixExplicit {
		return a, false
	}
	copy(a[:], b[1:])

	return a, true
}

// readConfAsset reads an asset field, whose length depends on its prefix.
func readConfAsset(r io.Reader) ([]byte, error) {
	return readPrefixed(r, func(prefix byte) (int, bool) {
		switch prefix {
		case prefixNull:
			return 1, true
		case prefixExplicit, 0x0a, 0x0b:
			return CommitmentSize, true
		}

		return 0, false
	})
}

// readConfValue reads a value field.
func readConfValue(r io.Reader) ([]byte, error) {
	return readPrefixed(r, func(prefix byte) (int, bool) {
		switch prefix {
		case prefixNull:
			return 1, true
		case prefixExplicit:
			return ExplicitValueSize, true
		case 0x08, 0x09:
			return CommitmentSize, true
		}

		return 0, false
	})
}

// readConfNonce reads a nonce field.
func readConfNonce(r io.Reader) ([]byte, error) {
	return readPrefixed(r, func(prefix byte) (int, bool) {
		switch prefix {
		case prefixNull:
			return 1, true
		case prefixExplicit, 0x02, 0x03:
			return CommitmentSize, true
		}

		return 0, false
	})
}

func readPrefixed(r io.Reader, size func(byte) (int, bool)) ([]byte, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	n, ok := size(prefix[0])
	if !ok {
		return nil, fmt.Errorf("%w: unknown prefix 0x%02x",
			ErrMalformedTx, prefix[0])
	}
	if prefix[0] == prefixNull {
		return nil, nil
	}

	b := make([]byte, n)
	b[0] = prefix[0]
	if _, err := io.ReadFull(r, b[1:]); err != nil {
		return nil, err
	}

	return b, nil
}
