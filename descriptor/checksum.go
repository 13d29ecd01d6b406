package descriptor

import (
	"fmt"
	"strings"
)

// inputCharset orders the characters allowed in a descriptor so that the
// checksum catches the most common transcription errors.
const inputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
	"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
	"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

// checksumCharset is the alphabet of the checksum itself.
const checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// checksumLen is the number of checksum characters.
const checksumLen = 8

func descPolymod(c uint64, val int) uint64 {
	c0 := c >> 35
	c = (c&0x7ffffffff)<<5 ^ uint64(val)

	if c0&1 != 0 {
		c ^= 0xf5dee51989
	}
	if c0&2 != 0 {
		c ^= 0xa9fdca3312
	}
	if c0&4 != 0 {
		c ^= 0x1bab10e32d
	}
	if c0&8 != 0 {
		c ^= 0x3706b1677a
	}
	if c0&16 != 0 {
		c ^= 0x644d626ffd
	}

	return c
}

// Checksum computes the 8 character checksum of a descriptor body.
func Checksum(desc string) (string, error) {
	var (
		c        uint64 = 1
		cls      int
		clsCount int
	)

	for i := 0; i < len(desc); i++ {
		pos := strings.IndexByte(inputCharset, desc[i])
		if pos < 0 {
			return "", fmt.Errorf("%w: invalid character %q",
				ErrInvalidChecksum, desc[i])
		}

		c = descPolymod(c, pos&31)
		cls = cls*3 + pos>>5
		clsCount++
		if clsCount == 3 {
			c = descPolymod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = descPolymod(c, cls)
	}
	for i := 0; i < checksumLen; i++ {
		c = descPolymod(c, 0)
	}
	c ^= 1

	var sb strings.Builder
	for j := 0; j < checksumLen; j++ {
		sb.WriteByte(checksumCharset[(c>>(5*uint(checksumLen-1-j)))&31])
	}

	return sb.String(), nil
}

// splitChecksum separates and verifies an optional trailing checksum.
func splitChecksum(s string) (string, error) {
	body, sum, found := strings.Cut(s, "#")
	if !found {
		return s, nil
	}

	if len(sum) != checksumLen {
		return "", fmt.Errorf("%w: checksum must have %d characters",
			ErrInvalidChecksum, checksumLen)
	}

	expected, err := Checksum(body)
	if err != nil {
		return "", err
	}
	if expected != sum {
		return "", fmt.Errorf("%w: got %s, expected %s",
			ErrInvalidChecksum, sum, expected)
	}

	return body, nil
}
