package address

import (
	"errors"
	"fmt"
	"strings"
)

// charset is the bech32 alphabet, shared by blech32.
const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

const (
	// blech32Const and blech32mConst are the checksum constants of the
	// two blech32 variants, mirroring bech32 and bech32m.
	blech32Const  = 1
	blech32mConst = 0x455972a3350f7a1

	// checksumLen is the number of checksum characters.
	checksumLen = 12

	// maxLen bounds the length of an encoded string.
	maxLen = 1000
)

// blech32Gen is the generator of the 60 bit BCH code.
var blech32Gen = [5]uint64{
	0x7d52fba40bd886, 0x5e8dbf1a03950c, 0x1c3a3c74072a18,
	0x385d72fa0e5139, 0x7093e5a608865b,
}

// ErrInvalidChecksum is returned when the checksum of an address does not
// verify.
var ErrInvalidChecksum = errors.New("invalid checksum")

func blech32Polymod(values []byte) uint64 {
	chk := uint64(1)
	for _, v := range values {
		b := chk >> 55
		chk = (chk&0x7fffffffffffff)<<5 ^ uint64(v)
		for i := 0; i < 5; i++ {
			if (b>>uint(i))&1 == 1 {
				chk ^= blech32Gen[i]
			}
		}
	}

	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, 2*len(hrp)+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}

	return out
}

// blech32Encode encodes 5 bit groups under hrp. The m flag selects the
// blech32m constant.
func blech32Encode(hrp string, data []byte, m bool) (string, error) {
	hrp = strings.ToLower(hrp)

	c := uint64(blech32Const)
	if m {
		c = blech32mConst
	}

	values := append(hrpExpand(hrp), data...)
	values = append(values, make([]byte, checksumLen)...)
	mod := blech32Polymod(values) ^ c

	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, d := range data {
		if d >= 32 {
			return "", fmt.Errorf("invalid data value %d", d)
		}
		sb.WriteByte(charset[d])
	}
	for i := 0; i < checksumLen; i++ {
		sb.WriteByte(charset[(mod>>(5*uint(checksumLen-1-i)))&31])
	}

	return sb.String(), nil
}

// blech32Decode decodes a blech32 or blech32m string into its hrp and 5 bit
// data groups, reporting which checksum variant matched.
func blech32Decode(s string) (string, []byte, bool, error) {
	if len(s) > maxLen {
		return "", nil, false, fmt.Errorf("string too long: %d", len(s))
	}
	if strings.ToLower(s) != s && strings.ToUpper(s) != s {
		return "", nil, false, errors.New("mixed case string")
	}
	s = strings.ToLower(s)

	sep := strings.LastIndexByte(s, '1')
	if sep < 1 || sep+checksumLen+1 > len(s) {
		return "", nil, false, errors.New("invalid separator position")
	}

	hrp := s[:sep]
	data := make([]byte, 0, len(s)-sep-1)
	for i := sep + 1; i < len(s); i++ {
		d := strings.IndexByte(charset, s[i])
		if d < 0 {
			return "", nil, false, fmt.Errorf("invalid character %q",
				s[i])
		}
		data = append(data, byte(d))
	}

	mod := blech32Polymod(append(hrpExpand(hrp), data...))
	switch mod {
	case blech32Const:
		return hrp, data[:len(data)-checksumLen], false, nil

	case blech32mConst:
		return hrp, data[:len(data)-checksumLen], true, nil

	default:
		return "", nil, false, ErrInvalidChecksum
	}
}
