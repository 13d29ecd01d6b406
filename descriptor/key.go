package descriptor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Chain selects the branch of a multipath key.
type Chain uint32

const (
	// External is the receive branch.
	External Chain = 0

	// Internal is the change branch.
	Internal Chain = 1
)

// KeyOrigin records where a key sits below the master key.
type KeyOrigin struct {
	Fingerprint [4]byte
	Path        []uint32
}

// Key is a public key expression of a descriptor.
type Key struct {
	// Origin is nil when the expression has no [fingerprint/path] prefix.
	Origin *KeyOrigin

	// ExtKey is set for extended keys, PubKey for single keys.
	ExtKey *hdkeychain.ExtendedKey
	PubKey *btcec.PublicKey

	// Steps are the unhardened derivation steps after the extended key.
	Steps []uint32

	// Multipath holds the alternatives of a <a;b> step, indexed by
	// Chain.
	Multipath []uint32

	// Wildcard is set for ranged keys ending in /*.
	Wildcard bool

	raw string
}

// KeyDerivation is a key derived at a specific position together with its
// path from the master key.
type KeyDerivation struct {
	PubKey      *btcec.PublicKey
	Fingerprint [4]byte
	Path        []uint32
}

// FingerprintUint32 returns the fingerprint as the little endian integer
// used in PSBT derivation records.
func (k KeyDerivation) FingerprintUint32() uint32 {
	return binary.LittleEndian.Uint32(k.Fingerprint[:])
}

// String returns the key expression as it was parsed.
func (k *Key) String() string {
	return k.raw
}

// IsRanged reports whether the key ends in a wildcard.
func (k *Key) IsRanged() bool {
	return k.Wildcard
}

// XPub returns the bare extended key, without origin, steps or wildcard.
func (k *Key) XPub() string {
	if k.ExtKey == nil {
		return ""
	}

	return k.ExtKey.String()
}

// MasterFingerprint returns the fingerprint of the master key. Without an
// origin the key is its own master.
func (k *Key) MasterFingerprint() [4]byte {
	if k.Origin != nil {
		return k.Origin.Fingerprint
	}

	var fp [4]byte

	pub := k.PubKey
	if k.ExtKey != nil {
		var err error
		pub, err = k.ExtKey.ECPubKey()
		if err != nil {
			return fp
		}
	}
	copy(fp[:], btcutil.Hash160(pub.SerializeCompressed())[:4])

	return fp
}

// FullDerivationPath is the path from the master key to the extended key
// plus its fixed steps. It excludes multipath and wildcard steps.
func (k *Key) FullDerivationPath() []uint32 {
	var path []uint32
	if k.Origin != nil {
		path = append(path, k.Origin.Path...)
	}

	return append(path, k.Steps...)
}

// Derive returns the key at the given chain and index.
func (k *Key) Derive(chain Chain, index uint32) (*KeyDerivation, error) {
	d := &KeyDerivation{
		Fingerprint: k.MasterFingerprint(),
		Path:        k.FullDerivationPath(),
	}

	if k.ExtKey == nil {
		d.PubKey = k.PubKey

		return d, nil
	}

	ext := k.ExtKey
	steps := append([]uint32(nil), k.Steps...)
	if len(k.Multipath) > 0 {
		if int(chain) >= len(k.Multipath) {
			return nil, fmt.Errorf("%w: chain %d out of range",
				ErrInvalidKey, chain)
		}
		steps = append(steps, k.Multipath[chain])
		d.Path = append(d.Path, k.Multipath[chain])
	}
	if k.Wildcard {
		if index >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: index %d is hardened",
				ErrInvalidKey, index)
		}
		steps = append(steps, index)
		d.Path = append(d.Path, index)
	}

	for _, step := range steps {
		var err error
		ext, err = ext.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("derive %d: %w", step, err)
		}
	}

	pub, err := ext.ECPubKey()
	if err != nil {
		return nil, err
	}
	d.PubKey = pub

	return d, nil
}

// parseKey parses a key expression.
func parseKey(s string) (*Key, error) {
	k := &Key{raw: s}
	rest := s

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated origin in %q",
				ErrInvalidKey, s)
		}

		origin, err := parseOrigin(rest[1:end])
		if err != nil {
			return nil, err
		}
		k.Origin = origin
		rest = rest[end+1:]
	}

	parts := strings.Split(rest, "/")
	keyStr := parts[0]

	// Single public keys carry no derivation.
	if len(keyStr) == 2*btcec.PubKeyBytesLenCompressed {
		if len(parts) > 1 {
			return nil, fmt.Errorf("%w: derivation on a single key",
				ErrInvalidKey)
		}

		raw, err := hex.DecodeString(keyStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		k.PubKey, err = btcec.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}

		return k, nil
	}

	ext, err := hdkeychain.NewKeyFromString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidKey, keyStr, err)
	}
	if ext.IsPrivate() {
		return nil, fmt.Errorf("%w: private keys are not accepted",
			ErrInvalidKey)
	}
	k.ExtKey = ext

	for i, step := range parts[1:] {
		last := i == len(parts)-2

		switch {
		case step == "*":
			if !last {
				return nil, fmt.Errorf("%w: wildcard must be last",
					ErrInvalidKey)
			}
			k.Wildcard = true

		case strings.HasPrefix(step, "<"):
			if k.Multipath != nil || !strings.HasSuffix(step, ">") {
				return nil, fmt.Errorf("%w: bad multipath %q",
					ErrInvalidKey, step)
			}

			alts := strings.Split(step[1:len(step)-1], ";")
			if len(alts) < 2 {
				return nil, fmt.Errorf("%w: multipath needs two "+
					"alternatives", ErrInvalidKey)
			}
			for _, alt := range alts {
				idx, err := parseStep(alt, false)
				if err != nil {
					return nil, err
				}
				k.Multipath = append(k.Multipath, idx)
			}

		default:
			if k.Multipath != nil {
				return nil, fmt.Errorf("%w: steps after multipath",
					ErrInvalidKey)
			}

			idx, err := parseStep(step, false)
			if err != nil {
				return nil, err
			}
			k.Steps = append(k.Steps, idx)
		}
	}

	return k, nil
}

func parseOrigin(s string) (*KeyOrigin, error) {
	parts := strings.Split(s, "/")

	fp, err := hex.DecodeString(parts[0])
	if err != nil || len(fp) != 4 {
		return nil, fmt.Errorf("%w: bad fingerprint %q", ErrInvalidKey,
			parts[0])
	}

	origin := &KeyOrigin{}
	copy(origin.Fingerprint[:], fp)

	for _, step := range parts[1:] {
		idx, err := parseStep(step, true)
		if err != nil {
			return nil, err
		}
		origin.Path = append(origin.Path, idx)
	}

	return origin, nil
}

// parseStep parses a single path element. Hardened markers are accepted
// only when allowHardened is set.
func parseStep(s string, allowHardened bool) (uint32, error) {
	hardened := strings.HasSuffix(s, "h") || strings.HasSuffix(s, "H") ||
		strings.HasSuffix(s, "'")
	if hardened {
		if !allowHardened {
			return 0, fmt.Errorf("%w: hardened step %q after xpub",
				ErrInvalidKey, s)
		}
		s = s[:len(s)-1]
	}

	idx, err := strconv.ParseUint(s, 10, 32)
	if err != nil || idx >= hdkeychain.HardenedKeyStart {
		return 0, fmt.Errorf("%w: bad path step %q", ErrInvalidKey, s)
	}

	if hardened {
		idx += hdkeychain.HardenedKeyStart
	}

	return uint32(idx), nil
}

// FormatPath renders a derivation path in the m/84h/1h form.
func FormatPath(path []uint32) string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, step := range path {
		sb.WriteByte('/')
		if step >= hdkeychain.HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(
				uint64(step-hdkeychain.HardenedKeyStart), 10,
			))
			sb.WriteByte('h')
		} else {
			sb.WriteString(strconv.FormatUint(uint64(step), 10))
		}
	}

	return sb.String()
}

// ParsePath parses a path in the m/84h/1h form.
func ParsePath(s string) ([]uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "m"), "/")
	if s == "" {
		return nil, nil
	}

	var path []uint32
	for _, step := range strings.Split(s, "/") {
		idx, err := parseStep(step, true)
		if err != nil {
			return nil, err
		}
		path = append(path, idx)
	}

	return path, nil
}
