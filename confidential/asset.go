// Package confidential holds the value types and primitives of Elements
// confidential transactions: asset identifiers, issuance entropy, blinding
// keys and the opaque blinding interface.
package confidential

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// AssetID identifies an asset. Like a txid it is stored in internal byte
// order and displayed reversed.
type AssetID [32]byte

// NewAssetIDFromStr parses the display form of an asset identifier.
func NewAssetIDFromStr(s string) (AssetID, error) {
	if len(s) != 2*chainhash.HashSize {
		return AssetID{}, fmt.Errorf("asset id must be %d hex chars, "+
			"got %d", 2*chainhash.HashSize, len(s))
	}

	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return AssetID{}, fmt.Errorf("invalid asset id %q: %w", s, err)
	}

	return AssetID(*h), nil
}

// MustAssetID parses an asset id and panics on failure. It is meant for
// package-level constants.
func MustAssetID(s string) AssetID {
	a, err := NewAssetIDFromStr(s)
	if err != nil {
		panic(err)
	}

	return a
}

// String returns the display (reversed) hex form of the asset id.
func (a AssetID) String() string {
	return chainhash.Hash(a).String()
}

// IsZero reports whether this is the all-zero asset id.
func (a AssetID) IsZero() bool {
	return a == AssetID{}
}

// ExplicitAsset returns the 33 byte explicit asset encoding as it appears in
// a transaction output.
func (a AssetID) ExplicitAsset() []byte {
	b := make([]byte, 33)
	b[0] = ExplicitPrefix
	copy(b[1:], a[:])

	return b
}

// Commitment prefixes of the confidential fields of an output.
const (
	// NullPrefix marks an absent field.
	NullPrefix = 0x00

	// ExplicitPrefix marks an explicit asset or value.
	ExplicitPrefix = 0x01

	// ValueCommitmentEven and ValueCommitmentOdd prefix value commitments.
	ValueCommitmentEven = 0x08
	ValueCommitmentOdd  = 0x09

	// AssetCommitmentEven and AssetCommitmentOdd prefix asset generators.
	AssetCommitmentEven = 0x0a
	AssetCommitmentOdd  = 0x0b
)

// MaxMoney is the largest amount of any single asset, mirroring the bitcoin
// supply limit.
const MaxMoney = 21_000_000 * 100_000_000
