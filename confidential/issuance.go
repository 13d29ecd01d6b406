package confidential

import (
	"crypto/sha256"
	"encoding"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ContractHash commits an issuance to an off-chain contract. The zero value
// is used when no contract is attached.
type ContractHash [32]byte

// midstateOffset is where the state words start in the marshaled form of a
// crypto/sha256 digest, right after the 4 byte magic.
const midstateOffset = 4

// fastMerkleRoot returns the root of a two leaf fast merkle tree, which is a
// single SHA256 compression over both leaves with no padding.
func fastMerkleRoot(left, right [32]byte) [32]byte {
	h := sha256.New()
	_, _ = h.Write(left[:])
	_, _ = h.Write(right[:])

	// After exactly one block the digest state holds the compression
	// output, which the marshaled form exposes as big endian words.
	state, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(err)
	}

	var root [32]byte
	for i := 0; i < 8; i++ {
		word := binary.BigEndian.Uint32(
			state[midstateOffset+4*i : midstateOffset+4*i+4],
		)
		binary.BigEndian.PutUint32(root[4*i:], word)
	}

	return root
}

// IssuanceEntropy derives the entropy of a new issuance from the outpoint
// being spent and the contract hash.
func IssuanceEntropy(prevOut wire.OutPoint, contract ContractHash) [32]byte {
	var buf [chainhash.HashSize + 4]byte
	copy(buf[:], prevOut.Hash[:])
	binary.LittleEndian.PutUint32(buf[chainhash.HashSize:], prevOut.Index)

	return fastMerkleRoot(chainhash.DoubleHashH(buf[:]), contract)
}

// IssuedAssetID returns the asset created by an issuance with the given
// entropy.
func IssuedAssetID(entropy [32]byte) AssetID {
	return AssetID(fastMerkleRoot(entropy, [32]byte{}))
}

// ReissuanceTokenID returns the reissuance token created alongside the asset.
// The token id depends on whether the issued amount was blinded.
func ReissuanceTokenID(entropy [32]byte, confidential bool) AssetID {
	var k [32]byte
	k[0] = 1
	if confidential {
		k[0] = 2
	}

	return AssetID(fastMerkleRoot(entropy, k))
}
