package confidential

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// slip21Label is the SLIP-21 node label of the SLIP-77 master blinding key.
const slip21Label = "SLIP-0077"

// Slip77Key is a SLIP-77 master blinding key. Every script gets its own
// blinding key derived from it.
type Slip77Key [32]byte

// NewSlip77KeyFromHex parses a hex encoded master blinding key.
func NewSlip77KeyFromHex(s string) (Slip77Key, error) {
	var k Slip77Key

	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid slip77 key: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("slip77 key must be %d bytes, got %d",
			len(k), len(b))
	}
	copy(k[:], b)

	return k, nil
}

// Slip77FromSeed derives the master blinding key from a wallet seed along
// the SLIP-21 path m/"SLIP-0077".
func Slip77FromSeed(seed []byte) Slip77Key {
	root := hmacSHA512([]byte("Symmetric key seed"), seed)

	msg := append([]byte{0}, slip21Label...)
	node := hmacSHA512(root[:32], msg)

	var k Slip77Key
	copy(k[:], node[32:])

	return k
}

// BlindingPrivKey derives the blinding private key of a script.
func (k Slip77Key) BlindingPrivKey(script []byte) *btcec.PrivateKey {
	mac := hmac.New(sha256.New, k[:])
	_, _ = mac.Write(script)

	priv, _ := btcec.PrivKeyFromBytes(mac.Sum(nil))

	return priv
}

// BlindingPubKey derives the blinding public key of a script.
func (k Slip77Key) BlindingPubKey(script []byte) *btcec.PublicKey {
	return k.BlindingPrivKey(script).PubKey()
}

// String returns the hex encoding of the key.
func (k Slip77Key) String() string {
	return hex.EncodeToString(k[:])
}

func hmacSHA512(key, msg []byte) []byte {
	mac := hmac.New(sha512.New, key)
	_, _ = mac.Write(msg)

	return mac.Sum(nil)
}
