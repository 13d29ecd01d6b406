// Package signer implements the software and hardware signers that add
// signatures to a partially signed transaction.
package signer

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ok300/lwk/jade"
	"github.com/ok300/lwk/pset"
)

var (
	// ErrInvalidMnemonic is returned for mnemonics failing the BIP-39
	// checksum.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrDeviceUnavailable is returned when a hardware signer cannot be
	// reached.
	ErrDeviceUnavailable = jade.ErrDeviceUnavailable
)

// Signer adds signatures to partially signed transactions.
type Signer interface {
	// Fingerprint returns the master key fingerprint.
	Fingerprint() [4]byte

	// DeriveXPub returns the extended public key at path.
	DeriveXPub(ctx context.Context, path []uint32) (string, error)

	// Sign adds the signatures of this signer to p and returns how many
	// were added or replaced.
	Sign(ctx context.Context, p *pset.Packet) (uint32, error)

	isSigner()
}

// fingerprint returns the fingerprint of a master extended key.
func fingerprint(master *hdkeychain.ExtendedKey) ([4]byte, error) {
	var fp [4]byte

	pub, err := master.ECPubKey()
	if err != nil {
		return fp, err
	}
	copy(fp[:], btcutil.Hash160(pub.SerializeCompressed())[:4])

	return fp, nil
}
