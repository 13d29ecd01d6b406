package signer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/network"
	"github.com/ok300/lwk/pset"
	"github.com/tyler-smith/go-bip39"
)

const (
	// entropyBits gives 12 word mnemonics.
	entropyBits = 128

	// coinTypeLiquid is the BIP-44 coin type of Liquid mainnet. Test
	// networks use 1.
	coinTypeLiquid = 1776
)

// SwSigner signs with keys derived from a BIP-39 mnemonic.
type SwSigner struct {
	mnemonic    string
	seed        []byte
	master      *hdkeychain.ExtendedKey
	params      *network.Params
	fingerprint [4]byte
}

// A compile-time assertion to ensure SwSigner implements Signer.
var _ Signer = (*SwSigner)(nil)

// NewSwSigner returns a signer for a mnemonic without passphrase.
func NewSwSigner(mnemonic string,
	params *network.Params) (*SwSigner, error) {

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}

	master, err := hdkeychain.NewMaster(seed, params.HDParams)
	if err != nil {
		return nil, err
	}

	fp, err := fingerprint(master)
	if err != nil {
		return nil, err
	}

	return &SwSigner{
		mnemonic:    mnemonic,
		seed:        seed,
		master:      master,
		params:      params,
		fingerprint: fp,
	}, nil
}

// NewRandomSwSigner returns a signer for a fresh 12 word mnemonic.
func NewRandomSwSigner(params *network.Params) (*SwSigner, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, err
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}

	return NewSwSigner(mnemonic, params)
}

// Mnemonic returns the mnemonic of the signer.
func (s *SwSigner) Mnemonic() string {
	return s.mnemonic
}

// Slip77 returns the master blinding key derived from the seed.
func (s *SwSigner) Slip77() confidential.Slip77Key {
	return confidential.Slip77FromSeed(s.seed)
}

// Fingerprint returns the master key fingerprint.
func (s *SwSigner) Fingerprint() [4]byte {
	return s.fingerprint
}

// DeriveXPub returns the extended public key at path.
func (s *SwSigner) DeriveXPub(_ context.Context,
	path []uint32) (string, error) {

	key, err := s.derive(path)
	if err != nil {
		return "", err
	}

	pub, err := key.Neuter()
	if err != nil {
		return "", err
	}

	return pub.String(), nil
}

// WpkhSlip77Descriptor returns the native segwit single signature
// descriptor of the first account, blinded with the seed's SLIP-77 key.
func (s *SwSigner) WpkhSlip77Descriptor() (string, error) {
	coin := uint32(1)
	if s.params.IsMainnet() {
		coin = coinTypeLiquid
	}
	path := []uint32{
		hdkeychain.HardenedKeyStart + 84,
		hdkeychain.HardenedKeyStart + coin,
		hdkeychain.HardenedKeyStart,
	}

	xpub, err := s.DeriveXPub(context.Background(), path)
	if err != nil {
		return "", err
	}

	origin := fmt.Sprintf("%x%s", s.fingerprint,
		strings.TrimPrefix(descriptor.FormatPath(path), "m"))
	desc := fmt.Sprintf("ct(slip77(%s),elwpkh([%s]%s/<0;1>/*))",
		s.Slip77(), origin, xpub)

	checksum, err := descriptor.Checksum(desc)
	if err != nil {
		return "", err
	}

	return desc + "#" + checksum, nil
}

// Sign signs every input carrying a BIP-32 derivation of this signer.
func (s *SwSigner) Sign(_ context.Context, p *pset.Packet) (uint32, error) {
	if err := p.SanityCheck(); err != nil {
		return 0, err
	}

	fp := binary.LittleEndian.Uint32(s.fingerprint[:])
	hashes := ewire.NewSigHashes(p.UnsignedTx)

	var added uint32
	for i := range p.Inputs {
		in := &p.Inputs[i]
		for _, d := range in.Bip32Derivation {
			if d.MasterKeyFingerprint != fp {
				continue
			}

			key, err := s.derive(d.Bip32Path)
			if err != nil {
				return added, err
			}
			priv, err := key.ECPrivKey()
			if err != nil {
				return added, err
			}

			pub := priv.PubKey().SerializeCompressed()
			if !bytes.Equal(pub, d.PubKey) {
				log.Debugf("Input %d: derivation %v does not "+
					"match its key", i,
					descriptor.FormatPath(d.Bip32Path))

				continue
			}

			hash, err := p.WitnessSigHash(hashes, i)
			if err != nil {
				return added, err
			}

			sig := ecdsa.Sign(priv, hash).Serialize()
			sig = append(sig, byte(txscript.SigHashAll))

			if in.AddPartialSig(pub, sig) {
				added++
			}
		}
	}

	log.Debugf("Software signer %x added %d signatures", s.fingerprint,
		added)

	return added, nil
}

func (s *SwSigner) derive(path []uint32) (*hdkeychain.ExtendedKey, error) {
	key := s.master
	for _, step := range path {
		var err error
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w",
				descriptor.FormatPath(path), err)
		}
	}

	return key, nil
}

func (*SwSigner) isSigner() {}
