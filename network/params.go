// Package network defines the parameters of the Elements chains the wallet
// can operate on.
package network

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ok300/lwk/confidential"
)

// Params describes an Elements network.
type Params struct {
	// Name is the network identifier used on the command line and in
	// the hardware signer protocol.
	Name string

	// Bech32HRP is the human readable part of unconfidential segwit
	// addresses.
	Bech32HRP string

	// Blech32HRP is the human readable part of confidential segwit
	// addresses.
	Blech32HRP string

	// PubKeyHashAddrID, ScriptHashAddrID and BlindedPrefix are the base58
	// version bytes of legacy addresses.
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
	BlindedPrefix    byte

	// PolicyAsset is the asset fees are paid in.
	PolicyAsset confidential.AssetID

	// HDParams carries the extended key version bytes. Liquid reuses the
	// bitcoin ones.
	HDParams *chaincfg.Params
}

var (
	// Liquid is the Liquid mainnet.
	Liquid = Params{
		Name:             "liquid",
		Bech32HRP:        "ex",
		Blech32HRP:       "lq",
		PubKeyHashAddrID: 57,
		ScriptHashAddrID: 39,
		BlindedPrefix:    12,
		PolicyAsset: confidential.MustAssetID(
			"6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec" +
				"381c526d",
		),
		HDParams: &chaincfg.MainNetParams,
	}

	// LiquidTestnet is the public Liquid test network.
	LiquidTestnet = Params{
		Name:             "testnet-liquid",
		Bech32HRP:        "tex",
		Blech32HRP:       "tlq",
		PubKeyHashAddrID: 36,
		ScriptHashAddrID: 19,
		BlindedPrefix:    23,
		PolicyAsset: confidential.MustAssetID(
			"144c654344aa716d6f3abcc1ca90e5641e4e2a7f633bc09fe3baf645" +
				"85819a49",
		),
		HDParams: &chaincfg.TestNet3Params,
	}

	// Regtest is a local Elements regression test network with the
	// default policy asset.
	Regtest = Params{
		Name:             "localtest-liquid",
		Bech32HRP:        "ert",
		Blech32HRP:       "el",
		PubKeyHashAddrID: 235,
		ScriptHashAddrID: 75,
		BlindedPrefix:    4,
		PolicyAsset: confidential.MustAssetID(
			"5ac9f65c0efcc4775e0baec4ec03abdde22473cd3cf33c0419ca290e" +
				"0751b225",
		),
		HDParams: &chaincfg.RegressionNetParams,
	}
)

// RegtestWithPolicyAsset returns regtest parameters for a node started with
// a custom policy asset.
func RegtestWithPolicyAsset(asset confidential.AssetID) *Params {
	p := Regtest
	p.PolicyAsset = asset

	return &p
}

// ByName returns the parameters of a named network.
func ByName(name string) (*Params, error) {
	for _, p := range []*Params{&Liquid, &LiquidTestnet, &Regtest} {
		if p.Name == name {
			return p, nil
		}
	}

	return nil, fmt.Errorf("unknown network %q", name)
}

// IsMainnet reports whether the parameters are the Liquid mainnet ones.
func (p *Params) IsMainnet() bool {
	return p.Name == Liquid.Name
}
