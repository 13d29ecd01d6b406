// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pset implements the partially signed Elements transaction the
// wallet hands to signers: the unsigned transaction plus per input and per
// output metadata that accumulates signatures before finalization.
package pset

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ok300/lwk/ewire"
)

var (
	// ErrInvalidPacket is returned when the packet metadata does not
	// match its transaction.
	ErrInvalidPacket = errors.New("invalid pset")

	// ErrMissingUtxo is returned when an input lacks the output it
	// spends.
	ErrMissingUtxo = errors.New("missing witness utxo")

	// ErrDifferentTx is returned when combining packets of different
	// transactions.
	ErrDifferentTx = errors.New("packets spend different transactions")
)

// XPub is a global extended public key entry.
type XPub struct {
	ExtendedKey string
	Derivation  psbt.Bip32Derivation
}

// PInput is the metadata of one input.
type PInput struct {
	WitnessUtxo        *ewire.TxOut
	RedeemScript       []byte
	WitnessScript      []byte
	Bip32Derivation    []*psbt.Bip32Derivation
	PartialSigs        []*psbt.PartialSig
	SighashType        txscript.SigHashType
	FinalScriptSig     []byte
	FinalScriptWitness wire.TxWitness
}

// IsFinalized reports whether the input carries its final witness.
func (i *PInput) IsFinalized() bool {
	return len(i.FinalScriptWitness) > 0 || len(i.FinalScriptSig) > 0
}

// AddPartialSig adds or replaces the signature of a public key. It returns
// true when the packet changed.
func (i *PInput) AddPartialSig(pubKey, sig []byte) bool {
	for _, ps := range i.PartialSigs {
		if !bytes.Equal(ps.PubKey, pubKey) {
			continue
		}
		if bytes.Equal(ps.Signature, sig) {
			return false
		}
		ps.Signature = bytes.Clone(sig)

		return true
	}

	i.PartialSigs = append(i.PartialSigs, &psbt.PartialSig{
		PubKey:    bytes.Clone(pubKey),
		Signature: bytes.Clone(sig),
	})

	return true
}

// PartialSig returns the signature of a public key, if any.
func (i *PInput) PartialSig(pubKey []byte) []byte {
	for _, ps := range i.PartialSigs {
		if bytes.Equal(ps.PubKey, pubKey) {
			return ps.Signature
		}
	}

	return nil
}

// POutput is the metadata of one output.
type POutput struct {
	// BlindingPubKey is the key the output is blinded to. Nil for
	// unblinded outputs such as the fee.
	BlindingPubKey *btcec.PublicKey

	// Bip32Derivation marks outputs paying back to the wallet.
	Bip32Derivation []*psbt.Bip32Derivation
}

// Packet is a partially signed Elements transaction.
type Packet struct {
	UnsignedTx *ewire.MsgTx
	Inputs     []PInput
	Outputs    []POutput
	XPubs      []XPub
}

// New returns a packet around an unsigned transaction.
func New(tx *ewire.MsgTx) (*Packet, error) {
	for i, in := range tx.TxIn {
		if len(in.SignatureScript) > 0 || len(in.Witness) > 0 {
			return nil, fmt.Errorf("%w: input %d is signed",
				ErrInvalidPacket, i)
		}
	}

	return &Packet{
		UnsignedTx: tx,
		Inputs:     make([]PInput, len(tx.TxIn)),
		Outputs:    make([]POutput, len(tx.TxOut)),
	}, nil
}

// SanityCheck checks that the metadata matches the transaction.
func (p *Packet) SanityCheck() error {
	if p.UnsignedTx == nil {
		return fmt.Errorf("%w: no transaction", ErrInvalidPacket)
	}
	if len(p.Inputs) != len(p.UnsignedTx.TxIn) {
		return fmt.Errorf("%w: %d inputs for %d tx inputs",
			ErrInvalidPacket, len(p.Inputs), len(p.UnsignedTx.TxIn))
	}
	if len(p.Outputs) != len(p.UnsignedTx.TxOut) {
		return fmt.Errorf("%w: %d outputs for %d tx outputs",
			ErrInvalidPacket, len(p.Outputs), len(p.UnsignedTx.TxOut))
	}

	return nil
}

// IsComplete reports whether every input is finalized.
func (p *Packet) IsComplete() bool {
	for i := range p.Inputs {
		if !p.Inputs[i].IsFinalized() {
			return false
		}
	}

	return true
}

// Combine copies the signatures of other into p. Both packets must spend
// the same transaction. It returns the number of signatures added or
// replaced.
func (p *Packet) Combine(other *Packet) (uint32, error) {
	if err := other.SanityCheck(); err != nil {
		return 0, err
	}
	if other.UnsignedTx.TxHash() != p.UnsignedTx.TxHash() {
		return 0, ErrDifferentTx
	}

	var added uint32
	for i := range other.Inputs {
		for _, ps := range other.Inputs[i].PartialSigs {
			if p.Inputs[i].AddPartialSig(ps.PubKey, ps.Signature) {
				added++
			}
		}
	}

	return added, nil
}

// WitnessSigHash returns the hash a signature on input idx commits to.
func (p *Packet) WitnessSigHash(hashes *ewire.SigHashes,
	idx int) ([]byte, error) {

	in := &p.Inputs[idx]
	if in.WitnessUtxo == nil {
		return nil, fmt.Errorf("%w: input %d", ErrMissingUtxo, idx)
	}

	scriptCode, err := in.scriptCode()
	if err != nil {
		return nil, fmt.Errorf("input %d: %w", idx, err)
	}

	hashType := in.SighashType
	if hashType == 0 {
		hashType = txscript.SigHashAll
	}

	return ewire.CalcWitnessSigHash(
		scriptCode, hashes, hashType, p.UnsignedTx, idx,
		in.WitnessUtxo.Value,
	)
}

// scriptCode returns the script being satisfied by the input.
func (i *PInput) scriptCode() ([]byte, error) {
	if len(i.WitnessScript) > 0 {
		return i.WitnessScript, nil
	}

	program := i.WitnessUtxo.PkScript
	if len(i.RedeemScript) > 0 {
		program = i.RedeemScript
	}

	if !txscript.IsPayToWitnessPubKeyHash(program) {
		return nil, errors.New("unknown script type")
	}

	return ewire.P2WPKHScriptCode(program[2:])
}

// Extract returns the final transaction. Every input must be finalized.
func (p *Packet) Extract() (*ewire.MsgTx, error) {
	if !p.IsComplete() {
		return nil, fmt.Errorf("%w: not all inputs are finalized",
			ErrInvalidPacket)
	}

	tx := p.UnsignedTx.Copy()
	for i := range p.Inputs {
		tx.TxIn[i].SignatureScript = bytes.Clone(p.Inputs[i].FinalScriptSig)
		tx.TxIn[i].Witness = p.Inputs[i].FinalScriptWitness
	}

	return tx, nil
}
