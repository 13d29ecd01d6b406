// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ewire implements the Elements transaction format: confidential
// outputs, asset issuances attached to inputs and the extended witness
// section carrying range and surjection proofs.
package ewire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// OutpointIssuanceFlag is set on the serialized outpoint index of an
	// input that carries an asset issuance.
	OutpointIssuanceFlag = uint32(1 << 31)

	// OutpointPeginFlag is set on the serialized outpoint index of a
	// peg-in input.
	OutpointPeginFlag = uint32(1 << 30)

	// OutpointIndexMask strips the flags from a serialized index.
	OutpointIndexMask = uint32(0x3fffffff)

	// maxProofSize bounds any single proof or witness item read from the
	// wire.
	maxProofSize = wire.MaxMessagePayload

	// maxItems bounds input, output and witness stack counts.
	maxItems = 100_000
)

var (
	// ErrMalformedTx is returned when a transaction cannot be decoded.
	ErrMalformedTx = errors.New("malformed elements transaction")

	// le is the byte order of fixed size integers.
	le = binary.LittleEndian
)

// AssetIssuance is the issuance or reissuance attached to an input.
type AssetIssuance struct {
	// AssetBlindingNonce is zero for a new issuance. For a reissuance it
	// is the asset blinding factor of the spent token output.
	AssetBlindingNonce [32]byte

	// AssetEntropy is the contract hash for a new issuance and the
	// original issuance entropy for a reissuance.
	AssetEntropy [32]byte

	// Amount is the issued amount as a confidential value.
	Amount []byte

	// InflationKeys is the amount of reissuance tokens created.
	InflationKeys []byte
}

// IsReissuance reports whether this issuance mints more of an existing
// asset.
func (a *AssetIssuance) IsReissuance() bool {
	return a.AssetBlindingNonce != [32]byte{}
}

// TxIn is an Elements transaction input.
type TxIn struct {
	PreviousOutPoint wire.OutPoint
	IsPegin          bool
	SignatureScript  []byte
	Sequence         uint32
	Issuance         *AssetIssuance

	// Witness data.
	IssuanceRangeProof  []byte
	InflationRangeProof []byte
	Witness             wire.TxWitness
	PeginWitness        wire.TxWitness
}

// TxOut is an Elements transaction output. Asset, Value and Nonce hold
// their prefixed wire encodings.
type TxOut struct {
	Asset    []byte
	Value    []byte
	Nonce    []byte
	PkScript []byte

	// Witness data.
	SurjectionProof []byte
	RangeProof      []byte
}

// IsFee reports whether the output is an explicit fee output.
func (o *TxOut) IsFee() bool {
	return len(o.PkScript) == 0 && IsExplicit(o.Asset) &&
		IsExplicit(o.Value)
}

// MsgTx is an Elements transaction.
type MsgTx struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// NewMsgTx returns a new transaction with the given version.
func NewMsgTx(version int32) *MsgTx {
	return &MsgTx{Version: version}
}

// AddTxIn appends an input.
func (m *MsgTx) AddTxIn(in *TxIn) {
	m.TxIn = append(m.TxIn, in)
}

// AddTxOut appends an output.
func (m *MsgTx) AddTxOut(out *TxOut) {
	m.TxOut = append(m.TxOut, out)
}

// HasWitness reports whether any input or output carries witness data.
func (m *MsgTx) HasWitness() bool {
	for _, in := range m.TxIn {
		if len(in.IssuanceRangeProof) > 0 ||
			len(in.InflationRangeProof) > 0 ||
			len(in.Witness) > 0 || len(in.PeginWitness) > 0 {

			return true
		}
	}

	for _, out := range m.TxOut {
		if len(out.SurjectionProof) > 0 || len(out.RangeProof) > 0 {
			return true
		}
	}

	return false
}

// Copy returns a deep copy of the transaction.
func (m *MsgTx) Copy() *MsgTx {
	var buf bytes.Buffer
	if err := m.Serialize(&buf); err != nil {
		panic(err)
	}

	tx := &MsgTx{}
	if err := tx.Deserialize(&buf); err != nil {
		panic(err)
	}

	return tx
}

// TxHash returns the transaction id, the double SHA256 of the serialization
// without witness data.
func (m *MsgTx) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = m.encode(&buf, false)

	return chainhash.DoubleHashH(buf.Bytes())
}

// SerializeSize returns the full serialized size.
func (m *MsgTx) SerializeSize() int {
	var buf bytes.Buffer
	_ = m.encode(&buf, true)

	return buf.Len()
}

// SerializeSizeStripped returns the size without witness data.
func (m *MsgTx) SerializeSizeStripped() int {
	var buf bytes.Buffer
	_ = m.encode(&buf, false)

	return buf.Len()
}

// Weight returns the transaction weight.
func (m *MsgTx) Weight() uint64 {
	base := uint64(m.SerializeSizeStripped())
	total := uint64(m.SerializeSize())

	return base*(blockchain.WitnessScaleFactor-1) + total
}

// Serialize writes the transaction, including witness data when present.
func (m *MsgTx) Serialize(w io.Writer) error {
	return m.encode(w, true)
}

// Bytes returns the serialized transaction.
func (m *MsgTx) Bytes() []byte {
	var buf bytes.Buffer
	_ = m.Serialize(&buf)

	return buf.Bytes()
}

func (m *MsgTx) encode(w io.Writer, withWitness bool) error {
	var scratch [4]byte

	le.PutUint32(scratch[:], uint32(m.Version))
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}

	witness := withWitness && m.HasWitness()
	flag := byte(0)
	if witness {
		flag = 1
	}
	if _, err := w.Write([]byte{flag}); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(m.TxIn))); err != nil {
		return err
	}
	for _, in := range m.TxIn {
		if err := writeTxIn(w, in); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(m.TxOut))); err != nil {
		return err
	}
	for _, out := range m.TxOut {
		if err := writeTxOut(w, out); err != nil {
			return err
		}
	}

	le.PutUint32(scratch[:], m.LockTime)
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}

	if !witness {
		return nil
	}

	for _, in := range m.TxIn {
		err := writeInputWitness(w, in)
		if err != nil {
			return err
		}
	}

	for _, out := range m.TxOut {
		if err := wire.WriteVarBytes(w, 0, out.SurjectionProof); err != nil {
			return err
		}
		if err := wire.WriteVarBytes(w, 0, out.RangeProof); err != nil {
			return err
		}
	}

	return nil
}

// Deserialize decodes a transaction from r.
func (m *MsgTx) Deserialize(r io.Reader) error {
	var scratch [4]byte

	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return err
	}
	m.Version = int32(le.Uint32(scratch[:]))

	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return err
	}
	if flag[0] > 1 {
		return fmt.Errorf("%w: unknown flag %d", ErrMalformedTx, flag[0])
	}

	count, err := readCount(r)
	if err != nil {
		return err
	}
	m.TxIn = make([]*TxIn, 0, count)
	for i := uint64(0); i < count; i++ {
		in, err := readTxIn(r)
		if err != nil {
			return err
		}
		m.TxIn = append(m.TxIn, in)
	}

	count, err = readCount(r)
	if err != nil {
		return err
	}
	m.TxOut = make([]*TxOut, 0, count)
	for i := uint64(0); i < count; i++ {
		out, err := readTxOut(r)
		if err != nil {
			return err
		}
		m.TxOut = append(m.TxOut, out)
	}

	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return err
	}
	m.LockTime = le.Uint32(scratch[:])

	if flag[0] == 0 {
		return nil
	}

	for _, in := range m.TxIn {
		if err := readInputWitness(r, in); err != nil {
			return err
		}
	}

	for _, out := range m.TxOut {
		out.SurjectionProof, err = readProof(r)
		if err != nil {
			return err
		}
		out.RangeProof, err = readProof(r)
		if err != nil {
			return err
		}
	}

	return nil
}

// NewMsgTxFromBytes decodes a serialized transaction.
func NewMsgTxFromBytes(b []byte) (*MsgTx, error) {
	tx := &MsgTx{}

	r := bytes.NewReader(b)
	if err := tx.Deserialize(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedTx, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTx,
			r.Len())
	}

	return tx, nil
}

func writeOutPoint(w io.Writer, op wire.OutPoint, flags uint32) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}

	var idx [4]byte
	le.PutUint32(idx[:], op.Index|flags)
	_, err := w.Write(idx[:])

	return err
}

func writeTxIn(w io.Writer, in *TxIn) error {
	var flags uint32

	// The coinbase index carries no flags.
	if in.PreviousOutPoint.Index != wire.MaxPrevOutIndex {
		if in.Issuance != nil {
			flags |= OutpointIssuanceFlag
		}
		if in.IsPegin {
			flags |= OutpointPeginFlag
		}
	}

	if err := writeOutPoint(w, in.PreviousOutPoint, flags); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, in.SignatureScript); err != nil {
		return err
	}

	var seq [4]byte
	le.PutUint32(seq[:], in.Sequence)
	if _, err := w.Write(seq[:]); err != nil {
		return err
	}

	if in.Issuance != nil {
		return writeIssuance(w, in.Issuance)
	}

	return nil
}

func writeIssuance(w io.Writer, iss *AssetIssuance) error {
	if _, err := w.Write(iss.AssetBlindingNonce[:]); err != nil {
		return err
	}
	if _, err := w.Write(iss.AssetEntropy[:]); err != nil {
		return err
	}
	if _, err := w.Write(nullable(iss.Amount)); err != nil {
		return err
	}
	_, err := w.Write(nullable(iss.InflationKeys))

	return err
}

func writeTxOut(w io.Writer, out *TxOut) error {
	for _, field := range [][]byte{out.Asset, out.Value, out.Nonce} {
		if _, err := w.Write(nullable(field)); err != nil {
			return err
		}
	}

	return wire.WriteVarBytes(w, 0, out.PkScript)
}

func writeInputWitness(w io.Writer, in *TxIn) error {
	if err := wire.WriteVarBytes(w, 0, in.IssuanceRangeProof); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, in.InflationRangeProof); err != nil {
		return err
	}
	if err := writeWitness(w, in.Witness); err != nil {
		return err
	}

	return writeWitness(w, in.PeginWitness)
}

func writeWitness(w io.Writer, wit wire.TxWitness) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(wit))); err != nil {
		return err
	}
	for _, item := range wit {
		if err := wire.WriteVarBytes(w, 0, item); err != nil {
			return err
		}
	}

	return nil
}

func readCount(r io.Reader) (uint64, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}
	if count > maxItems {
		return 0, fmt.Errorf("%w: count %d too large", ErrMalformedTx,
			count)
	}

	return count, nil
}

func readProof(r io.Reader) ([]byte, error) {
	b, err := wire.ReadVarBytes(r, 0, maxProofSize, "proof")
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}

	return b, nil
}

func readTxIn(r io.Reader) (*TxIn, error) {
	in := &TxIn{}

	if _, err := io.ReadFull(r, in.PreviousOutPoint.Hash[:]); err != nil {
		return nil, err
	}

	var scratch [4]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, err
	}
	index := le.Uint32(scratch[:])

	hasIssuance := false
	if index != wire.MaxPrevOutIndex {
		hasIssuance = index&OutpointIssuanceFlag != 0
		in.IsPegin = index&OutpointPeginFlag != 0
		index &= OutpointIndexMask
	}
	in.PreviousOutPoint.Index = index

	var err error
	in.SignatureScript, err = wire.ReadVarBytes(
		r, 0, maxProofSize, "sigScript",
	)
	if err != nil {
		return nil, err
	}
	if len(in.SignatureScript) == 0 {
		in.SignatureScript = nil
	}

	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, err
	}
	in.Sequence = le.Uint32(scratch[:])

	if !hasIssuance {
		return in, nil
	}

	iss := &AssetIssuance{}
	if _, err := io.ReadFull(r, iss.AssetBlindingNonce[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, iss.AssetEntropy[:]); err != nil {
		return nil, err
	}
	if iss.Amount, err = readConfValue(r); err != nil {
		return nil, err
	}
	if iss.InflationKeys, err = readConfValue(r); err != nil {
		return nil, err
	}
	in.Issuance = iss

	return in, nil
}

func readTxOut(r io.Reader) (*TxOut, error) {
	out := &TxOut{}

	var err error
	if out.Asset, err = readConfAsset(r); err != nil {
		return nil, err
	}
	if out.Value, err = readConfValue(r); err != nil {
		return nil, err
	}
	if out.Nonce, err = readConfNonce(r); err != nil {
		return nil, err
	}

	out.PkScript, err = wire.ReadVarBytes(r, 0, maxProofSize, "pkScript")
	if err != nil {
		return nil, err
	}
	if len(out.PkScript) == 0 {
		out.PkScript = nil
	}

	return out, nil
}

func readInputWitness(r io.Reader, in *TxIn) error {
	var err error

	if in.IssuanceRangeProof, err = readProof(r); err != nil {
		return err
	}
	if in.InflationRangeProof, err = readProof(r); err != nil {
		return err
	}
	if in.Witness, err = readWitness(r); err != nil {
		return err
	}
	in.PeginWitness, err = readWitness(r)

	return err
}

func readWitness(r io.Reader) (wire.TxWitness, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	wit := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(r, 0, maxProofSize, "witness")
		if err != nil {
			return nil, err
		}
		wit = append(wit, item)
	}

	return wit, nil
}
