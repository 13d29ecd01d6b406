package pset

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ok300/lwk/ewire"
	"github.com/stretchr/testify/require"
)

var testAsset = append([]byte{0x01}, bytes.Repeat([]byte{0xaa}, 32)...)

func newTestTx() *ewire.MsgTx {
	tx := ewire.NewMsgTx(2)
	tx.AddTxIn(&ewire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxIn(&ewire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{2}, Index: 1},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&ewire.TxOut{
		Asset:    testAsset,
		Value:    ewire.ExplicitValue(900),
		PkScript: append([]byte{txscript.OP_0, 20}, make([]byte, 20)...),
	})
	tx.AddTxOut(&ewire.TxOut{
		Asset: testAsset,
		Value: ewire.ExplicitValue(100),
	})

	return tx
}

func newTestPacket(t *testing.T) *Packet {
	t.Helper()

	p, err := New(newTestTx())
	require.NoError(t, err)

	pkHash := make([]byte, 20)
	for i := range p.Inputs {
		p.Inputs[i].WitnessUtxo = &ewire.TxOut{
			Asset:    testAsset,
			Value:    ewire.ExplicitValue(500),
			PkScript: append([]byte{txscript.OP_0, 20}, pkHash...),
		}
	}

	return p
}

// TestNewRejectsSignedTx checks that a packet is only built around an
// unsigned transaction.
func TestNewRejectsSignedTx(t *testing.T) {
	t.Parallel()

	tx := newTestTx()
	tx.TxIn[1].Witness = wire.TxWitness{{1}}

	_, err := New(tx)
	require.ErrorIs(t, err, ErrInvalidPacket)
}

// TestSerializeRoundTrip checks that every record survives the binary and
// base64 encodings.
func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	p := newTestPacket(t)
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := key.PubKey().SerializeCompressed()

	p.XPubs = []XPub{{
		ExtendedKey: "tpubD6NzVbkrYhZ4XYa9MoLt4BiMZ4gkt2faZ4BcmKu2a9te4LDpQmvEz2L2yDERivHxFPnxXXhqDRkUNnQCpZggCyEZLBktV7VaSmwayqMJy1s",
		Derivation: psbt.Bip32Derivation{
			MasterKeyFingerprint: 0x0403c6c4,
			Bip32Path:            []uint32{0x80000054, 0x80000001},
		},
	}, {
		ExtendedKey: "tpubD6NzVbkrYhZ4Y",
		Derivation: psbt.Bip32Derivation{
			MasterKeyFingerprint: 7,
		},
	}}
	p.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{{
		PubKey:               pub,
		MasterKeyFingerprint: 0x0403c6c4,
		Bip32Path:            []uint32{0x80000054, 0, 3},
	}}
	p.Inputs[0].AddPartialSig(pub, []byte{0x30, 0x01, 0x01})
	p.Inputs[0].SighashType = txscript.SigHashAll
	p.Inputs[1].WitnessScript = []byte{txscript.OP_1}
	p.Inputs[1].RedeemScript = []byte{txscript.OP_0, 0x01, 0x02}
	p.Inputs[1].FinalScriptWitness = wire.TxWitness{{1, 2}, {3}}
	p.Outputs[0].BlindingPubKey = key.PubKey()
	p.Outputs[0].Bip32Derivation = p.Inputs[0].Bip32Derivation

	encoded, err := p.B64Encode()
	require.NoError(t, err)

	decoded, err := NewFromB64(encoded)
	require.NoError(t, err)

	require.Equal(t, p.UnsignedTx.TxHash(), decoded.UnsignedTx.TxHash())
	require.Equal(t, p.XPubs[0], decoded.XPubs[0])
	require.Equal(t, p.XPubs[1].ExtendedKey, decoded.XPubs[1].ExtendedKey)
	require.Empty(t, decoded.XPubs[1].Derivation.Bip32Path)
	require.Equal(t, p.Inputs[0].WitnessUtxo, decoded.Inputs[0].WitnessUtxo)
	require.Equal(t, p.Inputs[0].PartialSigs, decoded.Inputs[0].PartialSigs)
	require.Equal(t, p.Inputs[0].Bip32Derivation,
		decoded.Inputs[0].Bip32Derivation)
	require.Equal(t, txscript.SigHashAll, decoded.Inputs[0].SighashType)
	require.Equal(t, p.Inputs[1].WitnessScript, decoded.Inputs[1].WitnessScript)
	require.Equal(t, p.Inputs[1].RedeemScript, decoded.Inputs[1].RedeemScript)
	require.Equal(t, p.Inputs[1].FinalScriptWitness,
		decoded.Inputs[1].FinalScriptWitness)
	require.True(t, decoded.Outputs[0].BlindingPubKey.IsEqual(key.PubKey()))
	require.Nil(t, decoded.Outputs[1].BlindingPubKey)
	require.Equal(t, p.Outputs[0].Bip32Derivation,
		decoded.Outputs[0].Bip32Derivation)

	// Re-encoding is stable.
	again, err := decoded.B64Encode()
	require.NoError(t, err)
	require.Equal(t, encoded, again)
}

// TestDeserializeErrors checks that garbage input is reported as a
// malformed packet.
func TestDeserializeErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, newTestPacket(t).Serialize(&buf))
	valid := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "bad magic", data: []byte("psbt\xff\x00")},
		{name: "no tx", data: append(bytes.Clone(magic), 0x00)},
		{name: "truncated", data: valid[:len(valid)-3]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Deserialize(bytes.NewReader(tc.data))
			require.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

// TestCombine checks that signatures from another copy of the packet are
// merged and counted once.
func TestCombine(t *testing.T) {
	t.Parallel()

	p := newTestPacket(t)
	other := newTestPacket(t)

	other.Inputs[0].AddPartialSig([]byte{2, 1}, []byte{0x30})
	other.Inputs[1].AddPartialSig([]byte{2, 2}, []byte{0x30})

	added, err := p.Combine(other)
	require.NoError(t, err)
	require.Equal(t, uint32(2), added)

	added, err = p.Combine(other)
	require.NoError(t, err)
	require.Zero(t, added)
	require.Equal(t, []byte{0x30}, p.Inputs[1].PartialSig([]byte{2, 2}))

	different := newTestPacket(t)
	different.UnsignedTx.LockTime = 10
	_, err = p.Combine(different)
	require.ErrorIs(t, err, ErrDifferentTx)
}

// TestWitnessSigHash checks the script code selection of the signature
// hash.
func TestWitnessSigHash(t *testing.T) {
	t.Parallel()

	p := newTestPacket(t)
	hashes := ewire.NewSigHashes(p.UnsignedTx)

	h0, err := p.WitnessSigHash(hashes, 0)
	require.NoError(t, err)
	require.Len(t, h0, 32)

	// A witness script takes precedence over the spent script.
	p.Inputs[0].WitnessScript = []byte{txscript.OP_1}
	h1, err := p.WitnessSigHash(hashes, 0)
	require.NoError(t, err)
	require.NotEqual(t, h0, h1)

	p.Inputs[1].WitnessUtxo = nil
	_, err = p.WitnessSigHash(hashes, 1)
	require.ErrorIs(t, err, ErrMissingUtxo)
}

// TestExtract checks that the final transaction is only produced once all
// inputs are finalized.
func TestExtract(t *testing.T) {
	t.Parallel()

	p := newTestPacket(t)
	p.Inputs[0].FinalScriptWitness = wire.TxWitness{{1}}

	_, err := p.Extract()
	require.ErrorIs(t, err, ErrInvalidPacket)
	require.False(t, p.IsComplete())

	p.Inputs[1].FinalScriptWitness = wire.TxWitness{{2}}
	tx, err := p.Extract()
	require.NoError(t, err)
	require.True(t, p.IsComplete())
	require.Equal(t, p.UnsignedTx.TxHash(), tx.TxHash())
	require.Equal(t, wire.TxWitness{{2}}, tx.TxIn[1].Witness)
	require.Empty(t, p.UnsignedTx.TxIn[1].Witness)
}
