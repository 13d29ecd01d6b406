package ewire

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func explicitAsset(b byte) []byte {
	a := bytes.Repeat([]byte{b}, CommitmentSize)
	a[0] = prefixExplicit

	return a
}

// newTestTx returns a transaction with one plain input, one issuance input
// and a recipient plus a fee output.
func newTestTx() *MsgTx {
	tx := NewMsgTx(2)
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash: chainhash.Hash{1}, Index: 3,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash: chainhash.Hash{2}, Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum - 1,
		Issuance: &AssetIssuance{
			AssetEntropy:  [32]byte{9},
			Amount:        ExplicitValue(1000),
			InflationKeys: ExplicitValue(1),
		},
	})
	tx.AddTxOut(&TxOut{
		Asset:    explicitAsset(0xaa),
		Value:    ExplicitValue(5000),
		PkScript: []byte{txscript.OP_0, 0x02, 0x01, 0x02},
	})
	tx.AddTxOut(&TxOut{
		Asset: explicitAsset(0xaa),
		Value: ExplicitValue(250),
	})

	return tx
}

// TestMsgTxRoundTrip checks that a transaction with issuances and witness
// data survives serialization, and that witness data does not change the
// txid.
func TestMsgTxRoundTrip(t *testing.T) {
	t.Parallel()

	tx := newTestTx()
	txid := tx.TxHash()
	require.False(t, tx.HasWitness())

	decoded, err := NewMsgTxFromBytes(tx.Bytes())
	require.NoError(t, err)
	require.Equal(t, tx, decoded)

	tx.TxIn[0].Witness = wire.TxWitness{{}, {0x30, 0x01}, {0x51}}
	tx.TxOut[0].RangeProof = []byte{1, 2, 3}
	tx.TxOut[0].SurjectionProof = []byte{4, 5}
	require.True(t, tx.HasWitness())
	require.Equal(t, txid, tx.TxHash())

	decoded, err = NewMsgTxFromBytes(tx.Bytes())
	require.NoError(t, err)
	require.Equal(t, tx.TxIn[0].Witness, decoded.TxIn[0].Witness)
	require.Equal(t, tx.TxOut[0].RangeProof, decoded.TxOut[0].RangeProof)
	require.Equal(t, tx.TxIn[1].Issuance, decoded.TxIn[1].Issuance)
	require.Equal(t, txid, decoded.TxHash())

	// Witness bytes are discounted in the weight.
	base := uint64(tx.SerializeSizeStripped())
	total := uint64(tx.SerializeSize())
	require.Greater(t, total, base)
	require.Equal(t, base*3+total, tx.Weight())
}

// TestOutpointFlags checks that issuance and peg-in markers are carried in
// the serialized outpoint index.
func TestOutpointFlags(t *testing.T) {
	t.Parallel()

	tx := newTestTx()
	tx.TxIn[0].IsPegin = true

	raw := tx.Bytes()

	// version(4) + flag(1) + count(1) + hash(32) = first index at 38.
	first := le.Uint32(raw[38:42])
	require.Equal(t, uint32(3)|OutpointPeginFlag, first)

	decoded, err := NewMsgTxFromBytes(raw)
	require.NoError(t, err)
	require.True(t, decoded.TxIn[0].IsPegin)
	require.Equal(t, uint32(3), decoded.TxIn[0].PreviousOutPoint.Index)
	require.NotNil(t, decoded.TxIn[1].Issuance)
	require.False(t, decoded.TxIn[1].Issuance.IsReissuance())
}

// TestMalformedTx checks that garbage is rejected.
func TestMalformedTx(t *testing.T) {
	t.Parallel()

	raw := newTestTx().Bytes()

	_, err := NewMsgTxFromBytes(append(raw, 0x00))
	require.ErrorIs(t, err, ErrMalformedTx)

	_, err = NewMsgTxFromBytes(raw[:len(raw)-3])
	require.ErrorIs(t, err, ErrMalformedTx)

	bad := bytes.Clone(raw)
	bad[4] = 7
	_, err = NewMsgTxFromBytes(bad)
	require.ErrorIs(t, err, ErrMalformedTx)
}

// TestExplicitValues checks the explicit value and asset helpers.
func TestExplicitValues(t *testing.T) {
	t.Parallel()

	v, ok := ParseExplicitValue(ExplicitValue(123456))
	require.True(t, ok)
	require.Equal(t, uint64(123456), v)

	commitment := bytes.Repeat([]byte{0x08}, CommitmentSize)
	_, ok = ParseExplicitValue(commitment)
	require.False(t, ok)
	require.False(t, IsExplicit(commitment))
	require.True(t, IsNull(nil))
	require.True(t, IsNull([]byte{0}))

	a, ok := ParseExplicitAsset(explicitAsset(0xbb))
	require.True(t, ok)
	require.Equal(t, byte(0xbb), a[0])

	fee := &TxOut{Asset: explicitAsset(1), Value: ExplicitValue(1)}
	require.True(t, fee.IsFee())
}

// TestWitnessSigHash checks that the signature hash commits to the spent
// value, the issuances and the outputs.
func TestWitnessSigHash(t *testing.T) {
	t.Parallel()

	tx := newTestTx()
	scriptCode, err := P2WPKHScriptCode(bytes.Repeat([]byte{1}, 20))
	require.NoError(t, err)
	require.Len(t, scriptCode, 25)

	hash := func(tx *MsgTx, idx int, value []byte) []byte {
		h, err := CalcWitnessSigHash(
			scriptCode, NewSigHashes(tx), txscript.SigHashAll, tx,
			idx, value,
		)
		require.NoError(t, err)
		require.Len(t, h, 32)

		return h
	}

	base := hash(tx, 0, ExplicitValue(100))
	require.Equal(t, base, hash(tx, 0, ExplicitValue(100)))
	require.NotEqual(t, base, hash(tx, 0, ExplicitValue(101)))
	require.NotEqual(t, base, hash(tx, 1, ExplicitValue(100)))

	// Changing an issuance on another input changes every sighash.
	changed := tx.Copy()
	changed.TxIn[1].Issuance.Amount = ExplicitValue(1001)
	require.NotEqual(t, base, hash(changed, 0, ExplicitValue(100)))

	// Witness data is not committed to.
	witnessed := tx.Copy()
	witnessed.TxIn[1].Witness = wire.TxWitness{{1}}
	require.Equal(t, base, hash(witnessed, 0, ExplicitValue(100)))

	_, err = CalcWitnessSigHash(
		scriptCode, NewSigHashes(tx), txscript.SigHashNone, tx, 0,
		ExplicitValue(1),
	)
	require.ErrorIs(t, err, ErrUnsupportedSigHash)
}
