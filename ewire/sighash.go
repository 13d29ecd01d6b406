package ewire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrUnsupportedSigHash is returned for sighash types other than
// SIGHASH_ALL.
var ErrUnsupportedSigHash = errors.New("only SIGHASH_ALL is supported")

// SigHashes caches the per transaction midstate hashes shared by all inputs.
type SigHashes struct {
	hashPrevOuts  chainhash.Hash
	hashSequence  chainhash.Hash
	hashIssuances chainhash.Hash
	hashOutputs   chainhash.Hash
}

// NewSigHashes computes the cached hashes of tx.
func NewSigHashes(tx *MsgTx) *SigHashes {
	var prevOuts, seqs, issuances, outputs bytes.Buffer

	for _, in := range tx.TxIn {
		_ = writeOutPoint(&prevOuts, in.PreviousOutPoint, 0)

		var seq [4]byte
		le.PutUint32(seq[:], in.Sequence)
		seqs.Write(seq[:])

		if in.Issuance == nil {
			issuances.WriteByte(prefixNull)
		} else {
			_ = writeIssuance(&issuances, in.Issuance)
		}
	}

	for _, out := range tx.TxOut {
		_ = writeTxOut(&outputs, out)
	}

	return &SigHashes{
		hashPrevOuts:  chainhash.DoubleHashH(prevOuts.Bytes()),
		hashSequence:  chainhash.DoubleHashH(seqs.Bytes()),
		hashIssuances: chainhash.DoubleHashH(issuances.Bytes()),
		hashOutputs:   chainhash.DoubleHashH(outputs.Bytes()),
	}
}

// CalcWitnessSigHash returns the segwit v0 signature hash of input idx
// spending an output with the given confidential value, using scriptCode as
// the script being satisfied.
func CalcWitnessSigHash(scriptCode []byte, hashes *SigHashes,
	hashType txscript.SigHashType, tx *MsgTx, idx int,
	value []byte) ([]byte, error) {

	if hashType != txscript.SigHashAll {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSigHash, hashType)
	}
	if idx < 0 || idx >= len(tx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range", idx)
	}
	if len(value) == 0 {
		return nil, errors.New("missing spent output value")
	}

	var buf bytes.Buffer
	write := func(w io.Writer, b []byte) {
		_, _ = w.Write(b)
	}

	var scratch [4]byte
	le.PutUint32(scratch[:], uint32(tx.Version))
	write(&buf, scratch[:])

	write(&buf, hashes.hashPrevOuts[:])
	write(&buf, hashes.hashSequence[:])
	write(&buf, hashes.hashIssuances[:])

	in := tx.TxIn[idx]
	_ = writeOutPoint(&buf, in.PreviousOutPoint, 0)
	_ = wire.WriteVarBytes(&buf, 0, scriptCode)
	write(&buf, value)

	le.PutUint32(scratch[:], in.Sequence)
	write(&buf, scratch[:])

	if in.Issuance != nil {
		_ = writeIssuance(&buf, in.Issuance)
	}

	write(&buf, hashes.hashOutputs[:])

	le.PutUint32(scratch[:], tx.LockTime)
	write(&buf, scratch[:])

	le.PutUint32(scratch[:], uint32(hashType))
	write(&buf, scratch[:])

	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// P2WPKHScriptCode returns the script code used when signing a P2WPKH input
// whose witness program is pkHash.
func P2WPKHScriptCode(pkHash []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pkHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}
