package descriptor

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// maxSigWitnessSize is a length prefixed DER signature with sighash
	// byte.
	maxSigWitnessSize = 1 + 73

	// pubKeyWitnessSize is a length prefixed compressed public key.
	pubKeyWitnessSize = 1 + 33

	// nestedScriptSigSize is the push of a 22 byte v0 redeem script.
	nestedScriptSigSize = 1 + 22
)

// Scripts are the scripts of one derived output.
type Scripts struct {
	// PkScript is the output script.
	PkScript []byte

	// WitnessScript is set for witness script hash outputs.
	WitnessScript []byte

	// RedeemScript is set for script hash outputs.
	RedeemScript []byte

	// Keys are the derived keys in descriptor order.
	Keys []*KeyDerivation
}

// Derive returns the scripts of the output at the given chain and index.
func (d *Descriptor) Derive(chain Chain, index uint32) (*Scripts, error) {
	keys := d.Keys()

	derived := make([]*KeyDerivation, 0, len(keys))
	for _, k := range keys {
		kd, err := k.Derive(chain, index)
		if err != nil {
			return nil, err
		}
		derived = append(derived, kd)
	}

	s := &Scripts{Keys: derived}

	switch t := d.template.(type) {
	case *Wpkh:
		s.PkScript = p2wpkhScript(derived[0].PubKey.SerializeCompressed())

	case *ShWpkh:
		s.RedeemScript = p2wpkhScript(
			derived[0].PubKey.SerializeCompressed(),
		)
		s.PkScript = p2shScript(s.RedeemScript)

	case *WshMulti:
		ws, err := multiScript(t.Threshold, derived, t.Sorted)
		if err != nil {
			return nil, err
		}
		s.WitnessScript = ws
		s.PkScript = p2wshScript(ws)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTemplate, t)
	}

	return s, nil
}

// ScriptPubKey returns the output script at the given chain and index.
func (d *Descriptor) ScriptPubKey(chain Chain, index uint32) ([]byte, error) {
	s, err := d.Derive(chain, index)
	if err != nil {
		return nil, err
	}

	return s.PkScript, nil
}

// MaxWeightToSatisfy returns the largest witness and script sig weight
// needed to spend an output of this descriptor.
func (d *Descriptor) MaxWeightToSatisfy() (uint64, error) {
	switch t := d.template.(type) {
	case *Wpkh:
		return 1 + maxSigWitnessSize + pubKeyWitnessSize, nil

	case *ShWpkh:
		witness := uint64(1 + maxSigWitnessSize + pubKeyWitnessSize)

		return witness + nestedScriptSigSize*4, nil

	case *WshMulti:
		scriptLen := uint64(multiScriptLen(len(t.Keys)))

		// Item count, the empty dummy element, the signatures and the
		// witness script itself.
		weight := uint64(1) + 1 +
			uint64(t.Threshold)*maxSigWitnessSize +
			uint64(wire.VarIntSerializeSize(scriptLen)) + scriptLen

		return weight, nil
	}

	return 0, fmt.Errorf("%w: %T", ErrUnsupportedTemplate, d.template)
}

func multiScriptLen(n int) int {
	// OP_k, n pushes of 33 bytes, OP_n and OP_CHECKMULTISIG. Counts above
	// 16 need a two byte push.
	small := func(v int) int {
		if v <= 16 {
			return 1
		}

		return 2
	}

	return small(n) + n*pubKeyWitnessSize + small(n) + 1
}

func p2wpkhScript(pubKey []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(btcutil.Hash160(pubKey)).
		Script()

	return script
}

func p2shScript(redeem []byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(redeem)).
		AddOp(txscript.OP_EQUAL).
		Script()

	return script
}

func p2wshScript(witnessScript []byte) []byte {
	h := sha256.Sum256(witnessScript)
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()

	return script
}

func multiScript(threshold int, keys []*KeyDerivation,
	sorted bool) ([]byte, error) {

	pubKeys := make([][]byte, 0, len(keys))
	for _, k := range keys {
		pubKeys = append(pubKeys, k.PubKey.SerializeCompressed())
	}
	if sorted {
		sort.Slice(pubKeys, func(i, j int) bool {
			return bytes.Compare(pubKeys[i], pubKeys[j]) < 0
		})
	}

	b := txscript.NewScriptBuilder().AddInt64(int64(threshold))
	for _, pk := range pubKeys {
		b.AddData(pk)
	}

	return b.AddInt64(int64(len(pubKeys))).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}
