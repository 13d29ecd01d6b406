package confidential

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ok300/lwk/ewire"
)

var (
	// ErrCannotUnblind is returned when an output cannot be opened with
	// the given blinding key.
	ErrCannotUnblind = errors.New("output cannot be unblinded")

	// ErrBlindingMismatch is returned when the blinding request does not
	// match the transaction being blinded.
	ErrBlindingMismatch = errors.New("blinding request mismatch")
)

// TxOutSecrets are the revealed contents of an output.
type TxOutSecrets struct {
	Asset               AssetID
	Value               uint64
	AssetBlindingFactor [32]byte
	ValueBlindingFactor [32]byte
}

// IsExplicit reports whether the output was not blinded at all.
func (s TxOutSecrets) IsExplicit() bool {
	return s.AssetBlindingFactor == [32]byte{} &&
		s.ValueBlindingFactor == [32]byte{}
}

// Blinder hides and reveals output amounts and assets. The range proof,
// surjection proof and commitment arithmetic live behind this interface.
type Blinder interface {
	// Unblind reveals an output using the blinding private key of its
	// script. It returns ErrCannotUnblind when the key does not open the
	// output.
	Unblind(out *ewire.TxOut, key *btcec.PrivateKey) (*TxOutSecrets, error)

	// BlindOutputs blinds every output of tx that has a non-nil entry in
	// keys, balancing the blinding factors against the secrets of the
	// inputs. keys is indexed like tx.TxOut.
	BlindOutputs(tx *ewire.MsgTx, inputs []TxOutSecrets,
		keys []*btcec.PublicKey) error
}

// ExplicitBlinder is the Blinder used when no blinding backend is
// configured. It opens explicit outputs only and leaves every output it is
// asked to blind explicit.
type ExplicitBlinder struct{}

// A compile-time assertion to ensure ExplicitBlinder implements Blinder.
var _ Blinder = (*ExplicitBlinder)(nil)

// Unblind opens explicit outputs.
func (ExplicitBlinder) Unblind(out *ewire.TxOut,
	_ *btcec.PrivateKey) (*TxOutSecrets, error) {

	return ExplicitSecrets(out)
}

// BlindOutputs validates the request and leaves the outputs untouched.
func (ExplicitBlinder) BlindOutputs(tx *ewire.MsgTx, inputs []TxOutSecrets,
	keys []*btcec.PublicKey) error {

	if len(keys) != len(tx.TxOut) {
		return fmt.Errorf("%w: %d keys for %d outputs",
			ErrBlindingMismatch, len(keys), len(tx.TxOut))
	}
	if len(inputs) != len(tx.TxIn) {
		return fmt.Errorf("%w: %d secrets for %d inputs",
			ErrBlindingMismatch, len(inputs), len(tx.TxIn))
	}

	for i, out := range tx.TxOut {
		if !ewire.IsExplicit(out.Asset) || !ewire.IsExplicit(out.Value) {
			return fmt.Errorf("%w: output %d is not explicit",
				ErrBlindingMismatch, i)
		}
	}

	return nil
}

// ExplicitSecrets returns the secrets of an explicit output, which need no
// key to read.
func ExplicitSecrets(out *ewire.TxOut) (*TxOutSecrets, error) {
	asset, ok := ewire.ParseExplicitAsset(out.Asset)
	if !ok {
		return nil, ErrCannotUnblind
	}

	value, ok := ewire.ParseExplicitValue(out.Value)
	if !ok {
		return nil, ErrCannotUnblind
	}

	return &TxOutSecrets{Asset: asset, Value: value}, nil
}

// UnblindOutput reveals an output, reading explicit outputs directly and
// handing confidential ones to the blinder.
func UnblindOutput(b Blinder, out *ewire.TxOut,
	key *btcec.PrivateKey) (*TxOutSecrets, error) {

	if secrets, err := ExplicitSecrets(out); err == nil {
		return secrets, nil
	}

	if key == nil {
		return nil, ErrCannotUnblind
	}

	return b.Unblind(out, key)
}
