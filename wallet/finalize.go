package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/pset"
	"github.com/ok300/lwk/signer"
)

var (
	// ErrIncompleteSignatures is returned when an input lacks the
	// signatures its script needs.
	ErrIncompleteSignatures = errors.New("incomplete signatures")

	// ErrNoSignatures is returned when a signer adds no signature to a
	// PSET.
	ErrNoSignatures = errors.New("signer added no signatures")
)

// SignWith asks a signer to sign the PSET. It fails with ErrNoSignatures
// when the signer had nothing to sign.
func SignWith(ctx context.Context, s signer.Signer,
	p *pset.Packet) (uint32, error) {

	n, err := s.Sign(ctx, p)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: signer %x", ErrNoSignatures,
			s.Fingerprint())
	}

	log.Debugf("Signer %x added %d signatures", s.Fingerprint(), n)

	return n, nil
}

// Finalize builds the final witness of every input from the collected
// signatures and returns the signed transaction.
func (w *Wallet) Finalize(p *pset.Packet) (*ewire.MsgTx, error) {
	if p == nil {
		return nil, ErrMissingPacket
	}
	if err := p.SanityCheck(); err != nil {
		return nil, err
	}

	for i := range p.Inputs {
		in := &p.Inputs[i]
		if in.IsFinalized() {
			continue
		}

		if err := w.finalizeInput(in); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}

	return p.Extract()
}

func (w *Wallet) finalizeInput(in *pset.PInput) error {
	switch t := w.cfg.Descriptor.Template().(type) {
	case *descriptor.Wpkh:
		witness, err := singleSigWitness(in)
		if err != nil {
			return err
		}
		in.FinalScriptWitness = witness

	case *descriptor.ShWpkh:
		witness, err := singleSigWitness(in)
		if err != nil {
			return err
		}
		if len(in.RedeemScript) == 0 {
			return errors.New("missing redeem script")
		}

		scriptSig, err := txscript.NewScriptBuilder().
			AddData(in.RedeemScript).Script()
		if err != nil {
			return err
		}
		in.FinalScriptSig = scriptSig
		in.FinalScriptWitness = witness

	case *descriptor.WshMulti:
		witness, err := multiSigWitness(in, t.Threshold)
		if err != nil {
			return err
		}
		in.FinalScriptWitness = witness

	default:
		return fmt.Errorf("%w: %T", descriptor.ErrUnsupportedTemplate, t)
	}

	return nil
}

// singleSigWitness returns the witness of a key hash input: the signature
// of any of its keys and the key itself.
func singleSigWitness(in *pset.PInput) (wire.TxWitness, error) {
	for _, d := range in.Bip32Derivation {
		if sig := in.PartialSig(d.PubKey); sig != nil {
			return wire.TxWitness{sig, d.PubKey}, nil
		}
	}

	return nil, ErrIncompleteSignatures
}

// multiSigWitness returns the witness of a multisig input, with the
// signatures in the order of the keys in the witness script.
func multiSigWitness(in *pset.PInput, threshold int) (wire.TxWitness,
	error) {

	if len(in.WitnessScript) == 0 {
		return nil, errors.New("missing witness script")
	}

	pushes, err := txscript.PushedData(in.WitnessScript)
	if err != nil {
		return nil, err
	}

	// The empty element is consumed by the CHECKMULTISIG off by one.
	witness := wire.TxWitness{nil}
	for _, push := range pushes {
		if len(witness)-1 == threshold {
			break
		}
		if sig := in.PartialSig(push); sig != nil {
			witness = append(witness, sig)
		}
	}

	if len(witness)-1 < threshold {
		return nil, fmt.Errorf("%w: %d of %d", ErrIncompleteSignatures,
			len(witness)-1, threshold)
	}

	return append(witness, in.WitnessScript), nil
}
