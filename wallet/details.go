package wallet

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/pset"
	"github.com/ok300/lwk/wtxmgr"
)

// ErrMissingPacket is returned when no PSET is given.
var ErrMissingPacket = errors.New("missing pset")

// PsetBalance is the effect of a PSET on the wallet.
type PsetBalance struct {
	// Fee is the sum of the explicit fee outputs.
	Fee uint64

	// Balances is the net change per asset. Assets the wallet spends or
	// receives are present even when they net to zero.
	Balances map[confidential.AssetID]int64
}

// InputSignatures lists which keys of an input have signed.
type InputSignatures struct {
	HasSignature     []*psbt.Bip32Derivation
	MissingSignature []*psbt.Bip32Derivation
}

// PsetDetails is the analysis of a PSET from the point of view of the
// wallet.
type PsetDetails struct {
	Balance    PsetBalance
	Signatures []InputSignatures
	Issuances  []wtxmgr.IssuanceDetails

	// InputIsMine and OutputIsMine flag the inputs and outputs that
	// belong to the wallet.
	InputIsMine  []bool
	OutputIsMine []bool
}

// Details analyses a PSET without needing its signatures. Once the
// transaction is merged into the ledger, its wallet transaction reports
// the same balance, fee and issuances.
func (w *Wallet) Details(p *pset.Packet) (*PsetDetails, error) {
	if p == nil {
		return nil, ErrMissingPacket
	}
	if err := p.SanityCheck(); err != nil {
		return nil, err
	}

	tx := p.UnsignedTx
	details := &PsetDetails{
		Balance: PsetBalance{
			Balances: make(map[confidential.AssetID]int64),
			Fee:      wtxmgr.Fee(tx),
		},
		Signatures:   make([]InputSignatures, len(p.Inputs)),
		Issuances:    wtxmgr.TxIssuances(tx),
		InputIsMine:  make([]bool, len(p.Inputs)),
		OutputIsMine: make([]bool, len(tx.TxOut)),
	}

	for i := range p.Inputs {
		in := &p.Inputs[i]
		details.Signatures[i] = inputSignatures(in)

		if in.WitnessUtxo == nil {
			continue
		}

		secrets, ok := w.unblindOwned(in.WitnessUtxo)
		if !ok {
			continue
		}
		details.InputIsMine[i] = true
		details.Balance.Balances[secrets.Asset] -= int64(secrets.Value)
	}

	for i, out := range tx.TxOut {
		secrets, ok := w.unblindOwned(out)
		if !ok {
			continue
		}
		details.OutputIsMine[i] = true
		details.Balance.Balances[secrets.Asset] += int64(secrets.Value)
	}

	return details, nil
}

// unblindOwned reveals an output paying the wallet.
func (w *Wallet) unblindOwned(out *ewire.TxOut) (*confidential.TxOutSecrets,
	bool) {

	secrets, err := w.store.Unblind(out)
	switch {
	case errors.Is(err, wtxmgr.ErrNotMine):
		return nil, false

	case err != nil:
		log.Debugf("Skipping wallet output that cannot be unblinded: "+
			"%v", err)

		return nil, false
	}

	return secrets, true
}

// inputSignatures splits the keys of an input by whether they signed.
func inputSignatures(in *pset.PInput) InputSignatures {
	var sigs InputSignatures
	for _, d := range in.Bip32Derivation {
		if in.PartialSig(d.PubKey) != nil {
			sigs.HasSignature = append(sigs.HasSignature, d)
		} else {
			sigs.MissingSignature = append(sigs.MissingSignature, d)
		}
	}

	return sigs
}
