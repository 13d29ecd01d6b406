package wallet

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/pkg/btcunit"
)

const (
	// inputWitnessOverhead is the empty issuance range proof, inflation
	// range proof and pegin witness every input carries in the witness
	// section.
	inputWitnessOverhead = 3

	// outputWitnessOverhead is the empty surjection and range proof of an
	// unblinded output.
	outputWitnessOverhead = 2

	// rangeProofSize is the size of a range proof over a 52 bit value.
	rangeProofSize = 4174

	// blindedOutputExtra is what a value commitment and an ECDH nonce add
	// over an explicit value and an empty nonce.
	blindedOutputExtra = (ewire.CommitmentSize - ewire.ExplicitValueSize) +
		(ewire.CommitmentSize - 1)
)

// surjectionProofSize returns the size of a surjection proof over the
// given number of inputs.
func surjectionProofSize(numInputs int) int {
	n := numInputs
	if n > 256 {
		n = 256
	}

	return 2 + (n+7)/8 + 32*(n+1)
}

// estimateWeight returns the weight of tx once every input carries a
// satisfaction of satisfyWeight and the outputs flagged in blinded are
// blinded.
func estimateWeight(tx *ewire.MsgTx, satisfyWeight uint64,
	blinded []bool) btcunit.WeightUnit {

	// The unsigned transaction has no witness, so this is its base size
	// counted four times.
	weight := tx.Weight()

	var witness uint64
	for range tx.TxIn {
		witness += satisfyWeight + inputWitnessOverhead
	}

	surjection := uint64(surjectionProofSize(len(tx.TxIn)))
	for i := range tx.TxOut {
		if i >= len(blinded) || !blinded[i] {
			witness += outputWitnessOverhead

			continue
		}

		weight += blindedOutputExtra * blockchain.WitnessScaleFactor
		witness += uint64(wire.VarIntSerializeSize(surjection)) +
			surjection +
			uint64(wire.VarIntSerializeSize(rangeProofSize)) +
			rangeProofSize
	}

	return btcunit.NewWeightUnit(weight + witness)
}
