package wtxmgr

import (
	"cmp"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/descriptor"
)

// WalletTxOut is an output paying the wallet, together with its revealed
// asset and value.
type WalletTxOut struct {
	OutPoint wire.OutPoint
	Script   []byte
	Chain    descriptor.Chain
	Index    uint32

	// Height is none while the transaction is unconfirmed.
	Height fn.Option[uint32]

	Secrets confidential.TxOutSecrets
}

// UTXOs returns the unspent outputs of the wallet. Outputs the blinder
// cannot open are skipped.
func (s *Store) UTXOs() []WalletTxOut {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.utxos()
}

func (s *Store) utxos() []WalletTxOut {
	spent := s.spent()

	var utxos []WalletTxOut
	for txid, tx := range s.txs {
		for vout, out := range tx.TxOut {
			if spent.Contains(outPoint(txid, uint32(vout))) {
				continue
			}

			utxo, ok := s.ownedOutput(txid, uint32(vout), out)
			if ok {
				utxos = append(utxos, utxo)
			}
		}
	}

	slices.SortFunc(utxos, func(a, b WalletTxOut) int {
		return cmp.Or(
			compareHash(a.OutPoint.Hash, b.OutPoint.Hash),
			cmp.Compare(a.OutPoint.Index, b.OutPoint.Index),
		)
	})

	return utxos
}

func outPoint(txid chainhash.Hash, vout uint32) wire.OutPoint {
	return wire.OutPoint{Hash: txid, Index: vout}
}

// Balance returns the sum of the unspent outputs per asset, unconfirmed
// outputs included. The policy asset is always present.
func (s *Store) Balance() map[confidential.AssetID]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance := map[confidential.AssetID]uint64{s.policyAsset: 0}
	for _, utxo := range s.utxos() {
		balance[utxo.Secrets.Asset] += utxo.Secrets.Value
	}

	return balance
}
