package wtxmgr

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/ewire"
)

// TxType is the classification of a wallet transaction.
type TxType string

const (
	TxTypeIssuance   TxType = "issuance"
	TxTypeReissuance TxType = "reissuance"
	TxTypeBurn       TxType = "burn"
	TxTypeIncoming   TxType = "incoming"
	TxTypeOutgoing   TxType = "outgoing"
	TxTypeUnknown    TxType = "unknown"
)

// WalletTx is a transaction of the wallet with its effect on the balance.
type WalletTx struct {
	Tx        *ewire.MsgTx
	Txid      chainhash.Hash
	Height    fn.Option[uint32]
	Timestamp fn.Option[uint32]

	// Balance is the net change per asset the wallet sees, including
	// assets with no net change.
	Balance map[confidential.AssetID]int64

	// Fee is the value of the explicit fee outputs.
	Fee uint64

	Type TxType

	// Inputs and Outputs are set where they belong to the wallet.
	Inputs  []fn.Option[WalletTxOut]
	Outputs []fn.Option[WalletTxOut]
}

// IsBurn reports whether out destroys value.
func IsBurn(out *ewire.TxOut) bool {
	if len(out.PkScript) == 0 || out.PkScript[0] != txscript.OP_RETURN {
		return false
	}

	v, ok := ewire.ParseExplicitValue(out.Value)

	return ok && v > 0
}

// Fee returns the sum of the explicit fee outputs of tx.
func Fee(tx *ewire.MsgTx) uint64 {
	var fee uint64
	for _, out := range tx.TxOut {
		if !out.IsFee() {
			continue
		}
		v, _ := ewire.ParseExplicitValue(out.Value)
		fee += v
	}

	return fee
}

// Classify returns the type of a transaction given its issuances and the
// balance change it causes.
func Classify(tx *ewire.MsgTx, issuances []IssuanceDetails,
	balance map[confidential.AssetID]int64) TxType {

	switch {
	case slices.ContainsFunc(issuances, func(d IssuanceDetails) bool {
		return !d.IsReissuance
	}):
		return TxTypeIssuance

	case len(issuances) > 0:
		return TxTypeReissuance

	case slices.ContainsFunc(tx.TxOut, IsBurn):
		return TxTypeBurn
	}

	if len(balance) == 0 {
		return TxTypeUnknown
	}

	incoming, outgoing := true, true
	for _, v := range balance {
		incoming = incoming && v > 0
		outgoing = outgoing && v < 0
	}

	switch {
	case incoming:
		return TxTypeIncoming

	case outgoing:
		return TxTypeOutgoing

	default:
		return TxTypeUnknown
	}
}

// Transaction returns a wallet transaction.
func (s *Store) Transaction(txid chainhash.Hash) (*WalletTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[txid]
	if !ok {
		return nil, ErrTxNotFound
	}

	return s.walletTx(txid, tx), nil
}

// Transactions returns the wallet transactions, unconfirmed first and then
// by decreasing height.
func (s *Store) Transactions() []*WalletTx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := make([]*WalletTx, 0, len(s.txs))
	for txid, tx := range s.txs {
		txs = append(txs, s.walletTx(txid, tx))
	}

	slices.SortFunc(txs, func(a, b *WalletTx) int {
		ha := a.Height.UnwrapOr(^uint32(0))
		hb := b.Height.UnwrapOr(^uint32(0))

		return cmp.Or(cmp.Compare(hb, ha), compareHash(a.Txid, b.Txid))
	})

	return txs
}

// walletTx must be called with the read lock held.
func (s *Store) walletTx(txid chainhash.Hash, tx *ewire.MsgTx) *WalletTx {
	wtx := &WalletTx{
		Tx:        tx,
		Txid:      txid,
		Height:    s.height(txid),
		Timestamp: fn.None[uint32](),
		Balance:   make(map[confidential.AssetID]int64),
		Fee:       Fee(tx),
		Inputs:    make([]fn.Option[WalletTxOut], len(tx.TxIn)),
		Outputs:   make([]fn.Option[WalletTxOut], len(tx.TxOut)),
	}
	if ts, ok := s.timestamps[txid]; ok {
		wtx.Timestamp = fn.Some(ts)
	}

	for i, in := range tx.TxIn {
		wtx.Inputs[i] = fn.None[WalletTxOut]()

		prev, ok := s.txs[in.PreviousOutPoint.Hash]
		if !ok || int(in.PreviousOutPoint.Index) >= len(prev.TxOut) {
			continue
		}

		prevOut := prev.TxOut[in.PreviousOutPoint.Index]
		utxo, ok := s.ownedOutput(in.PreviousOutPoint.Hash,
			in.PreviousOutPoint.Index, prevOut)
		if !ok {
			continue
		}

		wtx.Inputs[i] = fn.Some(utxo)
		wtx.Balance[utxo.Secrets.Asset] -= int64(utxo.Secrets.Value)
	}

	for i, out := range tx.TxOut {
		wtx.Outputs[i] = fn.None[WalletTxOut]()

		utxo, ok := s.ownedOutput(txid, uint32(i), out)
		if !ok {
			continue
		}

		wtx.Outputs[i] = fn.Some(utxo)
		wtx.Balance[utxo.Secrets.Asset] += int64(utxo.Secrets.Value)
	}

	wtx.Type = Classify(tx, TxIssuances(tx), wtx.Balance)

	return wtx
}

// ownedOutput returns the output as a WalletTxOut if it pays the wallet and
// can be unblinded.
func (s *Store) ownedOutput(txid chainhash.Hash, vout uint32,
	out *ewire.TxOut) (WalletTxOut, bool) {

	info, ok := s.scripts[ScriptKey(out.PkScript)]
	if !ok {
		return WalletTxOut{}, false
	}

	secrets, err := s.unblind(out)
	if err != nil {
		log.Debugf("Cannot unblind %v:%d: %v", txid, vout, err)
		return WalletTxOut{}, false
	}

	return WalletTxOut{
		OutPoint: outPoint(txid, vout),
		Script:   bytes.Clone(out.PkScript),
		Chain:    info.Chain,
		Index:    info.Index,
		Height:   s.height(txid),
		Secrets:  *secrets,
	}, true
}
