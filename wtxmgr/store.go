// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wtxmgr keeps the transactions of a wallet, and derives its unspent
// outputs, balances and issuances from them.
package wtxmgr

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
)

var (
	// ErrTxNotFound is returned when a transaction is not in the store.
	ErrTxNotFound = errors.New("transaction not found")

	// ErrNotMine is returned when unblinding an output that does not pay
	// a wallet script.
	ErrNotMine = errors.New("output does not belong to the wallet")

	// ErrInvalidUpdate is returned by MergeScan for malformed updates.
	ErrInvalidUpdate = errors.New("invalid update")
)

// Store implements the transaction store of a single descriptor wallet. It
// is safe for concurrent use, MergeScan being the only writer.
type Store struct {
	desc        *descriptor.Descriptor
	blinder     confidential.Blinder
	policyAsset confidential.AssetID

	mu         sync.RWMutex
	txs        map[chainhash.Hash]*ewire.MsgTx
	heights    map[chainhash.Hash]uint32
	timestamps map[chainhash.Hash]uint32
	scripts    map[string]ScriptInfo
	tip        BlockStamp
}

// New returns an empty store for the wallet described by desc. Outputs are
// opened with blinder, which defaults to confidential.ExplicitBlinder.
func New(desc *descriptor.Descriptor, blinder confidential.Blinder,
	policyAsset confidential.AssetID) *Store {

	if blinder == nil {
		blinder = confidential.ExplicitBlinder{}
	}

	return &Store{
		desc:        desc,
		blinder:     blinder,
		policyAsset: policyAsset,
		txs:         make(map[chainhash.Hash]*ewire.MsgTx),
		heights:     make(map[chainhash.Hash]uint32),
		timestamps:  make(map[chainhash.Hash]uint32),
		scripts:     make(map[string]ScriptInfo),
	}
}

// PolicyAsset returns the fee asset of the network.
func (s *Store) PolicyAsset() confidential.AssetID {
	return s.policyAsset
}

// MergeScan applies a scan update to the store.
func (s *Store) MergeScan(update *Update) error {
	if err := update.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, txid := range update.Deleted {
		delete(s.txs, txid)
		delete(s.heights, txid)
		delete(s.timestamps, txid)
	}

	for _, tx := range update.NewTxs {
		txid := tx.TxHash()
		s.txs[txid] = tx
		if _, ok := s.heights[txid]; !ok {
			s.heights[txid] = 0
		}
	}

	maps.Copy(s.heights, update.Heights)
	maps.Copy(s.timestamps, update.Timestamps)
	maps.Copy(s.scripts, update.Scripts)

	// Heights of transactions we do not hold are meaningless.
	for txid := range s.heights {
		if _, ok := s.txs[txid]; !ok {
			delete(s.heights, txid)
		}
	}

	if update.Tip.Height != 0 || update.Tip.Hash != (chainhash.Hash{}) {
		s.tip = update.Tip
	}

	log.Debugf("Merged update: %d new txs, %d deleted, %d scripts, "+
		"tip=%d", len(update.NewTxs), len(update.Deleted),
		len(update.Scripts), s.tip.Height)

	return nil
}

// Tip returns the last chain tip merged into the store.
func (s *Store) Tip() BlockStamp {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tip
}

// State returns what a scan needs to continue from the current store.
func (s *Store) State() *ScanState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txids := slices.Collect(maps.Keys(s.txs))
	slices.SortFunc(txids, compareHash)

	return &ScanState{
		Tip:     s.tip,
		Txids:   txids,
		Heights: maps.Clone(s.heights),
		Scripts: maps.Clone(s.scripts),
	}
}

// IsMine returns the derivation of a wallet script.
func (s *Store) IsMine(script []byte) (ScriptInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.scripts[ScriptKey(script)]

	return info, ok
}

// NextIndex returns the first derivation index of chain not yet used by a
// wallet output.
func (s *Store) NextIndex(chain descriptor.Chain) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	next := fn.None[uint32]()
	for _, tx := range s.txs {
		for _, out := range tx.TxOut {
			info, ok := s.scripts[ScriptKey(out.PkScript)]
			if !ok || info.Chain != chain {
				continue
			}
			if info.Index+1 > next.UnwrapOr(0) {
				next = fn.Some(info.Index + 1)
			}
		}
	}

	return next.UnwrapOr(0)
}

// Output returns a stored transaction output.
func (s *Store) Output(op wire.OutPoint) (*ewire.TxOut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[op.Hash]
	if !ok || int(op.Index) >= len(tx.TxOut) {
		return nil, fmt.Errorf("%w: %v", ErrTxNotFound, op)
	}

	return tx.TxOut[op.Index], nil
}

// Unblind reveals an output paying a wallet script.
func (s *Store) Unblind(out *ewire.TxOut) (*confidential.TxOutSecrets,
	error) {

	if _, ok := s.IsMine(out.PkScript); !ok {
		return nil, ErrNotMine
	}

	return s.unblind(out)
}

// unblind opens an output with the blinding key of its script.
func (s *Store) unblind(out *ewire.TxOut) (*confidential.TxOutSecrets,
	error) {

	key := s.desc.BlindingPrivKey(out.PkScript)

	return confidential.UnblindOutput(s.blinder, out, key)
}

// height returns the confirmation height of a known transaction.
func (s *Store) height(txid chainhash.Hash) fn.Option[uint32] {
	h, ok := s.heights[txid]
	if !ok || h == 0 {
		return fn.None[uint32]()
	}

	return fn.Some(h)
}

// spent returns every outpoint consumed by a stored transaction.
func (s *Store) spent() fn.Set[wire.OutPoint] {
	spent := fn.NewSet[wire.OutPoint]()
	for _, tx := range s.txs {
		for _, in := range tx.TxIn {
			spent.Add(in.PreviousOutPoint)
		}
	}

	return spent
}

func compareHash(a, b chainhash.Hash) int {
	return slices.Compare(a[:], b[:])
}
