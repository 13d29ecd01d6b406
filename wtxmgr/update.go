// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
)

// BlockStamp identifies a block of the best chain.
type BlockStamp struct {
	Height    uint32
	Hash      chainhash.Hash
	Timestamp time.Time
}

// ScriptInfo is the derivation of a wallet script.
type ScriptInfo struct {
	Chain descriptor.Chain
	Index uint32
}

// ScriptKey returns the map key of a script.
func ScriptKey(script []byte) string {
	return hex.EncodeToString(script)
}

// Update is a delta of chain data produced by a scan. MergeScan applies it
// to the store.
type Update struct {
	// NewTxs are transactions not yet known to the store.
	NewTxs []*ewire.MsgTx

	// Heights maps a txid to its confirmation height, zero meaning the
	// transaction is in the mempool.
	Heights map[chainhash.Hash]uint32

	// Timestamps maps a txid to the time of its block in unix seconds.
	Timestamps map[chainhash.Hash]uint32

	// Deleted lists transactions evicted from the mempool or reorged
	// out.
	Deleted []chainhash.Hash

	// Scripts are newly revealed wallet scripts, keyed by ScriptKey.
	Scripts map[string]ScriptInfo

	// Tip is the chain tip the scan saw.
	Tip BlockStamp
}

// IsEmpty reports whether applying the update changes nothing but the tip.
func (u *Update) IsEmpty() bool {
	return len(u.NewTxs) == 0 && len(u.Heights) == 0 &&
		len(u.Timestamps) == 0 && len(u.Deleted) == 0 &&
		len(u.Scripts) == 0
}

// Validate checks that the update can be merged. A nil update is invalid.
func (u *Update) Validate() error {
	if u == nil {
		return fmt.Errorf("%w: nil update", ErrInvalidUpdate)
	}

	for i, tx := range u.NewTxs {
		if tx == nil {
			return fmt.Errorf("%w: nil transaction %d",
				ErrInvalidUpdate, i)
		}
	}

	return nil
}

// ScanState is the part of the store a scan resumes from.
type ScanState struct {
	Tip     BlockStamp
	Txids   []chainhash.Hash
	Heights map[chainhash.Hash]uint32
	Scripts map[string]ScriptInfo
}

// Persister stores the updates merged into a store so that reopening the
// wallet replays them.
type Persister interface {
	// LoadUpdates returns every stored update in merge order.
	LoadUpdates(ctx context.Context) ([]*Update, error)

	// StoreUpdate appends an update.
	StoreUpdate(ctx context.Context, update *Update) error
}
