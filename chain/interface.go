// Package chain defines the network backend a wallet scans and broadcasts
// through.
package chain

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/wtxmgr"
)

// ErrNetworkUnavailable is returned by backends that cannot reach the
// network.
var ErrNetworkUnavailable = errors.New("network unavailable")

// Backend is the network collaborator of a wallet.
type Backend interface {
	// Scan returns the chain data of the wallet described by desc that
	// is missing from state. A nil update means nothing changed.
	Scan(ctx context.Context, desc *descriptor.Descriptor,
		state *wtxmgr.ScanState) (*wtxmgr.Update, error)

	// Broadcast submits a transaction and returns its txid.
	Broadcast(ctx context.Context, tx *ewire.MsgTx) (chainhash.Hash,
		error)

	// Tip returns the current best block.
	Tip(ctx context.Context) (wtxmgr.BlockStamp, error)
}
