package wallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/davecgh/go-spew/spew"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/pkg/wait"
	"github.com/ok300/lwk/wtxmgr"
)

// FullScan asks the backend for the chain data the ledger is missing and
// applies it. It reports whether anything besides the tip changed.
func (w *Wallet) FullScan(ctx context.Context) (bool, error) {
	if w.cfg.Backend == nil {
		return false, ErrNoBackend
	}

	update, err := w.cfg.Backend.Scan(
		ctx, w.cfg.Descriptor, w.store.State(),
	)
	if err != nil {
		return false, fmt.Errorf("scan: %w", err)
	}
	if update == nil {
		return false, nil
	}

	tip := w.store.Tip()
	changed := !update.IsEmpty()
	if !changed && update.Tip.Hash == tip.Hash &&
		update.Tip.Height == tip.Height {

		return false, nil
	}

	if err := w.ApplyUpdate(ctx, update); err != nil {
		return false, err
	}

	log.Debugf("Applied scan with %d new transactions, tip %d",
		len(update.NewTxs), update.Tip.Height)

	return changed, nil
}

// Broadcast sends a finalized transaction to the network.
func (w *Wallet) Broadcast(ctx context.Context,
	tx *ewire.MsgTx) (chainhash.Hash, error) {

	if w.cfg.Backend == nil {
		return chainhash.Hash{}, ErrNoBackend
	}

	txid, err := w.cfg.Backend.Broadcast(ctx, tx)
	if err != nil {
		log.Debugf("Rejected transaction: %v", newLogClosure(
			func() string {
				return spew.Sdump(tx)
			},
		))

		return chainhash.Hash{}, fmt.Errorf("broadcast %v: %w",
			tx.TxHash(), err)
	}

	log.Infof("Broadcast transaction %v", txid)

	return txid, nil
}

// WaitForTx scans until the ledger knows the transaction.
func (w *Wallet) WaitForTx(ctx context.Context,
	txid chainhash.Hash) (*wtxmgr.WalletTx, error) {

	var wtx *wtxmgr.WalletTx
	err := wait.Poll(ctx, w.cfg.WaitConfig, func() error {
		if _, err := w.FullScan(ctx); err != nil {
			return err
		}

		var err error
		wtx, err = w.store.Transaction(txid)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("wait for %v: %w", txid, err)
	}

	return wtx, nil
}

// WaitForHeight waits until the backend reports a tip at or above height,
// then scans so the ledger catches up.
func (w *Wallet) WaitForHeight(ctx context.Context, height uint32) error {
	if w.cfg.Backend == nil {
		return ErrNoBackend
	}

	err := wait.Poll(ctx, w.cfg.WaitConfig, func() error {
		tip, err := w.cfg.Backend.Tip(ctx)
		if err != nil {
			return err
		}
		if tip.Height < height {
			return fmt.Errorf("tip %d below %d", tip.Height, height)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("wait for height %d: %w", height, err)
	}

	_, err = w.FullScan(ctx)

	return err
}
