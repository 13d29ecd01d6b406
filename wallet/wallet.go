// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet ties a descriptor, the ledger of its outputs and the
// network together. It builds, analyses and finalizes confidential
// transactions for the wallet.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/address"
	"github.com/ok300/lwk/chain"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/network"
	"github.com/ok300/lwk/pkg/btcunit"
	"github.com/ok300/lwk/pkg/wait"
	"github.com/ok300/lwk/wtxmgr"
)

var (
	// ErrMissingParams is returned when the config has no network.
	ErrMissingParams = errors.New("missing network params")

	// ErrMissingDescriptor is returned when the config has no descriptor.
	ErrMissingDescriptor = errors.New("missing descriptor")

	// ErrNoBackend is returned by operations that need the network when
	// no backend is configured.
	ErrNoBackend = errors.New("no chain backend configured")
)

// Config holds the collaborators and defaults of a wallet.
type Config struct {
	// Params is the network the wallet operates on.
	Params *network.Params

	// Descriptor defines the scripts owned by the wallet.
	Descriptor *descriptor.Descriptor

	// Blinder blinds and unblinds outputs. Defaults to
	// confidential.ExplicitBlinder.
	Blinder confidential.Blinder

	// Persister stores merged updates. Optional.
	Persister wtxmgr.Persister

	// Backend scans the chain and broadcasts transactions. Optional.
	Backend chain.Backend

	// FeeRate is the default fee rate of built transactions. Defaults to
	// btcunit.DefaultSatPerKVByte.
	FeeRate btcunit.SatPerKVByte

	// WaitConfig bounds WaitForTx and WaitForHeight.
	WaitConfig wait.Config
}

// validate checks the config and fills in the defaults.
func (c *Config) validate() error {
	if c.Params == nil {
		return ErrMissingParams
	}
	if c.Descriptor == nil {
		return ErrMissingDescriptor
	}

	// Only descriptors we can build satisfactions for are usable.
	if _, err := c.Descriptor.MaxWeightToSatisfy(); err != nil {
		return err
	}

	if c.Blinder == nil {
		c.Blinder = confidential.ExplicitBlinder{}
	}
	if !c.FeeRate.IsPositive() {
		c.FeeRate = btcunit.DefaultSatPerKVByte
	}
	if c.WaitConfig == (wait.Config{}) {
		c.WaitConfig = wait.DefaultConfig()
	}

	return nil
}

// Wallet is a watch-only view of a descriptor over an Elements chain. It
// never holds private keys; signing goes through a signer.Signer.
type Wallet struct {
	cfg   Config
	store *wtxmgr.Store

	// updatesMtx guards updates and serializes ApplyUpdate.
	updatesMtx sync.Mutex
	updates    []*wtxmgr.Update
}

// New creates a wallet and replays the updates stored by the persister.
func New(ctx context.Context, cfg Config) (*Wallet, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	w := &Wallet{
		cfg: cfg,
		store: wtxmgr.New(
			cfg.Descriptor, cfg.Blinder, cfg.Params.PolicyAsset,
		),
	}

	if cfg.Persister == nil {
		return w, nil
	}

	updates, err := cfg.Persister.LoadUpdates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load updates: %w", err)
	}

	for i, u := range updates {
		if err := w.store.MergeScan(u); err != nil {
			return nil, fmt.Errorf("replay update %d: %w", i, err)
		}
	}
	w.updates = updates

	log.Infof("Opened wallet %v with %d stored updates",
		cfg.Descriptor, len(updates))

	return w, nil
}

// ApplyUpdate validates an update, persists it and merges it into the
// ledger.
func (w *Wallet) ApplyUpdate(ctx context.Context, u *wtxmgr.Update) error {
	if err := u.Validate(); err != nil {
		return err
	}

	w.updatesMtx.Lock()
	defer w.updatesMtx.Unlock()

	if w.cfg.Persister != nil {
		if err := w.cfg.Persister.StoreUpdate(ctx, u); err != nil {
			return fmt.Errorf("store update: %w", err)
		}
	}

	if err := w.store.MergeScan(u); err != nil {
		return err
	}
	w.updates = append(w.updates, u)

	return nil
}

// Updates returns the updates merged so far, in order.
func (w *Wallet) Updates() []*wtxmgr.Update {
	w.updatesMtx.Lock()
	defer w.updatesMtx.Unlock()

	return append([]*wtxmgr.Update(nil), w.updates...)
}

// Tip returns the last chain tip seen by a scan.
func (w *Wallet) Tip() wtxmgr.BlockStamp {
	return w.store.Tip()
}

// Params returns the network of the wallet.
func (w *Wallet) Params() *network.Params {
	return w.cfg.Params
}

// PolicyAsset returns the asset fees are paid in.
func (w *Wallet) PolicyAsset() confidential.AssetID {
	return w.cfg.Params.PolicyAsset
}

// Descriptor returns the wallet descriptor.
func (w *Wallet) Descriptor() *descriptor.Descriptor {
	return w.cfg.Descriptor
}

// MaxWeightToSatisfy returns the weight added by the satisfaction of one
// wallet input.
func (w *Wallet) MaxWeightToSatisfy() uint64 {
	// validate made sure the template is supported.
	weight, _ := w.cfg.Descriptor.MaxWeightToSatisfy()

	return weight
}

// Balance returns the unspent balance per asset.
func (w *Wallet) Balance() map[confidential.AssetID]uint64 {
	return w.store.Balance()
}

// UTXOs returns the unspent wallet outputs.
func (w *Wallet) UTXOs() []wtxmgr.WalletTxOut {
	return w.store.UTXOs()
}

// Transactions returns the wallet transactions, newest first.
func (w *Wallet) Transactions() []*wtxmgr.WalletTx {
	return w.store.Transactions()
}

// Transaction returns a single wallet transaction.
func (w *Wallet) Transaction(txid chainhash.Hash) (*wtxmgr.WalletTx, error) {
	return w.store.Transaction(txid)
}

// Issuances returns the issuances and reissuances of the wallet
// transactions.
func (w *Wallet) Issuances() []wtxmgr.IssuanceDetails {
	return w.store.Issuances()
}

// Issuance returns the issuance that created asset.
func (w *Wallet) Issuance(
	asset confidential.AssetID) (*wtxmgr.IssuanceDetails, error) {

	return w.store.Issuance(asset)
}

// Address returns the external address at index, or the first unused one
// when index is none.
func (w *Wallet) Address(index fn.Option[uint32]) (*address.Address, error) {
	idx := index.UnwrapOr(w.store.NextIndex(descriptor.External))

	return w.address(descriptor.External, idx)
}

// changeChain is the chain change goes to. Descriptors without a
// multipath step have a single chain.
func (w *Wallet) changeChain() descriptor.Chain {
	if w.cfg.Descriptor.IsMultipath() {
		return descriptor.Internal
	}

	return descriptor.External
}

func (w *Wallet) address(branch descriptor.Chain,
	index uint32) (*address.Address, error) {

	script, err := w.cfg.Descriptor.ScriptPubKey(branch, index)
	if err != nil {
		return nil, err
	}

	return address.FromScript(
		w.cfg.Params, script, w.cfg.Descriptor.BlindingPubKey(script),
	)
}
