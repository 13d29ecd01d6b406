// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/address"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/pkg/btcunit"
	"github.com/ok300/lwk/pset"
)

const (
	// MaxIssuanceAmount is the largest amount of an asset or of its
	// reissuance tokens a single issuance may create.
	MaxIssuanceAmount = 21_000_000 * 100_000_000

	// txVersion is the version of built transactions.
	txVersion = 2

	// inputBaseSize is an outpoint, an empty script sig and a sequence.
	inputBaseSize = 36 + 1 + 4
)

var (
	// ErrInsufficientFunds is returned when the wallet cannot fund the
	// outputs and the fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidRecipient is returned for malformed addresses or assets.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrConflictingInstructions is returned when builder instructions
	// cannot be combined.
	ErrConflictingInstructions = errors.New("conflicting instructions")

	// ErrInvalidAmount is returned for zero amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrIssuanceAmountTooLarge is returned for issuances above
	// MaxIssuanceAmount.
	ErrIssuanceAmountTooLarge = errors.New("issuance amount greater " +
		"than 21M*10^8")

	// ErrMissingIssuance is returned when reissuing an asset the wallet
	// has no issuance record of.
	ErrMissingIssuance = errors.New("missing issuance")

	// ErrTokenNotBlinded is returned when the reissuance token output is
	// explicit, which leaves no blinding nonce for the reissuance.
	ErrTokenNotBlinded = errors.New("reissuance token is not blinded")

	// ErrBuilderUsed is returned when Finish is called twice.
	ErrBuilderUsed = errors.New("transaction builder already used")
)

// burnScript is the unspendable script of burn outputs.
var burnScript = []byte{txscript.OP_RETURN}

// UnvalidatedRecipient is a recipient given as strings, as received from a
// user interface.
type UnvalidatedRecipient struct {
	// Address is a confidential address of the wallet network.
	Address string

	// Satoshi is the amount to send.
	Satoshi uint64

	// Asset is the hex asset id. An empty asset is the policy asset.
	Asset string
}

// issuedKind marks outputs whose asset is only known once the issuance
// input is chosen.
type issuedKind uint8

const (
	notIssued issuedKind = iota
	issuedAsset
	issuedToken
)

// plannedOutput is an output of the transaction being built.
type plannedOutput struct {
	script      []byte
	blindingKey *btcec.PublicKey
	value       uint64
	asset       confidential.AssetID
	issued      issuedKind

	// derivations is set for outputs paying the wallet.
	derivations []*descriptor.KeyDerivation
}

func (o *plannedOutput) txOut() *ewire.TxOut {
	return &ewire.TxOut{
		Asset:    o.asset.ExplicitAsset(),
		Value:    ewire.ExplicitValue(o.value),
		PkScript: o.script,
	}
}

type issuanceRequest struct {
	assetSats    uint64
	assetAddr    *address.Address
	tokenSats    uint64
	tokenAddr    *address.Address
	contractHash confidential.ContractHash
}

type reissuanceRequest struct {
	asset confidential.AssetID
	sats  uint64
	addr  *address.Address
}

// txPlan collects the inputs and outputs chosen before the policy asset
// is funded.
type txPlan struct {
	inputs  []Coin
	outputs []plannedOutput

	// issuance is attached to input 0.
	issuance *ewire.AssetIssuance
}

// TxBuilder collects the instructions of a transaction and turns them into
// an unsigned PSET. A builder is single use.
type TxBuilder struct {
	w *Wallet

	recipients []plannedOutput
	issuance   *issuanceRequest
	reissuance *reissuanceRequest

	feeRate  btcunit.SatPerKVByte
	strategy CoinSelectionStrategy

	drain   bool
	drainTo *address.Address

	used bool
}

// TxBuilder returns a builder for a transaction spending the wallet
// outputs.
func (w *Wallet) TxBuilder() *TxBuilder {
	return &TxBuilder{
		w:        w,
		feeRate:  w.cfg.FeeRate,
		strategy: CoinSelectionLargest,
	}
}

// AddRecipient adds an output sending satoshi of asset to addr.
func (b *TxBuilder) AddRecipient(addr *address.Address, satoshi uint64,
	asset confidential.AssetID) (*TxBuilder, error) {

	out, err := b.recipient(addr, satoshi, asset)
	if err != nil {
		return b, err
	}
	b.recipients = append(b.recipients, *out)

	return b, nil
}

// AddLBTCRecipient adds an output sending satoshi of the policy asset to
// addr.
func (b *TxBuilder) AddLBTCRecipient(addr *address.Address,
	satoshi uint64) (*TxBuilder, error) {

	return b.AddRecipient(addr, satoshi, b.w.PolicyAsset())
}

// AddUnvalidatedRecipient validates and adds a recipient given as strings.
func (b *TxBuilder) AddUnvalidatedRecipient(
	r UnvalidatedRecipient) (*TxBuilder, error) {

	out, err := b.validateRecipient(r)
	if err != nil {
		return b, err
	}
	b.recipients = append(b.recipients, *out)

	return b, nil
}

// SetUnvalidatedRecipients adds every recipient, or none of them if any is
// invalid.
func (b *TxBuilder) SetUnvalidatedRecipients(
	rs []UnvalidatedRecipient) (*TxBuilder, error) {

	outs := make([]plannedOutput, 0, len(rs))
	for i, r := range rs {
		out, err := b.validateRecipient(r)
		if err != nil {
			return b, fmt.Errorf("recipient %d: %w", i, err)
		}
		outs = append(outs, *out)
	}
	b.recipients = append(b.recipients, outs...)

	return b, nil
}

// AddBurn adds an output destroying satoshi of asset.
func (b *TxBuilder) AddBurn(satoshi uint64,
	asset confidential.AssetID) (*TxBuilder, error) {

	if satoshi == 0 {
		return b, ErrInvalidAmount
	}

	b.recipients = append(b.recipients, plannedOutput{
		script: burnScript,
		value:  satoshi,
		asset:  asset,
	})

	return b, nil
}

// IssueAsset issues assetSats of a new asset and tokenSats of its
// reissuance token. Nil addresses send to the wallet. A nil contract
// issues under the all-zero contract hash.
func (b *TxBuilder) IssueAsset(assetSats uint64, assetAddr *address.Address,
	tokenSats uint64, tokenAddr *address.Address,
	contract *confidential.Contract) (*TxBuilder, error) {

	if b.issuance != nil || b.reissuance != nil {
		return b, fmt.Errorf("%w: only one issuance or reissuance is "+
			"supported", ErrConflictingInstructions)
	}
	if assetSats == 0 {
		return b, ErrInvalidAmount
	}
	if assetSats > MaxIssuanceAmount || tokenSats > MaxIssuanceAmount {
		return b, ErrIssuanceAmountTooLarge
	}

	for _, addr := range []*address.Address{assetAddr, tokenAddr} {
		if addr == nil {
			continue
		}
		if err := b.validateAddress(addr); err != nil {
			return b, err
		}
	}

	req := &issuanceRequest{
		assetSats: assetSats,
		assetAddr: assetAddr,
		tokenSats: tokenSats,
		tokenAddr: tokenAddr,
	}
	if contract != nil {
		hash, err := contract.Hash()
		if err != nil {
			return b, err
		}
		req.contractHash = hash
	}
	b.issuance = req

	return b, nil
}

// ReissueAsset mints satoshi more of an asset issued by the wallet, which
// must own one of its reissuance tokens. A nil address sends to the
// wallet.
func (b *TxBuilder) ReissueAsset(asset confidential.AssetID, satoshi uint64,
	addr *address.Address) (*TxBuilder, error) {

	if b.issuance != nil || b.reissuance != nil {
		return b, fmt.Errorf("%w: only one issuance or reissuance is "+
			"supported", ErrConflictingInstructions)
	}
	if satoshi == 0 {
		return b, ErrInvalidAmount
	}
	if satoshi > MaxIssuanceAmount {
		return b, ErrIssuanceAmountTooLarge
	}
	if addr != nil {
		if err := b.validateAddress(addr); err != nil {
			return b, err
		}
	}

	b.reissuance = &reissuanceRequest{
		asset: asset,
		sats:  satoshi,
		addr:  addr,
	}

	return b, nil
}

// FeeRate sets the fee rate. A non-positive rate keeps the wallet default.
func (b *TxBuilder) FeeRate(rate btcunit.SatPerKVByte) *TxBuilder {
	if rate.IsPositive() {
		b.feeRate = rate
	}

	return b
}

// CoinSelection sets the order policy asset coins are spent in.
func (b *TxBuilder) CoinSelection(strategy CoinSelectionStrategy) *TxBuilder {
	if strategy != nil {
		b.strategy = strategy
	}

	return b
}

// DrainLBTCWallet spends every policy asset output of the wallet.
func (b *TxBuilder) DrainLBTCWallet() *TxBuilder {
	b.drain = true

	return b
}

// DrainLBTCTo sets where drained funds go. The default is a wallet
// address.
func (b *TxBuilder) DrainLBTCTo(addr *address.Address) *TxBuilder {
	b.drainTo = addr

	return b
}

func (b *TxBuilder) validateRecipient(
	r UnvalidatedRecipient) (*plannedOutput, error) {

	addr, err := address.Decode(r.Address, b.w.Params())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}

	asset := b.w.PolicyAsset()
	if r.Asset != "" {
		asset, err = confidential.NewAssetIDFromStr(r.Asset)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
		}
	}

	return b.recipient(addr, r.Satoshi, asset)
}

func (b *TxBuilder) recipient(addr *address.Address, satoshi uint64,
	asset confidential.AssetID) (*plannedOutput, error) {

	if satoshi == 0 {
		return nil, ErrInvalidAmount
	}
	if err := b.validateAddress(addr); err != nil {
		return nil, err
	}

	out := b.w.outputTo(addr)
	out.value = satoshi
	out.asset = asset

	return &out, nil
}

func (b *TxBuilder) validateAddress(addr *address.Address) error {
	switch {
	case addr == nil:
		return fmt.Errorf("%w: missing address", ErrInvalidRecipient)

	case addr.Params().Name != b.w.Params().Name:
		return fmt.Errorf("%w: %w", ErrInvalidRecipient,
			address.ErrWrongNetwork)

	case !addr.IsConfidential():
		return fmt.Errorf("%w: %v is not confidential",
			ErrInvalidRecipient, addr)
	}

	return nil
}

// outputTo returns an output paying addr, recording the derivation of the
// script when it belongs to the wallet.
func (w *Wallet) outputTo(addr *address.Address) plannedOutput {
	out := plannedOutput{
		script:      addr.ScriptPubKey(),
		blindingKey: addr.BlindingKey(),
	}

	info, ok := w.store.IsMine(out.script)
	if !ok {
		return out
	}

	scripts, err := w.cfg.Descriptor.Derive(info.Chain, info.Index)
	if err == nil {
		out.derivations = scripts.Keys
	}

	return out
}

// walletOutput returns an output paying the first unused script of a
// chain.
func (w *Wallet) walletOutput(branch descriptor.Chain) (plannedOutput,
	error) {

	index := w.store.NextIndex(branch)
	scripts, err := w.cfg.Descriptor.Derive(branch, index)
	if err != nil {
		return plannedOutput{}, err
	}

	return plannedOutput{
		script:      scripts.PkScript,
		blindingKey: w.cfg.Descriptor.BlindingPubKey(scripts.PkScript),
		derivations: scripts.Keys,
	}, nil
}

// addressOutput pays addr, or the wallet when addr is nil.
func (b *TxBuilder) addressOutput(addr *address.Address) (plannedOutput,
	error) {

	if addr == nil {
		return b.w.walletOutput(descriptor.External)
	}

	return b.w.outputTo(addr), nil
}

// Finish selects the coins, computes the fee and returns the unsigned
// PSET. The wallet ledger is left untouched.
func (b *TxBuilder) Finish() (*pset.Packet, error) {
	if b.used {
		return nil, ErrBuilderUsed
	}
	b.used = true

	policy := b.w.PolicyAsset()
	if b.drain {
		for _, r := range b.recipients {
			if r.asset == policy && !slices.Equal(r.script, burnScript) {
				return nil, fmt.Errorf("%w: drain with an explicit "+
					"policy asset recipient",
					ErrConflictingInstructions)
			}
		}
	}

	spendWeight := btcunit.NewWeightUnit(
		inputBaseSize*4 + b.w.MaxWeightToSatisfy() + inputWitnessOverhead,
	)
	coins := make(map[confidential.AssetID][]Coin)
	for _, utxo := range b.w.store.UTXOs() {
		asset := utxo.Secrets.Asset
		coins[asset] = append(coins[asset], Coin{
			WalletTxOut: utxo,
			SpendWeight: spendWeight,
		})
	}

	plan := &txPlan{}
	used := fn.NewSet[wire.OutPoint]()

	if b.reissuance != nil {
		if err := b.planReissuance(plan, coins, used); err != nil {
			return nil, err
		}
	}
	if b.issuance != nil {
		if err := b.planIssuance(plan); err != nil {
			return nil, err
		}
	}

	plan.outputs = append(plan.outputs, b.recipients...)

	if err := b.selectAssets(plan, coins, used); err != nil {
		return nil, err
	}

	var (
		policyNeed  uint64
		policyCoins []Coin
	)
	for _, r := range b.recipients {
		if r.asset == policy {
			policyNeed += r.value
		}
	}
	for _, c := range coins[policy] {
		if !used.Contains(c.OutPoint) {
			policyCoins = append(policyCoins, c)
		}
	}

	return b.fundPolicy(plan, policyCoins, policyNeed)
}

// planReissuance spends a reissuance token on input 0 and pays the token
// back to the wallet.
func (b *TxBuilder) planReissuance(plan *txPlan,
	coins map[confidential.AssetID][]Coin, used fn.Set[wire.OutPoint]) error {

	req := b.reissuance

	issuance, err := b.w.store.Issuance(req.asset)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingIssuance, err)
	}

	tokens, err := CoinSelectionLargest.ArrangeCoins(
		slices.Clone(coins[issuance.Token]), btcunit.ZeroSatPerKVByte,
	)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: no reissuance token %v",
			ErrInsufficientFunds, issuance.Token)
	}

	token := tokens[0]
	abf := token.Secrets.AssetBlindingFactor
	if abf == [32]byte{} {
		return ErrTokenNotBlinded
	}

	plan.inputs = append(plan.inputs, token)
	used.Add(token.OutPoint)
	plan.issuance = &ewire.AssetIssuance{
		AssetBlindingNonce: abf,
		AssetEntropy:       issuance.Entropy,
		Amount:             ewire.ExplicitValue(req.sats),
	}

	assetOut, err := b.addressOutput(req.addr)
	if err != nil {
		return err
	}
	assetOut.asset = req.asset
	assetOut.value = req.sats

	tokenOut, err := b.w.walletOutput(b.w.changeChain())
	if err != nil {
		return err
	}
	tokenOut.asset = issuance.Token
	tokenOut.value = token.Value()

	plan.outputs = append(plan.outputs, assetOut, tokenOut)

	log.Debugf("Reissuing %d of %v spending token %v", req.sats,
		req.asset, token.OutPoint)

	return nil
}

// planIssuance adds the issuance and its outputs. The asset ids are
// resolved once input 0 is known.
func (b *TxBuilder) planIssuance(plan *txPlan) error {
	req := b.issuance

	plan.issuance = &ewire.AssetIssuance{
		AssetEntropy: req.contractHash,
		Amount:       ewire.ExplicitValue(req.assetSats),
	}

	assetOut, err := b.addressOutput(req.assetAddr)
	if err != nil {
		return err
	}
	assetOut.value = req.assetSats
	assetOut.issued = issuedAsset
	plan.outputs = append(plan.outputs, assetOut)

	if req.tokenSats == 0 {
		return nil
	}

	plan.issuance.InflationKeys = ewire.ExplicitValue(req.tokenSats)

	tokenOut, err := b.addressOutput(req.tokenAddr)
	if err != nil {
		return err
	}
	tokenOut.value = req.tokenSats
	tokenOut.issued = issuedToken
	plan.outputs = append(plan.outputs, tokenOut)

	return nil
}

// selectAssets funds every non policy asset of the recipients, largest
// coins first, and returns the change to the wallet.
func (b *TxBuilder) selectAssets(plan *txPlan,
	coins map[confidential.AssetID][]Coin, used fn.Set[wire.OutPoint]) error {

	policy := b.w.PolicyAsset()

	needs := make(map[confidential.AssetID]uint64)
	for _, r := range b.recipients {
		if r.asset != policy {
			needs[r.asset] += r.value
		}
	}

	assets := make([]confidential.AssetID, 0, len(needs))
	for asset := range needs {
		assets = append(assets, asset)
	}
	slices.SortFunc(assets, func(a, b confidential.AssetID) int {
		return slices.Compare(a[:], b[:])
	})

	for _, asset := range assets {
		var eligible []Coin
		for _, c := range coins[asset] {
			if !used.Contains(c.OutPoint) {
				eligible = append(eligible, c)
			}
		}

		arranged, err := CoinSelectionLargest.ArrangeCoins(
			eligible, btcunit.ZeroSatPerKVByte,
		)
		if err != nil {
			return err
		}

		need := needs[asset]

		var total uint64
		for _, c := range arranged {
			if total >= need {
				break
			}
			total += c.Value()
			plan.inputs = append(plan.inputs, c)
			used.Add(c.OutPoint)
		}

		if total < need {
			return fmt.Errorf("%w: need %d of asset %v, have %d",
				ErrInsufficientFunds, need, asset, total)
		}
		if total == need {
			continue
		}

		change, err := b.w.walletOutput(b.w.changeChain())
		if err != nil {
			return err
		}
		change.asset = asset
		change.value = total - need
		plan.outputs = append(plan.outputs, change)
	}

	return nil
}

// fundPolicy adds policy asset coins until they cover the policy outputs
// and the fee, then blinds the transaction and wraps it in a PSET.
func (b *TxBuilder) fundPolicy(plan *txPlan, coins []Coin,
	need uint64) (*pset.Packet, error) {

	policy := b.w.PolicyAsset()

	arranged, err := b.strategy.ArrangeCoins(coins, b.feeRate)
	if err != nil {
		return nil, err
	}

	// The last policy output is the change, or the drain output.
	var last plannedOutput
	if b.drain && b.drainTo != nil {
		if err := b.validateAddress(b.drainTo); err != nil {
			return nil, err
		}
		last = b.w.outputTo(b.drainTo)
	} else {
		branch := b.w.changeChain()
		if b.drain {
			branch = descriptor.External
		}
		last, err = b.w.walletOutput(branch)
		if err != nil {
			return nil, err
		}
	}
	last.asset = policy

	var (
		selected []Coin
		next     int
	)
	if b.drain {
		selected, next = arranged, len(arranged)
	}

	for {
		var total uint64
		for _, c := range selected {
			total += c.Value()
		}

		fee := b.estimateFee(plan, selected, last)

		haveInputs := len(plan.inputs)+len(selected) > 0
		if haveInputs && total >= need+fee {
			last.value = total - need - fee
			if b.drain && last.value == 0 {
				return nil, fmt.Errorf("%w: nothing left to drain "+
					"after a fee of %d", ErrInsufficientFunds, fee)
			}

			return b.finishTx(plan, selected, last, fee)
		}

		if next >= len(arranged) {
			return nil, fmt.Errorf("%w: need %d of the policy asset "+
				"plus a fee of %d, have %d", ErrInsufficientFunds,
				need, fee, total)
		}

		selected = append(selected, arranged[next])
		next++
	}
}

// estimateFee returns the fee of the transaction spending the plan and
// the selected coins, always counting the last policy output.
func (b *TxBuilder) estimateFee(plan *txPlan, selected []Coin,
	last plannedOutput) uint64 {

	tail := []plannedOutput{last, b.feeOutput(0)}
	tx, outputs := b.assemble(plan, selected, tail)
	weight := estimateWeight(
		tx, b.w.MaxWeightToSatisfy(), b.blindedOutputs(outputs),
	)

	fee := uint64(b.feeRate.FeeForWeightRoundUp(weight))
	if fee == 0 {
		fee = 1
	}

	return fee
}

func (b *TxBuilder) feeOutput(fee uint64) plannedOutput {
	return plannedOutput{asset: b.w.PolicyAsset(), value: fee}
}

// blindedOutputs flags the outputs the blinder will blind.
func (b *TxBuilder) blindedOutputs(outputs []plannedOutput) []bool {
	if _, ok := b.w.cfg.Blinder.(confidential.ExplicitBlinder); ok {
		return nil
	}

	blinded := make([]bool, len(outputs))
	for i, out := range outputs {
		blinded[i] = out.blindingKey != nil
	}

	return blinded
}

// assemble builds the unsigned transaction of the plan. Policy coins come
// after the planned inputs and the tail outputs after the planned
// outputs.
func (b *TxBuilder) assemble(plan *txPlan, selected []Coin,
	tail []plannedOutput) (*ewire.MsgTx, []plannedOutput) {

	inputs := append(slices.Clone(plan.inputs), selected...)
	outputs := append(slices.Clone(plan.outputs), tail...)

	tx := ewire.NewMsgTx(txVersion)
	for _, c := range inputs {
		tx.AddTxIn(&ewire.TxIn{
			PreviousOutPoint: c.OutPoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}

	// Without inputs the transaction is only sized, the funding loop adds
	// the input carrying the issuance.
	var asset, token confidential.AssetID
	if plan.issuance != nil && len(tx.TxIn) > 0 {
		issuance := *plan.issuance
		tx.TxIn[0].Issuance = &issuance

		if !issuance.IsReissuance() {
			entropy := confidential.IssuanceEntropy(
				tx.TxIn[0].PreviousOutPoint,
				confidential.ContractHash(issuance.AssetEntropy),
			)
			asset = confidential.IssuedAssetID(entropy)
			token = confidential.ReissuanceTokenID(entropy, false)
		}
	}

	for i := range outputs {
		switch outputs[i].issued {
		case issuedAsset:
			outputs[i].asset = asset
		case issuedToken:
			outputs[i].asset = token
		}
		tx.AddTxOut(outputs[i].txOut())
	}

	return tx, outputs
}

// finishTx assembles the final transaction, blinds it and fills in the
// PSET metadata.
func (b *TxBuilder) finishTx(plan *txPlan, selected []Coin,
	last plannedOutput, fee uint64) (*pset.Packet, error) {

	var tail []plannedOutput
	if last.value > 0 {
		tail = append(tail, last)
	}
	tail = append(tail, b.feeOutput(fee))

	tx, outputs := b.assemble(plan, selected, tail)
	inputs := append(slices.Clone(plan.inputs), selected...)

	secrets := make([]confidential.TxOutSecrets, len(inputs))
	for i, c := range inputs {
		secrets[i] = c.Secrets
	}
	keys := make([]*btcec.PublicKey, len(outputs))
	for i, out := range outputs {
		keys[i] = out.blindingKey
	}

	if err := b.w.cfg.Blinder.BlindOutputs(tx, secrets, keys); err != nil {
		return nil, fmt.Errorf("blind outputs: %w", err)
	}

	p, err := pset.New(tx)
	if err != nil {
		return nil, err
	}

	desc := b.w.cfg.Descriptor
	for i, c := range inputs {
		utxo, err := b.w.store.Output(c.OutPoint)
		if err != nil {
			return nil, err
		}

		scripts, err := desc.Derive(c.Chain, c.Index)
		if err != nil {
			return nil, err
		}

		p.Inputs[i] = pset.PInput{
			WitnessUtxo:     utxo,
			RedeemScript:    scripts.RedeemScript,
			WitnessScript:   scripts.WitnessScript,
			Bip32Derivation: bip32Derivations(scripts.Keys),
			SighashType:     txscript.SigHashAll,
		}
	}

	for i, out := range outputs {
		p.Outputs[i] = pset.POutput{
			BlindingPubKey:  out.blindingKey,
			Bip32Derivation: bip32Derivations(out.derivations),
		}
	}

	p.XPubs = globalXPubs(desc)

	log.Debugf("Built transaction %v with %d inputs, %d outputs and a "+
		"fee of %d", tx.TxHash(), len(tx.TxIn), len(tx.TxOut), fee)

	return p, nil
}

func bip32Derivations(keys []*descriptor.KeyDerivation) []*psbt.Bip32Derivation {
	if len(keys) == 0 {
		return nil
	}

	derivations := make([]*psbt.Bip32Derivation, 0, len(keys))
	for _, k := range keys {
		derivations = append(derivations, &psbt.Bip32Derivation{
			PubKey:               k.PubKey.SerializeCompressed(),
			MasterKeyFingerprint: k.FingerprintUint32(),
			Bip32Path:            slices.Clone(k.Path),
		})
	}

	return derivations
}

// globalXPubs lists the extended keys of the descriptor with their origin.
func globalXPubs(desc *descriptor.Descriptor) []pset.XPub {
	var xpubs []pset.XPub
	for _, k := range desc.Keys() {
		if k.ExtKey == nil {
			continue
		}

		pub, err := k.ExtKey.ECPubKey()
		if err != nil {
			continue
		}

		fp := k.MasterFingerprint()
		var path []uint32
		if k.Origin != nil {
			path = slices.Clone(k.Origin.Path)
		}

		xpubs = append(xpubs, pset.XPub{
			ExtendedKey: k.XPub(),
			Derivation: psbt.Bip32Derivation{
				PubKey: pub.SerializeCompressed(),
				MasterKeyFingerprint: descriptor.KeyDerivation{
					Fingerprint: fp,
				}.FingerprintUint32(),
				Bip32Path: path,
			},
		})
	}

	return xpubs
}
