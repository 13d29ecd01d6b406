package wtxmgr

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/ewire"
)

// ErrIssuanceNotFound is returned when no transaction issued an asset.
var ErrIssuanceNotFound = errors.New("issuance not found")

// IssuanceDetails describes an issuance or reissuance attached to a
// transaction input.
type IssuanceDetails struct {
	Txid    chainhash.Hash
	Vin     uint32
	Entropy [32]byte
	Asset   confidential.AssetID
	Token   confidential.AssetID

	// AssetAmount and TokenAmount are none when the issuance did not
	// create that output, or when the amount is blinded.
	AssetAmount fn.Option[uint64]
	TokenAmount fn.Option[uint64]

	IsReissuance   bool
	IsConfidential bool
}

// InputIssuance returns the issuance of a transaction input, if it has
// one.
func InputIssuance(txid chainhash.Hash, vin uint32,
	in *ewire.TxIn) fn.Option[IssuanceDetails] {

	iss := in.Issuance
	if iss == nil {
		return fn.None[IssuanceDetails]()
	}

	reissuance := iss.IsReissuance()
	entropy := iss.AssetEntropy
	if !reissuance {
		entropy = confidential.IssuanceEntropy(
			in.PreviousOutPoint,
			confidential.ContractHash(iss.AssetEntropy),
		)
	}

	// The token id only depends on whether the asset amount is a
	// commitment, whatever the form of the inflation keys.
	isConfidential := !ewire.IsNull(iss.Amount) &&
		!ewire.IsExplicit(iss.Amount)

	details := IssuanceDetails{
		Txid:           txid,
		Vin:            vin,
		Entropy:        entropy,
		Asset:          confidential.IssuedAssetID(entropy),
		Token:          confidential.ReissuanceTokenID(entropy, isConfidential),
		AssetAmount:    explicitAmount(iss.Amount),
		TokenAmount:    fn.None[uint64](),
		IsReissuance:   reissuance,
		IsConfidential: isConfidential,
	}
	if !reissuance {
		details.TokenAmount = explicitAmount(iss.InflationKeys)
	}

	return fn.Some(details)
}

// TxIssuances returns the issuances of every input of tx.
func TxIssuances(tx *ewire.MsgTx) []IssuanceDetails {
	txid := tx.TxHash()

	var issuances []IssuanceDetails
	for vin, in := range tx.TxIn {
		InputIssuance(txid, uint32(vin), in).WhenSome(
			func(d IssuanceDetails) {
				issuances = append(issuances, d)
			},
		)
	}

	return issuances
}

// explicitAmount returns a non-zero explicit amount.
func explicitAmount(value []byte) fn.Option[uint64] {
	v, ok := ewire.ParseExplicitValue(value)
	if !ok || v == 0 {
		return fn.None[uint64]()
	}

	return fn.Some(v)
}

// Issuances returns the issuances and reissuances of the wallet
// transactions, most recent first.
func (s *Store) Issuances() []IssuanceDetails {
	var issuances []IssuanceDetails
	for _, tx := range s.Transactions() {
		issuances = append(issuances, TxIssuances(tx.Tx)...)
	}

	return issuances
}

// Issuance returns the original issuance of asset.
func (s *Store) Issuance(asset confidential.AssetID) (*IssuanceDetails,
	error) {

	for _, d := range s.Issuances() {
		if d.Asset == asset && !d.IsReissuance {
			return &d, nil
		}
	}

	return nil, ErrIssuanceNotFound
}
