package wallet

import (
	"math/rand"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ok300/lwk/pkg/btcunit"
	"github.com/ok300/lwk/wtxmgr"
)

// Coin represents a spendable wallet output which is available for coin
// selection.
type Coin struct {
	wtxmgr.WalletTxOut

	// SpendWeight is the weight an input spending the coin adds to a
	// transaction.
	SpendWeight btcunit.WeightUnit
}

// Value is the unblinded amount of the coin.
func (c Coin) Value() uint64 {
	return c.Secrets.Value
}

// CoinSelectionStrategy is an interface that represents a coin selection
// strategy. A coin selection strategy is responsible for ordering, shuffling
// or filtering a list of coins before they are added to a transaction in
// order.
type CoinSelectionStrategy interface {
	// ArrangeCoins takes a list of coins of a single asset and arranges
	// them according to the strategy. feeRate is zero for assets that do
	// not pay fees.
	ArrangeCoins(eligible []Coin, feeRate btcunit.SatPerKVByte) ([]Coin,
		error)
}

var (
	// CoinSelectionLargest always picks the largest available output to
	// add to the transaction next.
	CoinSelectionLargest CoinSelectionStrategy = &LargestFirstCoinSelector{}

	// CoinSelectionRandom randomly selects the next output to add to the
	// transaction. This strategy prevents the creation of ever smaller
	// outputs over time.
	CoinSelectionRandom CoinSelectionStrategy = &RandomCoinSelector{}
)

// sortByAmount is a generic sortable type for sorting coins by their amount.
type sortByAmount []Coin

func (s sortByAmount) Len() int { return len(s) }
func (s sortByAmount) Less(i, j int) bool {
	return s[i].Value() < s[j].Value()
}
func (s sortByAmount) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// LargestFirstCoinSelector is an implementation of the CoinSelectionStrategy
// that always selects the largest coins first.
type LargestFirstCoinSelector struct{}

// ArrangeCoins takes a list of coins and arranges them according to the
// specified coin selection strategy and fee rate.
func (*LargestFirstCoinSelector) ArrangeCoins(eligible []Coin,
	_ btcunit.SatPerKVByte) ([]Coin, error) {

	sort.Stable(sort.Reverse(sortByAmount(eligible)))

	return eligible, nil
}

// RandomCoinSelector is an implementation of the CoinSelectionStrategy that
// selects coins at random. This prevents the creation of ever smaller
// outputs over time that may never become economical to spend.
type RandomCoinSelector struct{}

// ArrangeCoins takes a list of coins and arranges them according to the
// specified coin selection strategy and fee rate.
func (*RandomCoinSelector) ArrangeCoins(eligible []Coin,
	feeRate btcunit.SatPerKVByte) ([]Coin, error) {

	// Skip inputs that do not raise the total transaction output
	// value at the requested fee rate.
	positivelyYielding := make([]Coin, 0, len(eligible))
	for _, coin := range eligible {
		if !inputYieldsPositively(coin, feeRate) {
			continue
		}

		positivelyYielding = append(positivelyYielding, coin)
	}

	rand.Shuffle(len(positivelyYielding), func(i, j int) {
		positivelyYielding[i], positivelyYielding[j] =
			positivelyYielding[j], positivelyYielding[i]
	})

	return positivelyYielding, nil
}

// inputYieldsPositively reports whether spending the coin adds more value
// than the fee of the input itself.
func inputYieldsPositively(coin Coin, feeRate btcunit.SatPerKVByte) bool {
	fee := feeRate.FeeForWeightRoundUp(coin.SpendWeight)

	return btcutil.Amount(coin.Value()) > fee
}
