package btcunit

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
)

// TestFeeRateConversions checks that sat/vb and sat/kvb rates share the same
// canonical representation.
func TestFeeRateConversions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		kvb    SatPerKVByte
		vb     SatPerVByte
		strKVB string
		strVB  string
	}{
		{
			name:   "liquid default",
			kvb:    DefaultSatPerKVByte,
			vb:     CalcSatPerVByte(1, NewVByte(10)),
			strKVB: "100.000 sat/kvb",
			strVB:  "0.100 sat/vb",
		},
		{
			name:   "1 sat/vb",
			kvb:    NewSatPerKVByte(1000),
			vb:     NewSatPerVByte(1),
			strKVB: "1000.000 sat/kvb",
			strVB:  "1.000 sat/vb",
		},
		{
			name:   "zero",
			kvb:    ZeroSatPerKVByte,
			vb:     NewSatPerVByte(0),
			strKVB: "0.000 sat/kvb",
			strVB:  "0.000 sat/vb",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.True(t, tc.kvb.ToSatPerVByte().Equal(tc.vb))
			require.True(t, tc.vb.ToSatPerKVByte().Equal(tc.kvb))
			require.Equal(t, tc.strKVB, tc.kvb.String())
			require.Equal(t, tc.strVB, tc.vb.String())
		})
	}
}

// TestFeeForWeight checks the rounding behaviour of fee calculations.
func TestFeeForWeight(t *testing.T) {
	t.Parallel()

	rate := DefaultSatPerKVByte

	// 100 sat/kvb is 25 sat/kwu.
	require.Equal(t, btcutil.Amount(25), rate.FeeForWeight(
		NewWeightUnit(1000),
	))
	require.Equal(t, btcutil.Amount(25), rate.FeeForWeight(
		NewWeightUnit(1001),
	))
	require.Equal(t, btcutil.Amount(26), rate.FeeForWeightRoundUp(
		NewWeightUnit(1001),
	))
	require.Equal(t, btcutil.Amount(25), rate.FeeForWeightRoundUp(
		NewWeightUnit(1000),
	))
	require.Equal(t, btcutil.Amount(25), rate.FeeForVByte(NewVByte(250)))

	// Any non-zero weight at a positive rate costs at least one satoshi.
	require.Equal(t, btcutil.Amount(1), rate.FeeForWeightRoundUp(
		NewWeightUnit(1),
	))
}

// TestFeeRateSign checks positivity and ordering helpers.
func TestFeeRateSign(t *testing.T) {
	t.Parallel()

	require.True(t, DefaultSatPerKVByte.IsPositive())
	require.False(t, ZeroSatPerKVByte.IsPositive())
	require.False(t, NewSatPerKVByte(-1).IsPositive())
	require.True(t, ZeroSatPerKVByte.LessThan(DefaultSatPerKVByte))
}
