package address

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ok300/lwk/network"
	"github.com/stretchr/testify/require"
)

func testBlindingKey(t *testing.T) *btcec.PublicKey {
	t.Helper()

	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{3}, 32))

	return priv.PubKey()
}

// TestBlech32RoundTrip checks both checksum variants.
func TestBlech32RoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte{0, 1, 2, 3, 31, 30, 29}
	for _, m := range []bool{false, true} {
		s, err := blech32Encode("el", data, m)
		require.NoError(t, err)

		hrp, decoded, isM, err := blech32Decode(s)
		require.NoError(t, err)
		require.Equal(t, "el", hrp)
		require.Equal(t, data, decoded)
		require.Equal(t, m, isM)

		// Flip one data character.
		bad := []byte(s)
		if bad[4] == 'q' {
			bad[4] = 'p'
		} else {
			bad[4] = 'q'
		}
		_, _, _, err = blech32Decode(string(bad))
		require.ErrorIs(t, err, ErrInvalidChecksum)
	}

	_, _, _, err := blech32Decode("El1qqqqqqqqqqqqqqq")
	require.Error(t, err)
}

// TestAddressRoundTrip encodes and decodes every supported kind on every
// network.
func TestAddressRoundTrip(t *testing.T) {
	t.Parallel()

	key := testBlindingKey(t)
	wpkh := bytes.Repeat([]byte{0x11}, 20)
	wsh := bytes.Repeat([]byte{0x22}, 32)

	testCases := []struct {
		name    string
		make    func(p *network.Params) (*Address, error)
		prefix  func(p *network.Params) string
		scriptN int
	}{
		{
			name: "confidential wpkh",
			make: func(p *network.Params) (*Address, error) {
				return NewSegwit(p, 0, wpkh, key)
			},
			prefix:  func(p *network.Params) string { return p.Blech32HRP },
			scriptN: 22,
		},
		{
			name: "confidential wsh",
			make: func(p *network.Params) (*Address, error) {
				return NewSegwit(p, 0, wsh, key)
			},
			prefix:  func(p *network.Params) string { return p.Blech32HRP },
			scriptN: 34,
		},
		{
			name: "unconfidential wsh",
			make: func(p *network.Params) (*Address, error) {
				return NewSegwit(p, 0, wsh, nil)
			},
			prefix:  func(p *network.Params) string { return p.Bech32HRP },
			scriptN: 34,
		},
		{
			name: "confidential taproot",
			make: func(p *network.Params) (*Address, error) {
				return NewSegwit(p, 1, wsh, key)
			},
			prefix:  func(p *network.Params) string { return p.Blech32HRP },
			scriptN: 34,
		},
		{
			name: "unconfidential taproot",
			make: func(p *network.Params) (*Address, error) {
				return NewSegwit(p, 1, wsh, nil)
			},
			prefix:  func(p *network.Params) string { return p.Bech32HRP },
			scriptN: 34,
		},
		{
			name: "p2sh",
			make: func(p *network.Params) (*Address, error) {
				return NewP2SH(p, wpkh, nil)
			},
			scriptN: 23,
		},
		{
			name: "confidential p2sh",
			make: func(p *network.Params) (*Address, error) {
				return NewP2SH(p, wpkh, key)
			},
			scriptN: 23,
		},
	}

	for _, tc := range testCases {
		for _, params := range []*network.Params{
			&network.Liquid, &network.LiquidTestnet, &network.Regtest,
		} {
			t.Run(tc.name+"/"+params.Name, func(t *testing.T) {
				t.Parallel()

				addr, err := tc.make(params)
				require.NoError(t, err)

				s := addr.String()
				require.NotEmpty(t, s)
				if tc.prefix != nil {
					require.Contains(t, s, tc.prefix(params)+"1")
				}

				decoded, err := Decode(s, params)
				require.NoError(t, err)
				require.Equal(t, s, decoded.String())
				require.Equal(t, addr.ScriptPubKey(),
					decoded.ScriptPubKey())
				require.Len(t, decoded.ScriptPubKey(), tc.scriptN)
				require.Equal(t, addr.IsConfidential(),
					decoded.IsConfidential())

				fromScript, err := FromScript(
					params, addr.ScriptPubKey(),
					addr.BlindingKey(),
				)
				require.NoError(t, err)
				require.Equal(t, s, fromScript.String())
			})
		}
	}
}

// TestDecodeErrors checks network mismatches and garbage.
func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	key := testBlindingKey(t)
	addr, err := NewSegwit(
		&network.Liquid, 0, bytes.Repeat([]byte{1}, 20), key,
	)
	require.NoError(t, err)

	_, err = Decode(addr.String(), &network.Regtest)
	require.ErrorIs(t, err, ErrWrongNetwork)

	unconf := addr.ToUnconfidential()
	require.False(t, unconf.IsConfidential())
	require.True(t, addr.IsConfidential())
	_, err = Decode(unconf.String(), &network.LiquidTestnet)
	require.ErrorIs(t, err, ErrWrongNetwork)

	_, err = Decode("not an address", &network.Liquid)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewSegwit(&network.Liquid, 0, []byte{1, 2, 3}, nil)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = FromScript(&network.Liquid, []byte{0x6a}, nil)
	require.ErrorIs(t, err, ErrUnsupportedScript)
}
