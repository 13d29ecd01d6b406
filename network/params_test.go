package network

import (
	"testing"

	"github.com/ok300/lwk/confidential"
	"github.com/stretchr/testify/require"
)

// TestByName checks the network lookup.
func TestByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"liquid", "testnet-liquid", "localtest-liquid",
	} {
		p, err := ByName(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name)
	}

	_, err := ByName("bitcoin")
	require.Error(t, err)

	require.True(t, Liquid.IsMainnet())
	require.False(t, Regtest.IsMainnet())
}

// TestRegtestWithPolicyAsset checks that a custom policy asset does not leak
// into the shared parameters.
func TestRegtestWithPolicyAsset(t *testing.T) {
	t.Parallel()

	custom := confidential.AssetID{1}
	p := RegtestWithPolicyAsset(custom)
	require.Equal(t, custom, p.PolicyAsset)
	require.NotEqual(t, custom, Regtest.PolicyAsset)
	require.Equal(t, "el", p.Blech32HRP)
}
