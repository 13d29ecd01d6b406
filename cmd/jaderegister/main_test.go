package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ok300/lwk/jade"
	"github.com/stretchr/testify/require"
)

const (
	xpubA = "tpubDDCNstnPhbdd4vwbw5UWK3vRQSF1WXQkvBHpNXpKJAkwFYjwu735EH3G" +
		"Vf53qwbWimzewDUv68MUmRDgYtQ1AU8FRCPkazfuaBp7LaEaohG"
	xpubB = "tpubDDExQpZg2tziZ7ACSBCYsY3rYxAZtTRBgWwioRLYqgNBguH6rMHN1D8e" +
		"pTxUQUB5kM5nxkEtr2SNic6PJLPubcGMR6S2fmDZTzL9dHpU7ka"
	slip77Hex = "9c8e4f05c7711a98c838be228bcb84924d4570ca53f35fa1c793e58" +
		"841d47023"
)

var multiDesc = fmt.Sprintf(
	"ct(slip77(%s),elwsh(sortedmulti(2,[01020304/48h/1h/0h/2h]%s/*,%s/*)))",
	slip77Hex, xpubA, xpubB,
)

// TestRun checks the JSON request written for a supported descriptor.
func TestRun(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run([]string{
		"--descriptor", multiDesc,
		"--name", "vault",
		"--network", "testnet-liquid",
		"--debuglevel", "debug",
		"--dump",
	}, &out)
	require.NoError(t, err)

	var req jade.RegisterMultisigParams
	require.NoError(t, json.Unmarshal(out.Bytes(), &req))

	require.Equal(t, "testnet-liquid", req.Network)
	require.Equal(t, "vault", req.MultisigName)
	require.Equal(t, jade.VariantWshMulti, req.Descriptor.Variant)
	require.True(t, req.Descriptor.Sorted)
	require.EqualValues(t, 2, req.Descriptor.Threshold)
	require.Len(t, req.Descriptor.Signers, 2)
	require.Equal(t, []byte{1, 2, 3, 4}, req.Descriptor.Signers[0].Fingerprint)
	require.Equal(t, xpubB, req.Descriptor.Signers[1].XPub)
}

// TestRunErrors checks the rejected invocations.
func TestRunErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name: "unsupported descriptor",
			args: []string{
				"--descriptor", fmt.Sprintf(
					"ct(slip77(%s),elwpkh(%s/*))", slip77Hex,
					xpubA,
				),
				"--name", "vault",
			},
			wantErr: jade.ErrUnsupported,
		},
		{
			name: "name too long",
			args: []string{
				"--descriptor", multiDesc,
				"--name", "a name that is far too long",
			},
			wantErr: jade.ErrInvalidName,
		},
		{
			name: "unknown network",
			args: []string{
				"--descriptor", multiDesc,
				"--name", "vault",
				"--network", "bitcoin",
			},
		},
		{
			name: "missing descriptor",
			args: []string{"--name", "vault"},
		},
		{
			name: "bad debug level",
			args: []string{
				"--descriptor", multiDesc,
				"--name", "vault",
				"--debuglevel", "LWKW=loud",
			},
		},
		{
			name: "malformed descriptor",
			args: []string{
				"--descriptor", "ct(",
				"--name", "vault",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			err := run(tc.args, &out)
			require.Error(t, err)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			}
			require.Zero(t, out.Len())
		})
	}
}

// TestParseDebugLevels checks the global and per subsystem forms.
func TestParseDebugLevels(t *testing.T) {
	t.Parallel()

	require.NoError(t, parseAndSetDebugLevels("info"))
	require.NoError(t, parseAndSetDebugLevels("LWKW=debug,JADE=trace"))
	require.Error(t, parseAndSetDebugLevels("NOPE=debug"))
	require.Error(t, parseAndSetDebugLevels("LWKW"+"=debug=x"))
	require.Error(t, parseAndSetDebugLevels("verbose"))

	require.Equal(t, []string{"JADE", "JREG", "LWKW", "SIGN", "TXMG"},
		supportedSubsystems())
}
