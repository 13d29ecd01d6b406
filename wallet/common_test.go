package wallet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/ok300/lwk/address"
	"github.com/ok300/lwk/confidential"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/network"
	"github.com/ok300/lwk/pset"
	"github.com/ok300/lwk/signer"
	"github.com/ok300/lwk/wtxmgr"
	"github.com/stretchr/testify/require"
)

var (
	abandonMnemonic = strings.Repeat("abandon ", 11) + "about"
	legalMnemonic   = "legal winner thank year wave sausage worth " +
		"useful legal winner thank yellow"

	policyAsset = network.Regtest.PolicyAsset
)

// fakeBlinder hides the asset and value of an output behind commitment
// prefixes without any cryptography. Only the holder of the blinding key
// the output was blinded to can open it.
type fakeBlinder struct{}

var _ confidential.Blinder = fakeBlinder{}

func fakeFactor(tag string, asset confidential.AssetID,
	value uint64) [32]byte {

	var v [8]byte
	binary.BigEndian.PutUint64(v[:], value)

	msg := append([]byte(tag), asset[:]...)

	return sha256.Sum256(append(msg, v[:]...))
}

func (fakeBlinder) BlindOutputs(tx *ewire.MsgTx,
	inputs []confidential.TxOutSecrets, keys []*btcec.PublicKey) error {

	if len(keys) != len(tx.TxOut) || len(inputs) != len(tx.TxIn) {
		return confidential.ErrBlindingMismatch
	}

	for i, out := range tx.TxOut {
		if keys[i] == nil {
			continue
		}

		asset, ok := ewire.ParseExplicitAsset(out.Asset)
		if !ok {
			return confidential.ErrBlindingMismatch
		}
		value, ok := ewire.ParseExplicitValue(out.Value)
		if !ok {
			return confidential.ErrBlindingMismatch
		}

		out.Asset = append([]byte{0x0a}, asset[:]...)
		out.Value = make([]byte, ewire.CommitmentSize)
		out.Value[0] = 0x08
		binary.BigEndian.PutUint64(out.Value[25:], value)
		out.Nonce = keys[i].SerializeCompressed()
	}

	return nil
}

func (fakeBlinder) Unblind(out *ewire.TxOut,
	key *btcec.PrivateKey) (*confidential.TxOutSecrets, error) {

	if len(out.Asset) != ewire.CommitmentSize || out.Asset[0] != 0x0a ||
		len(out.Value) != ewire.CommitmentSize || out.Value[0] != 0x08 {

		return nil, confidential.ErrCannotUnblind
	}
	if !bytes.Equal(out.Nonce, key.PubKey().SerializeCompressed()) {
		return nil, confidential.ErrCannotUnblind
	}

	var asset confidential.AssetID
	copy(asset[:], out.Asset[1:])
	value := binary.BigEndian.Uint64(out.Value[25:])

	return &confidential.TxOutSecrets{
		Asset:               asset,
		Value:               value,
		AssetBlindingFactor: fakeFactor("abf", asset, value),
		ValueBlindingFactor: fakeFactor("vbf", asset, value),
	}, nil
}

// harness is a wallet backed by a software signer.
type harness struct {
	w       *Wallet
	signer  *signer.SwSigner
	scripts map[string]wtxmgr.ScriptInfo
	funded  byte
}

func newSigner(t *testing.T, mnemonic string) (*signer.SwSigner,
	*descriptor.Descriptor) {

	t.Helper()

	s, err := signer.NewSwSigner(mnemonic, &network.Regtest)
	require.NoError(t, err)

	descStr, err := s.WpkhSlip77Descriptor()
	require.NoError(t, err)

	desc, err := descriptor.Parse(descStr)
	require.NoError(t, err)

	return s, desc
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	s, desc := newSigner(t, abandonMnemonic)

	cfg.Params = &network.Regtest
	cfg.Descriptor = desc
	if cfg.Blinder == nil {
		cfg.Blinder = fakeBlinder{}
	}

	w, err := New(context.Background(), cfg)
	require.NoError(t, err)

	scripts := make(map[string]wtxmgr.ScriptInfo)
	for _, branch := range []descriptor.Chain{
		descriptor.External, descriptor.Internal,
	} {
		for i := uint32(0); i < 10; i++ {
			script, err := desc.ScriptPubKey(branch, i)
			require.NoError(t, err)

			scripts[wtxmgr.ScriptKey(script)] = wtxmgr.ScriptInfo{
				Chain: branch, Index: i,
			}
		}
	}

	return &harness{w: w, signer: s, scripts: scripts}
}

// apply merges transactions into the wallet as unconfirmed.
func (h *harness) apply(t *testing.T, txs ...*ewire.MsgTx) {
	t.Helper()

	require.NoError(t, h.w.ApplyUpdate(context.Background(), &wtxmgr.Update{
		NewTxs:  txs,
		Scripts: h.scripts,
	}))
}

// fund sends value of asset to the next wallet address from outside the
// wallet, blinded with the wallet's blinder.
func (h *harness) fund(t *testing.T, value uint64,
	asset confidential.AssetID) *ewire.MsgTx {

	t.Helper()

	addr, err := h.w.Address(fn.None[uint32]())
	require.NoError(t, err)

	h.funded++
	tx := ewire.NewMsgTx(2)
	tx.AddTxIn(&ewire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{h.funded}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&ewire.TxOut{
		Asset:    asset.ExplicitAsset(),
		Value:    ewire.ExplicitValue(value),
		PkScript: addr.ScriptPubKey(),
	})

	err = h.w.cfg.Blinder.BlindOutputs(
		tx, make([]confidential.TxOutSecrets, 1),
		[]*btcec.PublicKey{addr.BlindingKey()},
	)
	require.NoError(t, err)

	h.apply(t, tx)

	return tx
}

// signAndFinalize signs the PSET with the wallet signer, finalizes it and
// merges the result into the wallet.
func (h *harness) signAndFinalize(t *testing.T,
	p *pset.Packet) *ewire.MsgTx {

	t.Helper()

	n, err := SignWith(context.Background(), h.signer, p)
	require.NoError(t, err)
	require.EqualValues(t, len(p.Inputs), n)

	tx, err := h.w.Finalize(p)
	require.NoError(t, err)

	h.apply(t, tx)

	return tx
}

// roundTrip serializes and parses the PSET, as done when it travels
// between signers.
func roundTrip(t *testing.T, p *pset.Packet) *pset.Packet {
	t.Helper()

	b64, err := p.B64Encode()
	require.NoError(t, err)

	parsed, err := pset.NewFromB64(b64)
	require.NoError(t, err)

	return parsed
}

// externalAddress returns an address of a wallet we do not control.
func externalAddress(t *testing.T) *address.Address {
	t.Helper()

	_, desc := newSigner(t, legalMnemonic)

	script, err := desc.ScriptPubKey(descriptor.External, 0)
	require.NoError(t, err)

	addr, err := address.FromScript(
		&network.Regtest, script, desc.BlindingPubKey(script),
	)
	require.NoError(t, err)

	return addr
}
