package signer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/jade"
	"github.com/ok300/lwk/network"
	"github.com/ok300/lwk/pkg/wait"
	"github.com/ok300/lwk/pset"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var abandonMnemonic = strings.Repeat("abandon ", 11) + "about"

// newTestPacket returns a packet spending one output of the first
// external address of desc.
func newTestPacket(t *testing.T, desc *descriptor.Descriptor) *pset.Packet {
	t.Helper()

	scripts, err := desc.Derive(descriptor.External, 0)
	require.NoError(t, err)

	asset := network.Regtest.PolicyAsset.ExplicitAsset()

	tx := ewire.NewMsgTx(2)
	tx.AddTxIn(&ewire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&ewire.TxOut{
		Asset:    asset,
		Value:    ewire.ExplicitValue(900),
		PkScript: scripts.PkScript,
	})
	tx.AddTxOut(&ewire.TxOut{
		Asset: asset,
		Value: ewire.ExplicitValue(100),
	})

	p, err := pset.New(tx)
	require.NoError(t, err)

	key := scripts.Keys[0]
	p.Inputs[0].WitnessUtxo = &ewire.TxOut{
		Asset:    asset,
		Value:    ewire.ExplicitValue(1000),
		PkScript: scripts.PkScript,
	}
	p.Inputs[0].Bip32Derivation = []*psbt.Bip32Derivation{{
		PubKey:               key.PubKey.SerializeCompressed(),
		MasterKeyFingerprint: key.FingerprintUint32(),
		Bip32Path:            key.Path,
	}}

	return p
}

// TestSwSignerFingerprint checks the fingerprint of a well known mnemonic
// and rejects invalid ones.
func TestSwSignerFingerprint(t *testing.T) {
	t.Parallel()

	s, err := NewSwSigner(abandonMnemonic, &network.Regtest)
	require.NoError(t, err)
	require.Equal(t, [4]byte{0x73, 0xc5, 0xda, 0x0a}, s.Fingerprint())
	require.Equal(t, abandonMnemonic, s.Mnemonic())

	// Known words with a bad checksum.
	_, err = NewSwSigner(strings.Repeat("abandon ", 12), &network.Regtest)
	require.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = NewSwSigner(strings.Repeat("abandon ", 11)+"notaword",
		&network.Regtest)
	require.ErrorIs(t, err, ErrInvalidMnemonic)

	random, err := NewRandomSwSigner(&network.Regtest)
	require.NoError(t, err)
	require.Len(t, strings.Fields(random.Mnemonic()), 12)
	require.NotEqual(t, s.Fingerprint(), random.Fingerprint())
}

// TestSwSignerDeriveXPub checks that unhardened children of a derived xpub
// match the private derivation.
func TestSwSignerDeriveXPub(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewSwSigner(abandonMnemonic, &network.Regtest)
	require.NoError(t, err)

	account := []uint32{hdkeychain.HardenedKeyStart + 84,
		hdkeychain.HardenedKeyStart + 1, hdkeychain.HardenedKeyStart}

	xpub, err := s.DeriveXPub(ctx, account)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(xpub, "tpub"))

	child, err := s.DeriveXPub(ctx, append(account, 0))
	require.NoError(t, err)

	parent, err := hdkeychain.NewKeyFromString(xpub)
	require.NoError(t, err)
	derived, err := parent.Derive(0)
	require.NoError(t, err)
	require.Equal(t, child, derived.String())
}

// TestSwSignerSign checks that the signer produces a valid signature for
// its own input and nothing for foreign ones.
func TestSwSignerSign(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := NewSwSigner(abandonMnemonic, &network.Regtest)
	require.NoError(t, err)

	descStr, err := s.WpkhSlip77Descriptor()
	require.NoError(t, err)
	desc, err := descriptor.Parse(descStr)
	require.NoError(t, err)

	p := newTestPacket(t, desc)

	added, err := s.Sign(ctx, p)
	require.NoError(t, err)
	require.Equal(t, uint32(1), added)
	require.Len(t, p.Inputs[0].PartialSigs, 1)

	ps := p.Inputs[0].PartialSigs[0]
	sig, err := ecdsa.ParseDERSignature(ps.Signature[:len(ps.Signature)-1])
	require.NoError(t, err)
	pub, err := btcec.ParsePubKey(ps.PubKey)
	require.NoError(t, err)

	hash, err := p.WitnessSigHash(ewire.NewSigHashes(p.UnsignedTx), 0)
	require.NoError(t, err)
	require.True(t, sig.Verify(hash, pub))

	// Signing again replaces nothing.
	added, err = s.Sign(ctx, p)
	require.NoError(t, err)
	require.Zero(t, added)

	// Another seed finds nothing to sign.
	other, err := NewRandomSwSigner(&network.Regtest)
	require.NoError(t, err)
	added, err = other.Sign(ctx, newTestPacket(t, desc))
	require.NoError(t, err)
	require.Zero(t, added)
}

type mockDevice struct {
	mock.Mock
}

var _ jade.Device = (*mockDevice)(nil)

func (m *mockDevice) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDevice) GetMasterXpub(ctx context.Context,
	network string) (string, error) {

	args := m.Called(ctx, network)

	return args.String(0), args.Error(1)
}

func (m *mockDevice) GetXpub(ctx context.Context, network string,
	path []uint32) (string, error) {

	args := m.Called(ctx, network, path)

	return args.String(0), args.Error(1)
}

func (m *mockDevice) RegisterMultisig(ctx context.Context,
	params *jade.RegisterMultisigParams) error {

	return m.Called(ctx, params).Error(0)
}

func (m *mockDevice) GetRegisteredMultisigs(
	ctx context.Context) ([]string, error) {

	args := m.Called(ctx)

	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDevice) SignPset(ctx context.Context, network string,
	raw []byte) ([]byte, error) {

	args := m.Called(ctx, network, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// TestHwSigner checks that the device signatures are merged into the
// packet, using a software signer as the device.
func TestHwSigner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sw, err := NewSwSigner(abandonMnemonic, &network.Regtest)
	require.NoError(t, err)

	masterXPub, err := sw.DeriveXPub(ctx, nil)
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("Ping", mock.Anything).Return(nil)
	dev.On("GetMasterXpub", mock.Anything, network.Regtest.Name).
		Return(masterXPub, nil)
	dev.On("GetXpub", mock.Anything, network.Regtest.Name,
		[]uint32{1}).Return("xpub-1", nil)

	cfg := wait.Config{Attempts: 1}
	hw, err := NewHwSigner(ctx, dev, &network.Regtest, cfg)
	require.NoError(t, err)
	require.Equal(t, sw.Fingerprint(), hw.Fingerprint())

	xpub, err := hw.DeriveXPub(ctx, []uint32{1})
	require.NoError(t, err)
	require.Equal(t, "xpub-1", xpub)

	descStr, err := sw.WpkhSlip77Descriptor()
	require.NoError(t, err)
	desc, err := descriptor.Parse(descStr)
	require.NoError(t, err)

	// The device signs a copy, as the real one would.
	signed := newTestPacket(t, desc)
	_, err = sw.Sign(ctx, signed)
	require.NoError(t, err)
	var raw bytes.Buffer
	require.NoError(t, signed.Serialize(&raw))

	dev.On("SignPset", mock.Anything, network.Regtest.Name,
		mock.Anything).Return(raw.Bytes(), nil).Once()

	p := newTestPacket(t, desc)
	added, err := hw.Sign(ctx, p)
	require.NoError(t, err)
	require.Equal(t, uint32(1), added)
	require.Equal(t, signed.Inputs[0].PartialSigs, p.Inputs[0].PartialSigs)

	errDevice := errors.New("user declined")
	dev.On("SignPset", mock.Anything, network.Regtest.Name,
		mock.Anything).Return(nil, errDevice).Once()
	_, err = hw.Sign(ctx, p)
	require.ErrorIs(t, err, errDevice)

	dev.AssertExpectations(t)
}

// TestHwSignerUnavailable checks that a device that never answers is
// reported as unavailable.
func TestHwSignerUnavailable(t *testing.T) {
	t.Parallel()

	dev := &mockDevice{}
	dev.On("Ping", mock.Anything).Return(errors.New("no device"))

	_, err := NewHwSigner(context.Background(), dev, &network.Regtest,
		wait.Config{Interval: time.Millisecond, Attempts: 2})
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	dev.AssertNumberOfCalls(t, "Ping", 2)
}
