package signer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ok300/lwk/jade"
	"github.com/ok300/lwk/network"
	"github.com/ok300/lwk/pkg/wait"
	"github.com/ok300/lwk/pset"
)

// HwSigner signs through a Jade device.
type HwSigner struct {
	dev         jade.Device
	network     string
	fingerprint [4]byte
}

// A compile-time assertion to ensure HwSigner implements Signer.
var _ Signer = (*HwSigner)(nil)

// NewHwSigner waits for the device to be ready and reads its master key
// fingerprint.
func NewHwSigner(ctx context.Context, dev jade.Device,
	params *network.Params, cfg wait.Config) (*HwSigner, error) {

	if err := jade.WaitReady(ctx, dev, cfg); err != nil {
		return nil, err
	}

	xpub, err := dev.GetMasterXpub(ctx, params.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	master, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return nil, fmt.Errorf("device master xpub: %w", err)
	}

	fp, err := fingerprint(master)
	if err != nil {
		return nil, err
	}

	return &HwSigner{dev: dev, network: params.Name, fingerprint: fp}, nil
}

// Fingerprint returns the master key fingerprint of the device.
func (h *HwSigner) Fingerprint() [4]byte {
	return h.fingerprint
}

// DeriveXPub asks the device for the extended public key at path.
func (h *HwSigner) DeriveXPub(ctx context.Context,
	path []uint32) (string, error) {

	return h.dev.GetXpub(ctx, h.network, path)
}

// Sign sends the packet to the device and merges back its signatures.
func (h *HwSigner) Sign(ctx context.Context, p *pset.Packet) (uint32, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return 0, err
	}

	signed, err := h.dev.SignPset(ctx, h.network, buf.Bytes())
	if err != nil {
		return 0, err
	}

	packet, err := pset.Deserialize(bytes.NewReader(signed))
	if err != nil {
		return 0, fmt.Errorf("device returned: %w", err)
	}

	added, err := p.Combine(packet)
	if err != nil {
		return 0, err
	}

	log.Debugf("Device %x added %d signatures", h.fingerprint, added)

	return added, nil
}

func (*HwSigner) isSigner() {}
