package jade

import (
	"context"
	"errors"
	"fmt"

	"github.com/ok300/lwk/pkg/wait"
)

// ErrDeviceUnavailable is returned when the device cannot be reached or is
// not ready.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Device is the capability set of a Jade. Transport framing, the pin
// server handshake and firmware behaviour live behind this interface.
type Device interface {
	// Ping checks that the device is connected and unlocked.
	Ping(ctx context.Context) error

	// GetMasterXpub returns the master extended public key.
	GetMasterXpub(ctx context.Context, network string) (string, error)

	// GetXpub returns the extended public key at path.
	GetXpub(ctx context.Context, network string,
		path []uint32) (string, error)

	// RegisterMultisig registers a multisig wallet.
	RegisterMultisig(ctx context.Context,
		params *RegisterMultisigParams) error

	// GetRegisteredMultisigs lists the registered multisig names.
	GetRegisteredMultisigs(ctx context.Context) ([]string, error)

	// SignPset signs a serialized partially signed transaction and
	// returns it with the device signatures added.
	SignPset(ctx context.Context, network string,
		pset []byte) ([]byte, error)
}

// WaitReady polls the device until it answers a ping or the bounds in cfg
// are exhausted.
func WaitReady(ctx context.Context, dev Device, cfg wait.Config) error {
	err := wait.Poll(ctx, cfg, func() error {
		return dev.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	return nil
}

// Register registers the multisig on the device unless a wallet with the
// same name is already present.
func Register(ctx context.Context, dev Device,
	params *RegisterMultisigParams) error {

	names, err := dev.GetRegisteredMultisigs(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == params.MultisigName {
			log.Infof("Multisig %q already registered", name)

			return nil
		}
	}

	log.Infof("Registering multisig %q: %v", params.MultisigName,
		&params.Descriptor)

	return dev.RegisterMultisig(ctx, params)
}
