// Package jade converts wallet descriptors into the records a Jade hardware
// signer needs to register a multisig wallet, and defines the device
// capability the rest of the wallet talks to.
package jade

import (
	"errors"
	"fmt"

	"github.com/ok300/lwk/descriptor"
)

// VariantWshMulti is the only multisig variant the device defines.
const VariantWshMulti = "wsh(multi(k))"

// ErrUnsupported is returned for any descriptor that cannot be registered
// on the device. It deliberately carries no sub reason.
var ErrUnsupported = errors.New("unsupported descriptor")

// MultisigSigner is one cosigner of a registered multisig.
type MultisigSigner struct {
	// Fingerprint is the master key fingerprint of the cosigner.
	Fingerprint []byte `json:"fingerprint"`

	// Derivation is the path from the master key to XPub.
	Derivation []uint32 `json:"derivation"`

	// XPub is the extended public key, without wildcard.
	XPub string `json:"xpub"`

	// Path goes from XPub to the signing key. It is always empty.
	Path []uint32 `json:"path"`
}

// Descriptor is the multisig registration record of the device.
type Descriptor struct {
	Variant           string           `json:"variant"`
	Sorted            bool             `json:"sorted"`
	Threshold         uint32           `json:"threshold"`
	MasterBlindingKey []byte           `json:"master_blinding_key"`
	Signers           []MultisigSigner `json:"signers"`
}

// FromDescriptor converts a wallet descriptor into a registration record.
// Only SLIP-77 blinded, witness script hash multisig descriptors over bare
// extended keys are accepted. Every other shape yields ErrUnsupported.
func FromDescriptor(desc *descriptor.Descriptor) (*Descriptor, error) {
	slip77, ok := desc.KeySource().(descriptor.Slip77)
	if !ok {
		log.Debugf("Rejecting descriptor: key source %T", desc.KeySource())

		return nil, ErrUnsupported
	}

	// Sorted and fixed order multisig share the same record. A fixed
	// order multi nested in any other miniscript fragment parses as
	// WshMiniscript and is rejected here.
	multi, ok := desc.Template().(*descriptor.WshMulti)
	if !ok {
		log.Debugf("Rejecting descriptor: template %T", desc.Template())

		return nil, ErrUnsupported
	}

	signers := make([]MultisigSigner, 0, len(multi.Keys))
	for _, key := range multi.Keys {
		signer, err := newSigner(key)
		if err != nil {
			log.Debugf("Rejecting descriptor key %v: %v", key, err)

			return nil, ErrUnsupported
		}
		signers = append(signers, *signer)
	}

	return &Descriptor{
		Variant:           VariantWshMulti,
		Sorted:            multi.Sorted,
		Threshold:         uint32(multi.Threshold),
		MasterBlindingKey: append([]byte(nil), slip77.Key[:]...),
		Signers:           signers,
	}, nil
}

// newSigner builds the signer entry of a key. The device only knows about
// a single extended key per cosigner, so fixed steps or multipath
// alternatives after the key cannot be expressed.
func newSigner(key *descriptor.Key) (*MultisigSigner, error) {
	switch {
	case key.ExtKey == nil:
		return nil, errors.New("not an extended key")

	case len(key.Steps) > 0:
		return nil, errors.New("derivation steps after the xpub")

	case len(key.Multipath) > 0:
		return nil, errors.New("multipath key")
	}

	fp := key.MasterFingerprint()

	return &MultisigSigner{
		Fingerprint: fp[:],
		Derivation:  nonNil(key.FullDerivationPath()),
		XPub:        key.XPub(),
		Path:        []uint32{},
	}, nil
}

func nonNil(path []uint32) []uint32 {
	if path == nil {
		return []uint32{}
	}

	return path
}

// String summarizes the record for logs.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s sorted=%v %d-of-%d", d.Variant, d.Sorted,
		d.Threshold, len(d.Signers))
}
