// Package descriptor models confidential output descriptors: a spending
// policy template over public keys, combined with the source of the keys
// that blind the outputs.
package descriptor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ok300/lwk/confidential"
)

var (
	// ErrInvalidDescriptor is returned for descriptors that do not parse.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrInvalidChecksum is returned when the descriptor checksum does
	// not match.
	ErrInvalidChecksum = errors.New("invalid descriptor checksum")

	// ErrInvalidKey is returned for malformed key expressions.
	ErrInvalidKey = errors.New("invalid key expression")

	// ErrInvalidThreshold is returned when a multisig threshold is zero or
	// larger than the number of keys.
	ErrInvalidThreshold = errors.New("invalid multisig threshold")

	// ErrUnsupportedTemplate is returned when scripts are requested from
	// a template the wallet cannot derive.
	ErrUnsupportedTemplate = errors.New("unsupported script template")
)

// KeySource is the source of the blinding keys of a descriptor. It is a
// closed set: Slip77 and ViewKey.
type KeySource interface {
	// BlindingPrivKey returns the blinding key of a script.
	BlindingPrivKey(script []byte) *btcec.PrivateKey

	// String returns the descriptor text of the key source.
	String() string

	isKeySource()
}

// Slip77 derives a blinding key per script from a master blinding key.
type Slip77 struct {
	Key confidential.Slip77Key
}

// BlindingPrivKey returns the SLIP-77 blinding key of script.
func (s Slip77) BlindingPrivKey(script []byte) *btcec.PrivateKey {
	return s.Key.BlindingPrivKey(script)
}

// String returns the slip77(...) expression.
func (s Slip77) String() string {
	return "slip77(" + s.Key.String() + ")"
}

func (Slip77) isKeySource() {}

// ViewKey uses a single blinding key for every script.
type ViewKey struct {
	PrivKey *btcec.PrivateKey
	raw     string
}

// BlindingPrivKey returns the view key.
func (v ViewKey) BlindingPrivKey([]byte) *btcec.PrivateKey {
	return v.PrivKey
}

// String returns the hex view key.
func (v ViewKey) String() string {
	return v.raw
}

func (ViewKey) isKeySource() {}

// ScriptTemplate is the spending policy of a descriptor. It is a closed set:
// Wpkh, ShWpkh, Tr, WshMulti and WshMiniscript.
type ScriptTemplate interface {
	// keys returns the keys of the template in descriptor order.
	keys() []*Key
}

// Wpkh pays to a single key in a native segwit v0 output.
type Wpkh struct {
	Key *Key
}

func (w *Wpkh) keys() []*Key { return []*Key{w.Key} }

// ShWpkh is Wpkh nested in a script hash output.
type ShWpkh struct {
	Key *Key
}

func (s *ShWpkh) keys() []*Key { return []*Key{s.Key} }

// Tr pays to a taproot output key, optionally with a script tree.
type Tr struct {
	Key  *Key
	Tree string
}

func (t *Tr) keys() []*Key { return []*Key{t.Key} }

// WshMulti is a flat threshold multisig in a witness script hash output.
type WshMulti struct {
	Threshold int
	Keys      []*Key
	Sorted    bool
}

func (w *WshMulti) keys() []*Key { return w.Keys }

// WshMiniscript is any other witness script hash policy.
type WshMiniscript struct {
	Expr string
	Keys []*Key
}

func (w *WshMiniscript) keys() []*Key { return w.Keys }

// Descriptor is an immutable confidential output descriptor.
type Descriptor struct {
	keySource KeySource
	template  ScriptTemplate
	body      string
}

// KeySource returns the blinding key source.
func (d *Descriptor) KeySource() KeySource {
	return d.keySource
}

// Template returns the spending policy.
func (d *Descriptor) Template() ScriptTemplate {
	return d.template
}

// Keys returns the keys of the spending policy.
func (d *Descriptor) Keys() []*Key {
	return d.template.keys()
}

// IsMultipath reports whether the keys have separate receive and change
// branches.
func (d *Descriptor) IsMultipath() bool {
	for _, k := range d.Keys() {
		if len(k.Multipath) > 0 {
			return true
		}
	}

	return false
}

// IsRanged reports whether the descriptor derives many addresses.
func (d *Descriptor) IsRanged() bool {
	for _, k := range d.Keys() {
		if k.Wildcard {
			return true
		}
	}

	return false
}

// String returns the descriptor with its checksum.
func (d *Descriptor) String() string {
	sum, err := Checksum(d.body)
	if err != nil {
		return d.body
	}

	return d.body + "#" + sum
}

// BlindingPrivKey returns the blinding key of a script.
func (d *Descriptor) BlindingPrivKey(script []byte) *btcec.PrivateKey {
	return d.keySource.BlindingPrivKey(script)
}

// BlindingPubKey returns the blinding public key of a script.
func (d *Descriptor) BlindingPubKey(script []byte) *btcec.PublicKey {
	return d.BlindingPrivKey(script).PubKey()
}

// Compile time assertions of the closed unions.
var (
	_ KeySource = Slip77{}
	_ KeySource = ViewKey{}

	_ ScriptTemplate = (*Wpkh)(nil)
	_ ScriptTemplate = (*ShWpkh)(nil)
	_ ScriptTemplate = (*Tr)(nil)
	_ ScriptTemplate = (*WshMulti)(nil)
	_ ScriptTemplate = (*WshMiniscript)(nil)
)

// newInvalid wraps a parse failure.
func newInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDescriptor,
		fmt.Sprintf(format, args...))
}
