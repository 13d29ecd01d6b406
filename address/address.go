// Package address encodes and decodes Elements addresses: confidential and
// unconfidential segwit addresses and legacy script hash addresses.
package address

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ok300/lwk/network"
)

var (
	// ErrInvalidAddress is returned for strings that are not addresses of
	// any supported kind.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrWrongNetwork is returned for addresses of another network.
	ErrWrongNetwork = errors.New("address is for a different network")

	// ErrUnsupportedScript is returned when a script has no address form.
	ErrUnsupportedScript = errors.New("script has no address")
)

// Address is a decoded Elements address.
type Address struct {
	params *network.Params

	// segwit is true for witness program addresses.
	segwit         bool
	witnessVersion byte

	// program is the witness program or the script hash.
	program []byte

	blindingKey *btcec.PublicKey
}

// NewSegwit returns a segwit address for a witness program. A nil blinding
// key yields an unconfidential address.
func NewSegwit(params *network.Params, version byte, program []byte,
	blindingKey *btcec.PublicKey) (*Address, error) {

	if version > 16 || len(program) < 2 || len(program) > 40 {
		return nil, fmt.Errorf("%w: bad witness program",
			ErrInvalidAddress)
	}
	if version == 0 && len(program) != 20 && len(program) != 32 {
		return nil, fmt.Errorf("%w: bad v0 program length %d",
			ErrInvalidAddress, len(program))
	}

	return &Address{
		params:         params,
		segwit:         true,
		witnessVersion: version,
		program:        bytes.Clone(program),
		blindingKey:    blindingKey,
	}, nil
}

// NewP2SH returns a script hash address.
func NewP2SH(params *network.Params, scriptHash []byte,
	blindingKey *btcec.PublicKey) (*Address, error) {

	if len(scriptHash) != 20 {
		return nil, fmt.Errorf("%w: script hash must be 20 bytes",
			ErrInvalidAddress)
	}

	return &Address{
		params:      params,
		program:     bytes.Clone(scriptHash),
		blindingKey: blindingKey,
	}, nil
}

// FromScript returns the address paying to script.
func FromScript(params *network.Params, script []byte,
	blindingKey *btcec.PublicKey) (*Address, error) {

	if txscript.IsPayToScriptHash(script) {
		return NewP2SH(params, script[2:22], blindingKey)
	}

	version, program, err := txscript.ExtractWitnessProgramInfo(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedScript, err)
	}

	return NewSegwit(params, byte(version), program, blindingKey)
}

// Decode parses an address and checks it belongs to params.
func Decode(s string, params *network.Params) (*Address, error) {
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, params.Blech32HRP+"1"):
		return decodeBlech32(s, params)

	case strings.HasPrefix(lower, params.Bech32HRP+"1"):
		return decodeBech32(s, params)
	}

	for _, other := range []*network.Params{
		&network.Liquid, &network.LiquidTestnet, &network.Regtest,
	} {
		if other.Name == params.Name {
			continue
		}
		if strings.HasPrefix(lower, other.Blech32HRP+"1") ||
			strings.HasPrefix(lower, other.Bech32HRP+"1") {

			return nil, ErrWrongNetwork
		}
	}

	return decodeBase58(s, params)
}

func decodeBlech32(s string, params *network.Params) (*Address, error) {
	hrp, data, m, err := blech32Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if hrp != params.Blech32HRP {
		return nil, ErrWrongNetwork
	}
	if len(data) < 1 {
		return nil, ErrInvalidAddress
	}

	version := data[0]
	if (version == 0) == m {
		return nil, fmt.Errorf("%w: wrong checksum variant",
			ErrInvalidAddress)
	}

	payload, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(payload) < btcec.PubKeyBytesLenCompressed+2 {
		return nil, ErrInvalidAddress
	}

	key, err := btcec.ParsePubKey(
		payload[:btcec.PubKeyBytesLenCompressed],
	)
	if err != nil {
		return nil, fmt.Errorf("%w: blinding key: %w",
			ErrInvalidAddress, err)
	}

	return NewSegwit(
		params, version, payload[btcec.PubKeyBytesLenCompressed:], key,
	)
}

func decodeBech32(s string, params *network.Params) (*Address, error) {
	hrp, data, variant, err := bech32.DecodeGeneric(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if hrp != params.Bech32HRP {
		return nil, ErrWrongNetwork
	}
	if len(data) < 1 {
		return nil, ErrInvalidAddress
	}

	version := data[0]
	if (version == 0) != (variant == bech32.Version0) {
		return nil, fmt.Errorf("%w: wrong checksum variant",
			ErrInvalidAddress)
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	return NewSegwit(params, version, program, nil)
}

func decodeBase58(s string, params *network.Params) (*Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	switch {
	case version == params.ScriptHashAddrID && len(payload) == 20:
		return NewP2SH(params, payload, nil)

	case version == params.BlindedPrefix && len(payload) == 54 &&
		payload[0] == params.ScriptHashAddrID:

		key, err := btcec.ParsePubKey(payload[1:34])
		if err != nil {
			return nil, fmt.Errorf("%w: blinding key: %w",
				ErrInvalidAddress, err)
		}

		return NewP2SH(params, payload[34:], key)
	}

	return nil, fmt.Errorf("%w: unsupported version byte %d",
		ErrInvalidAddress, version)
}

// String returns the encoded address.
func (a *Address) String() string {
	if !a.segwit {
		if a.blindingKey == nil {
			return base58.CheckEncode(a.program, a.params.ScriptHashAddrID)
		}

		payload := []byte{a.params.ScriptHashAddrID}
		payload = append(payload, a.blindingKey.SerializeCompressed()...)
		payload = append(payload, a.program...)

		return base58.CheckEncode(payload, a.params.BlindedPrefix)
	}

	payload := a.program
	if a.blindingKey != nil {
		payload = append(
			a.blindingKey.SerializeCompressed(), a.program...,
		)
	}

	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return ""
	}
	data := append([]byte{a.witnessVersion}, conv...)

	var s string
	switch {
	case a.blindingKey != nil:
		s, err = blech32Encode(
			a.params.Blech32HRP, data, a.witnessVersion != 0,
		)

	case a.witnessVersion == 0:
		s, err = bech32.Encode(a.params.Bech32HRP, data)

	default:
		s, err = bech32.EncodeM(a.params.Bech32HRP, data)
	}
	if err != nil {
		return ""
	}

	return s
}

// ScriptPubKey returns the output script paying to the address.
func (a *Address) ScriptPubKey() []byte {
	b := txscript.NewScriptBuilder()
	if !a.segwit {
		b.AddOp(txscript.OP_HASH160).AddData(a.program).
			AddOp(txscript.OP_EQUAL)
	} else {
		op := byte(txscript.OP_0)
		if a.witnessVersion > 0 {
			op = txscript.OP_1 + a.witnessVersion - 1
		}
		b.AddOp(op).AddData(a.program)
	}

	script, _ := b.Script()

	return script
}

// BlindingKey returns the blinding public key, or nil for unconfidential
// addresses.
func (a *Address) BlindingKey() *btcec.PublicKey {
	return a.blindingKey
}

// IsConfidential reports whether the address carries a blinding key.
func (a *Address) IsConfidential() bool {
	return a.blindingKey != nil
}

// ToUnconfidential returns the address without its blinding key.
func (a *Address) ToUnconfidential() *Address {
	c := *a
	c.blindingKey = nil

	return &c
}

// Params returns the network of the address.
func (a *Address) Params() *network.Params {
	return a.params
}
