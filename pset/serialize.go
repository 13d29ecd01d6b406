package pset

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ok300/lwk/ewire"
)

// magic prefixes every serialized packet.
var magic = []byte{'p', 's', 'e', 't', 0xff}

const (
	globalUnsignedTx = 0x00
	globalXPub       = 0x01

	inWitnessUtxo   = 0x01
	inPartialSig    = 0x02
	inSighashType   = 0x03
	inRedeemScript  = 0x04
	inWitnessScript = 0x05
	inBip32         = 0x06
	inFinalSig      = 0x07
	inFinalWitness  = 0x08

	outBlindingPubKey = 0x01
	outBip32          = 0x02

	// maxRecordSize bounds keys and values read from a packet.
	maxRecordSize = wire.MaxMessagePayload
)

// ErrMalformedPacket is returned when a serialized packet cannot be
// decoded.
var ErrMalformedPacket = errors.New("malformed pset")

// writeRecord writes one key-value record.
func writeRecord(w io.Writer, keyType byte, keyData, value []byte) error {
	key := append([]byte{keyType}, keyData...)
	if err := wire.WriteVarBytes(w, 0, key); err != nil {
		return err
	}

	return wire.WriteVarBytes(w, 0, value)
}

// writeSeparator terminates a map.
func writeSeparator(w io.Writer) error {
	_, err := w.Write([]byte{0x00})
	return err
}

// Serialize writes the packet in its binary form.
func (p *Packet) Serialize(w io.Writer) error {
	if err := p.SanityCheck(); err != nil {
		return err
	}

	if _, err := w.Write(magic); err != nil {
		return err
	}

	err := writeRecord(w, globalUnsignedTx, nil, p.UnsignedTx.Bytes())
	if err != nil {
		return err
	}
	for _, x := range p.XPubs {
		err := writeRecord(
			w, globalXPub, []byte(x.ExtendedKey),
			psbt.SerializeBIP32Derivation(
				x.Derivation.MasterKeyFingerprint,
				x.Derivation.Bip32Path,
			),
		)
		if err != nil {
			return err
		}
	}
	if err := writeSeparator(w); err != nil {
		return err
	}

	for i := range p.Inputs {
		if err := p.Inputs[i].serialize(w); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}

	for i := range p.Outputs {
		if err := p.Outputs[i].serialize(w); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}

	return nil
}

func (i *PInput) serialize(w io.Writer) error {
	if i.WitnessUtxo != nil {
		var buf bytes.Buffer
		if err := writeTxOut(&buf, i.WitnessUtxo); err != nil {
			return err
		}
		err := writeRecord(w, inWitnessUtxo, nil, buf.Bytes())
		if err != nil {
			return err
		}
	}

	for _, ps := range i.PartialSigs {
		err := writeRecord(w, inPartialSig, ps.PubKey, ps.Signature)
		if err != nil {
			return err
		}
	}

	if i.SighashType != 0 {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(i.SighashType))
		if err := writeRecord(w, inSighashType, nil, b[:]); err != nil {
			return err
		}
	}

	if len(i.RedeemScript) > 0 {
		err := writeRecord(w, inRedeemScript, nil, i.RedeemScript)
		if err != nil {
			return err
		}
	}

	if len(i.WitnessScript) > 0 {
		err := writeRecord(w, inWitnessScript, nil, i.WitnessScript)
		if err != nil {
			return err
		}
	}

	if err := writeDerivations(w, inBip32, i.Bip32Derivation); err != nil {
		return err
	}

	if len(i.FinalScriptSig) > 0 {
		err := writeRecord(w, inFinalSig, nil, i.FinalScriptSig)
		if err != nil {
			return err
		}
	}

	if len(i.FinalScriptWitness) > 0 {
		var buf bytes.Buffer
		err := wire.WriteVarInt(
			&buf, 0, uint64(len(i.FinalScriptWitness)),
		)
		if err != nil {
			return err
		}
		for _, item := range i.FinalScriptWitness {
			if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
				return err
			}
		}
		err = writeRecord(w, inFinalWitness, nil, buf.Bytes())
		if err != nil {
			return err
		}
	}

	return writeSeparator(w)
}

func (o *POutput) serialize(w io.Writer) error {
	if o.BlindingPubKey != nil {
		err := writeRecord(
			w, outBlindingPubKey, nil,
			o.BlindingPubKey.SerializeCompressed(),
		)
		if err != nil {
			return err
		}
	}

	if err := writeDerivations(w, outBip32, o.Bip32Derivation); err != nil {
		return err
	}

	return writeSeparator(w)
}

func writeDerivations(w io.Writer, keyType byte,
	derivations []*psbt.Bip32Derivation) error {

	for _, d := range derivations {
		err := writeRecord(
			w, keyType, d.PubKey,
			psbt.SerializeBIP32Derivation(
				d.MasterKeyFingerprint, d.Bip32Path,
			),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// writeTxOut writes a spent output including its proofs.
func writeTxOut(w io.Writer, out *ewire.TxOut) error {
	fields := [][]byte{
		out.Asset, out.Value, out.Nonce, out.PkScript,
		out.SurjectionProof, out.RangeProof,
	}
	for _, f := range fields {
		if err := wire.WriteVarBytes(w, 0, f); err != nil {
			return err
		}
	}

	return nil
}

func readTxOut(r io.Reader) (*ewire.TxOut, error) {
	fields := make([][]byte, 6)
	for i := range fields {
		b, err := wire.ReadVarBytes(r, 0, maxRecordSize, "txout")
		if err != nil {
			return nil, err
		}
		if len(b) > 0 {
			fields[i] = b
		}
	}

	return &ewire.TxOut{
		Asset:           fields[0],
		Value:           fields[1],
		Nonce:           fields[2],
		PkScript:        fields[3],
		SurjectionProof: fields[4],
		RangeProof:      fields[5],
	}, nil
}

// readRecord reads one record. A nil key marks the end of a map.
func readRecord(r io.Reader) ([]byte, []byte, error) {
	key, err := wire.ReadVarBytes(r, 0, maxRecordSize, "key")
	if err != nil {
		return nil, nil, err
	}
	if len(key) == 0 {
		return nil, nil, nil
	}

	value, err := wire.ReadVarBytes(r, 0, maxRecordSize, "value")
	if err != nil {
		return nil, nil, err
	}

	return key, value, nil
}

func readDerivation(pubKey, value []byte) (*psbt.Bip32Derivation, error) {
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		return nil, err
	}

	fp, path, err := readBip32(value)
	if err != nil {
		return nil, err
	}

	return &psbt.Bip32Derivation{
		PubKey:               bytes.Clone(pubKey),
		MasterKeyFingerprint: fp,
		Bip32Path:            path,
	}, nil
}

// readBip32 decodes a fingerprint and path. Unlike the psbt encoding it
// accepts an empty path, which keys without an origin carry.
func readBip32(value []byte) (uint32, []uint32, error) {
	if len(value) == 4 {
		return binary.LittleEndian.Uint32(value), nil, nil
	}

	return psbt.ReadBip32Derivation(value)
}

// Deserialize reads a packet in its binary form.
func Deserialize(r io.Reader) (*Packet, error) {
	p, err := deserialize(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}

	return p, nil
}

func deserialize(r io.Reader) (*Packet, error) {
	prefix := make([]byte, len(magic))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	if !bytes.Equal(prefix, magic) {
		return nil, errors.New("bad magic")
	}

	var (
		tx    *ewire.MsgTx
		xpubs []XPub
	)
	for {
		key, value, err := readRecord(r)
		if err != nil {
			return nil, err
		}
		if key == nil {
			break
		}

		switch key[0] {
		case globalUnsignedTx:
			tx, err = ewire.NewMsgTxFromBytes(value)
			if err != nil {
				return nil, err
			}

		case globalXPub:
			fp, path, err := readBip32(value)
			if err != nil {
				return nil, err
			}
			xpubs = append(xpubs, XPub{
				ExtendedKey: string(key[1:]),
				Derivation: psbt.Bip32Derivation{
					MasterKeyFingerprint: fp,
					Bip32Path:            path,
				},
			})

		default:
			return nil, fmt.Errorf("unknown global key %#x", key[0])
		}
	}
	if tx == nil {
		return nil, errors.New("missing unsigned transaction")
	}

	p, err := New(tx)
	if err != nil {
		return nil, err
	}
	p.XPubs = xpubs

	for i := range p.Inputs {
		if err := p.Inputs[i].deserialize(r); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	for i := range p.Outputs {
		if err := p.Outputs[i].deserialize(r); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	return p, nil
}

func (i *PInput) deserialize(r io.Reader) error {
	for {
		key, value, err := readRecord(r)
		if err != nil {
			return err
		}
		if key == nil {
			return nil
		}

		switch key[0] {
		case inWitnessUtxo:
			i.WitnessUtxo, err = readTxOut(bytes.NewReader(value))

		case inPartialSig:
			i.PartialSigs = append(i.PartialSigs, &psbt.PartialSig{
				PubKey:    key[1:],
				Signature: value,
			})

		case inSighashType:
			if len(value) != 4 {
				return errors.New("bad sighash type")
			}
			i.SighashType = txscript.SigHashType(
				binary.LittleEndian.Uint32(value),
			)

		case inRedeemScript:
			i.RedeemScript = value

		case inWitnessScript:
			i.WitnessScript = value

		case inBip32:
			var d *psbt.Bip32Derivation
			d, err = readDerivation(key[1:], value)
			if err == nil {
				i.Bip32Derivation = append(i.Bip32Derivation, d)
			}

		case inFinalSig:
			i.FinalScriptSig = value

		case inFinalWitness:
			i.FinalScriptWitness, err = readWitness(value)

		default:
			err = fmt.Errorf("unknown input key %#x", key[0])
		}
		if err != nil {
			return err
		}
	}
}

func (o *POutput) deserialize(r io.Reader) error {
	for {
		key, value, err := readRecord(r)
		if err != nil {
			return err
		}
		if key == nil {
			return nil
		}

		switch key[0] {
		case outBlindingPubKey:
			o.BlindingPubKey, err = btcec.ParsePubKey(value)

		case outBip32:
			var d *psbt.Bip32Derivation
			d, err = readDerivation(key[1:], value)
			if err == nil {
				o.Bip32Derivation = append(o.Bip32Derivation, d)
			}

		default:
			err = fmt.Errorf("unknown output key %#x", key[0])
		}
		if err != nil {
			return err
		}
	}
}

func readWitness(b []byte) (wire.TxWitness, error) {
	r := bytes.NewReader(b)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count > uint64(len(b)) {
		return nil, errors.New("witness count too large")
	}

	wit := make(wire.TxWitness, count)
	for j := range wit {
		wit[j], err = wire.ReadVarBytes(r, 0, maxRecordSize, "witness")
		if err != nil {
			return nil, err
		}
	}

	return wit, nil
}

// B64Encode returns the base64 encoding of the packet.
func (p *Packet) B64Encode() (string, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// NewFromRawBytes decodes a packet, reading base64 text when b64 is set.
func NewFromRawBytes(r io.Reader, b64 bool) (*Packet, error) {
	if b64 {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	return Deserialize(r)
}

// NewFromB64 decodes a base64 packet.
func NewFromB64(s string) (*Packet, error) {
	return NewFromRawBytes(strings.NewReader(s), true)
}
