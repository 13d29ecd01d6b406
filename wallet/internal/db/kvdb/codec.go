package kvdb

import (
	"bytes"
	"cmp"
	"errors"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/wtxmgr"
)

const (
	typeTipHeight  tlv.Type = 0
	typeTipHash    tlv.Type = 1
	typeTipTime    tlv.Type = 2
	typeTxs        tlv.Type = 3
	typeHeights    tlv.Type = 4
	typeTimestamps tlv.Type = 5
	typeDeleted    tlv.Type = 6
	typeScripts    tlv.Type = 7

	typeMetaVersion    tlv.Type = 0
	typeMetaDescriptor tlv.Type = 1

	// maxBlobSize bounds a single transaction or script read back.
	maxBlobSize = wire.MaxMessagePayload
)

// errTrailingData is returned when a blob has bytes after its last entry.
var errTrailingData = errors.New("trailing data")

// updateRecord is the stored form of a wtxmgr.Update.
type updateRecord struct {
	tipHeight  uint32
	tipHash    [32]byte
	tipTime    uint64
	txs        []byte
	heights    []byte
	timestamps []byte
	deleted    []byte
	scripts    []byte
}

func (u *updateRecord) records() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(typeTipHeight, &u.tipHeight),
		tlv.MakePrimitiveRecord(typeTipHash, &u.tipHash),
		tlv.MakePrimitiveRecord(typeTipTime, &u.tipTime),
		tlv.MakePrimitiveRecord(typeTxs, &u.txs),
		tlv.MakePrimitiveRecord(typeHeights, &u.heights),
		tlv.MakePrimitiveRecord(typeTimestamps, &u.timestamps),
		tlv.MakePrimitiveRecord(typeDeleted, &u.deleted),
		tlv.MakePrimitiveRecord(typeScripts, &u.scripts),
	}
}

// encodeUpdate serializes an update.
func encodeUpdate(w io.Writer, u *wtxmgr.Update) error {
	rec := &updateRecord{
		tipHeight: u.Tip.Height,
		tipHash:   u.Tip.Hash,
	}
	if !u.Tip.Timestamp.IsZero() {
		rec.tipTime = uint64(u.Tip.Timestamp.Unix())
	}

	var err error
	if rec.txs, err = encodeTxs(u.NewTxs); err != nil {
		return err
	}
	if rec.heights, err = encodeHashMap(u.Heights); err != nil {
		return err
	}
	if rec.timestamps, err = encodeHashMap(u.Timestamps); err != nil {
		return err
	}
	if rec.deleted, err = encodeHashes(u.Deleted); err != nil {
		return err
	}
	if rec.scripts, err = encodeScripts(u.Scripts); err != nil {
		return err
	}

	tlvStream, err := tlv.NewStream(rec.records()...)
	if err != nil {
		return err
	}

	return tlvStream.Encode(w)
}

// decodeUpdate deserializes an update.
func decodeUpdate(r io.Reader) (*wtxmgr.Update, error) {
	var rec updateRecord

	tlvStream, err := tlv.NewStream(rec.records()...)
	if err != nil {
		return nil, err
	}
	if err := tlvStream.Decode(r); err != nil {
		return nil, err
	}

	u := &wtxmgr.Update{
		Tip: wtxmgr.BlockStamp{
			Height: rec.tipHeight,
			Hash:   rec.tipHash,
		},
	}
	if rec.tipTime != 0 {
		u.Tip.Timestamp = time.Unix(int64(rec.tipTime), 0)
	}

	if u.NewTxs, err = decodeTxs(rec.txs); err != nil {
		return nil, err
	}
	if u.Heights, err = decodeHashMap(rec.heights); err != nil {
		return nil, err
	}
	if u.Timestamps, err = decodeHashMap(rec.timestamps); err != nil {
		return nil, err
	}
	if u.Deleted, err = decodeHashes(rec.deleted); err != nil {
		return nil, err
	}
	if u.Scripts, err = decodeScripts(rec.scripts); err != nil {
		return nil, err
	}

	return u, nil
}

func encodeTxs(txs []*ewire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(txs))); err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := wire.WriteVarBytes(&buf, 0, tx.Bytes()); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeTxs(b []byte) ([]*ewire.MsgTx, error) {
	r := bytes.NewReader(b)
	n, err := readCount(r, b)
	if err != nil {
		return nil, err
	}

	var txs []*ewire.MsgTx
	for range n {
		raw, err := wire.ReadVarBytes(r, 0, maxBlobSize, "tx")
		if err != nil {
			return nil, err
		}
		tx, err := ewire.NewMsgTxFromBytes(raw)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, finish(r)
}

func encodeHashMap(m map[chainhash.Hash]uint32) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(m))); err != nil {
		return nil, err
	}

	keys := slices.SortedFunc(maps.Keys(m), func(a, b chainhash.Hash) int {
		return slices.Compare(a[:], b[:])
	})
	for _, k := range keys {
		buf.Write(k[:])

		var v [4]byte
		byteOrder.PutUint32(v[:], m[k])
		buf.Write(v[:])
	}

	return buf.Bytes(), nil
}

func decodeHashMap(b []byte) (map[chainhash.Hash]uint32, error) {
	r := bytes.NewReader(b)
	n, err := readCount(r, b)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, finish(r)
	}

	m := make(map[chainhash.Hash]uint32, n)
	for range n {
		var (
			k chainhash.Hash
			v [4]byte
		)
		if _, err := io.ReadFull(r, k[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return nil, err
		}
		m[k] = byteOrder.Uint32(v[:])
	}

	return m, finish(r)
}

func encodeHashes(hashes []chainhash.Hash) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(hashes))); err != nil {
		return nil, err
	}
	for _, h := range hashes {
		buf.Write(h[:])
	}

	return buf.Bytes(), nil
}

func decodeHashes(b []byte) ([]chainhash.Hash, error) {
	r := bytes.NewReader(b)
	n, err := readCount(r, b)
	if err != nil {
		return nil, err
	}

	var hashes []chainhash.Hash
	for range n {
		var h chainhash.Hash
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}

	return hashes, finish(r)
}

type scriptEntry struct {
	key  string
	info wtxmgr.ScriptInfo
}

func encodeScripts(scripts map[string]wtxmgr.ScriptInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(scripts))); err != nil {
		return nil, err
	}

	entries := make([]scriptEntry, 0, len(scripts))
	for k, info := range scripts {
		entries = append(entries, scriptEntry{key: k, info: info})
	}
	slices.SortFunc(entries, func(a, b scriptEntry) int {
		return cmp.Compare(a.key, b.key)
	})

	for _, e := range entries {
		if err := wire.WriteVarString(&buf, 0, e.key); err != nil {
			return nil, err
		}

		var v [8]byte
		byteOrder.PutUint32(v[:4], uint32(e.info.Chain))
		byteOrder.PutUint32(v[4:], e.info.Index)
		buf.Write(v[:])
	}

	return buf.Bytes(), nil
}

func decodeScripts(b []byte) (map[string]wtxmgr.ScriptInfo, error) {
	r := bytes.NewReader(b)
	n, err := readCount(r, b)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, finish(r)
	}

	scripts := make(map[string]wtxmgr.ScriptInfo, n)
	for range n {
		k, err := wire.ReadVarString(r, 0)
		if err != nil {
			return nil, err
		}

		var v [8]byte
		if _, err := io.ReadFull(r, v[:]); err != nil {
			return nil, err
		}
		scripts[k] = wtxmgr.ScriptInfo{
			Chain: descriptor.Chain(byteOrder.Uint32(v[:4])),
			Index: byteOrder.Uint32(v[4:]),
		}
	}

	return scripts, finish(r)
}

// readCount reads an entry count, which cannot exceed the blob size. An
// absent blob holds no entries.
func readCount(r *bytes.Reader, b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, nil
	}

	n, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, err
	}
	if n > uint64(len(b)) {
		return 0, errors.New("entry count exceeds data")
	}

	return n, nil
}

func finish(r *bytes.Reader) error {
	if r.Len() != 0 {
		return errTrailingData
	}

	return nil
}

// metaRecord identifies the wallet a database belongs to.
type metaRecord struct {
	version    uint8
	descriptor []byte
}

func (m *metaRecord) records() []tlv.Record {
	return []tlv.Record{
		tlv.MakePrimitiveRecord(typeMetaVersion, &m.version),
		tlv.MakePrimitiveRecord(typeMetaDescriptor, &m.descriptor),
	}
}

func (m *metaRecord) encode(w io.Writer) error {
	tlvStream, err := tlv.NewStream(m.records()...)
	if err != nil {
		return err
	}

	return tlvStream.Encode(w)
}

func (m *metaRecord) decode(r io.Reader) error {
	tlvStream, err := tlv.NewStream(m.records()...)
	if err != nil {
		return err
	}

	return tlvStream.Decode(r)
}
