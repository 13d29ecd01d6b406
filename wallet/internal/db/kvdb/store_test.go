package kvdb

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/ok300/lwk/descriptor"
	"github.com/ok300/lwk/ewire"
	"github.com/ok300/lwk/wtxmgr"
	"github.com/stretchr/testify/require"
)

const (
	defaultDBTimeout = 10 * time.Second

	testDesc = "ct(slip77(ab),elwpkh(xpub))"
)

// newTestDB creates a temporary bdb walletdb closed at the end of the test.
func newTestDB(t *testing.T) (walletdb.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "wallet.db")

	dbConn, err := walletdb.Create(
		"bdb", dbPath, true, defaultDBTimeout, false,
	)
	require.NoError(t, err)

	return dbConn, dbPath
}

func reopen(t *testing.T, dbConn walletdb.DB, dbPath string) walletdb.DB {
	t.Helper()

	require.NoError(t, dbConn.Close())

	dbConn, err := walletdb.Open(
		"bdb", dbPath, true, defaultDBTimeout, false,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = dbConn.Close()
	})

	return dbConn
}

func testUpdate() *wtxmgr.Update {
	tx := ewire.NewMsgTx(2)
	tx.AddTxIn(&ewire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&ewire.TxOut{
		Asset:    append([]byte{0x01}, bytes.Repeat([]byte{2}, 32)...),
		Value:    ewire.ExplicitValue(1000),
		PkScript: []byte{0x00, 0x02, 0xaa, 0xbb},
	})
	txid := tx.TxHash()

	return &wtxmgr.Update{
		NewTxs:     []*ewire.MsgTx{tx},
		Heights:    map[chainhash.Hash]uint32{txid: 100},
		Timestamps: map[chainhash.Hash]uint32{txid: 1700000000},
		Deleted:    []chainhash.Hash{{9}},
		Scripts: map[string]wtxmgr.ScriptInfo{
			"0002aabb": {Chain: descriptor.Internal, Index: 4},
			"0002ccdd": {Chain: descriptor.External, Index: 0},
		},
		Tip: wtxmgr.BlockStamp{
			Height:    100,
			Hash:      chainhash.Hash{3},
			Timestamp: time.Unix(1700000000, 0),
		},
	}
}

// TestStoreUpdates checks that updates survive reopening the database in
// the order they were stored.
func TestStoreUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbConn, dbPath := newTestDB(t)

	store, err := Open(dbConn, testDesc)
	require.NoError(t, err)

	updates, err := store.LoadUpdates(ctx)
	require.NoError(t, err)
	require.Empty(t, updates)

	first := testUpdate()
	second := &wtxmgr.Update{Tip: wtxmgr.BlockStamp{Height: 101}}
	require.NoError(t, store.StoreUpdate(ctx, first))
	require.NoError(t, store.StoreUpdate(ctx, second))

	dbConn = reopen(t, dbConn, dbPath)
	store, err = Open(dbConn, testDesc)
	require.NoError(t, err)

	updates, err = store.LoadUpdates(ctx)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	got := updates[0]
	require.Len(t, got.NewTxs, 1)
	require.Equal(t, first.NewTxs[0].TxHash(), got.NewTxs[0].TxHash())
	require.Equal(t, first.Heights, got.Heights)
	require.Equal(t, first.Timestamps, got.Timestamps)
	require.Equal(t, first.Deleted, got.Deleted)
	require.Equal(t, first.Scripts, got.Scripts)
	require.Equal(t, first.Tip.Height, got.Tip.Height)
	require.Equal(t, first.Tip.Hash, got.Tip.Hash)
	require.True(t, first.Tip.Timestamp.Equal(got.Tip.Timestamp))

	require.True(t, updates[1].IsEmpty())
	require.Equal(t, uint32(101), updates[1].Tip.Height)
	require.True(t, updates[1].Tip.Timestamp.IsZero())
}

// TestOpenOtherDescriptor checks that a database is bound to the
// descriptor that created it.
func TestOpenOtherDescriptor(t *testing.T) {
	t.Parallel()

	dbConn, _ := newTestDB(t)
	t.Cleanup(func() {
		_ = dbConn.Close()
	})

	_, err := Open(dbConn, testDesc)
	require.NoError(t, err)

	_, err = Open(dbConn, testDesc+"x")
	require.ErrorIs(t, err, ErrDescriptorMismatch)
}

// TestCorruptUpdate checks that undecodable data is reported as corrupt.
func TestCorruptUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbConn, _ := newTestDB(t)
	t.Cleanup(func() {
		_ = dbConn.Close()
	})

	store, err := Open(dbConn, testDesc)
	require.NoError(t, err)

	err = walletdb.Update(dbConn, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(namespaceKey).
			NestedReadWriteBucket(updatesBucketKey)

		return bucket.Put([]byte{0, 0, 0, 0, 0, 0, 0, 1},
			[]byte{0x03, 0x05, 0x01})
	})
	require.NoError(t, err)

	_, err = store.LoadUpdates(ctx)
	require.ErrorIs(t, err, ErrPersistenceCorrupt)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.LoadUpdates(canceled)
	require.ErrorIs(t, err, context.Canceled)
}
