// Package kvdb persists the scan updates of a wallet in a walletdb (kvdb)
// database, so that reopening the wallet replays them.
package kvdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/ok300/lwk/wtxmgr"
)

const metaVersion = 1

var (
	// ErrPersistenceCorrupt is returned when stored data cannot be
	// decoded.
	ErrPersistenceCorrupt = errors.New("persisted wallet data is corrupt")

	// ErrDescriptorMismatch is returned when a database is opened for a
	// different wallet than the one that created it.
	ErrDescriptorMismatch = errors.New("database belongs to another " +
		"descriptor")

	// namespaceKey is the top-level bucket of the wallet data.
	namespaceKey = []byte("lwk")

	// metaKey holds the metadata record in the namespace bucket.
	metaKey = []byte("meta")

	// updatesBucketKey is the bucket of updates keyed by sequence.
	updatesBucketKey = []byte("updates")

	byteOrder = binary.BigEndian
)

// Store is the walletdb implementation of wtxmgr.Persister.
type Store struct {
	db walletdb.DB
}

// A compile-time assertion to ensure that Store implements the
// wtxmgr.Persister interface.
var _ wtxmgr.Persister = (*Store)(nil)

// Open returns a store for the wallet identified by desc, creating its
// buckets on first use.
func Open(dbConn walletdb.DB, desc string) (*Store, error) {
	err := walletdb.Update(dbConn, func(tx walletdb.ReadWriteTx) error {
		ns, err := tx.CreateTopLevelBucket(namespaceKey)
		if err != nil {
			return err
		}

		_, err = ns.CreateBucketIfNotExists(updatesBucketKey)
		if err != nil {
			return err
		}

		raw := ns.Get(metaKey)
		if raw == nil {
			meta := &metaRecord{
				version:    metaVersion,
				descriptor: []byte(desc),
			}

			var buf bytes.Buffer
			if err := meta.encode(&buf); err != nil {
				return err
			}

			return ns.Put(metaKey, buf.Bytes())
		}

		var meta metaRecord
		if err := meta.decode(bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("%w: meta: %w", ErrPersistenceCorrupt,
				err)
		}
		if meta.version != metaVersion {
			return fmt.Errorf("%w: unknown version %d",
				ErrPersistenceCorrupt, meta.version)
		}
		if string(meta.descriptor) != desc {
			return ErrDescriptorMismatch
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: dbConn}, nil
}

// LoadUpdates returns the stored updates in the order they were stored.
func (s *Store) LoadUpdates(ctx context.Context) ([]*wtxmgr.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updates []*wtxmgr.Update
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		bucket, err := updatesBucket(tx)
		if err != nil {
			return err
		}

		return bucket.ForEach(func(k, v []byte) error {
			u, err := decodeUpdate(bytes.NewReader(v))
			if err != nil {
				return fmt.Errorf("%w: update %x: %w",
					ErrPersistenceCorrupt, k, err)
			}
			updates = append(updates, u)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return updates, nil
}

// StoreUpdate appends an update.
func (s *Store) StoreUpdate(ctx context.Context, u *wtxmgr.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := encodeUpdate(&buf, u); err != nil {
		return err
	}

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(namespaceKey)
		if ns == nil {
			return fmt.Errorf("%w: missing namespace",
				ErrPersistenceCorrupt)
		}

		bucket := ns.NestedReadWriteBucket(updatesBucketKey)
		if bucket == nil {
			return fmt.Errorf("%w: missing updates bucket",
				ErrPersistenceCorrupt)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		var key [8]byte
		byteOrder.PutUint64(key[:], seq)

		return bucket.Put(key[:], buf.Bytes())
	})
}

func updatesBucket(tx walletdb.ReadTx) (walletdb.ReadBucket, error) {
	ns := tx.ReadBucket(namespaceKey)
	if ns == nil {
		return nil, fmt.Errorf("%w: missing namespace",
			ErrPersistenceCorrupt)
	}

	bucket := ns.NestedReadBucket(updatesBucketKey)
	if bucket == nil {
		return nil, fmt.Errorf("%w: missing updates bucket",
			ErrPersistenceCorrupt)
	}

	return bucket, nil
}
