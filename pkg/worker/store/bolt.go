package store

import (
	"context"
	"encoding/json"

	"github.com/jabolina/worker-sync/pkg/worker/types"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var batchesBucket = []byte("batches")

// BoltStore is the BatchStore backed by go.etcd.io/bbolt — the library
// the teacher's own go.mod already names in its
// `github.com/coreos/bbolt => go.etcd.io/bbolt` replace directive.
// Digests are used as bbolt keys directly, so bytewise key equality
// (bbolt's own ordering) matches spec.md §3's digest equality
// invariant for free.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt database at
// path, with the single bucket this store needs.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt store at %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(batchesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating batches bucket")
	}
	return &BoltStore{db: db}, nil
}

// Read implements BatchStore.
func (s *BoltStore) Read(_ context.Context, digest types.BatchDigest) (*types.Batch, error) {
	var batch *types.Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(batchesBucket).Get(digest[:])
		if value == nil {
			return nil
		}
		var b types.Batch
		if err := json.Unmarshal(value, &b); err != nil {
			return errors.Wrap(err, "decoding stored batch")
		}
		batch = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// Write implements BatchStore.
func (s *BoltStore) Write(_ context.Context, batch *types.Batch) error {
	digest := batch.Digest()
	data, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "encoding batch")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(batchesBucket).Put(digest[:], data)
	})
}

// Remove implements BatchStore.
func (s *BoltStore) Remove(_ context.Context, digests []types.BatchDigest) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(batchesBucket)
		for _, digest := range digests {
			if err := bucket.Delete(digest[:]); err != nil {
				return errors.Wrapf(err, "deleting batch %s", digest)
			}
		}
		return nil
	})
}

// Close implements BatchStore.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
