package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/keyforge/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketPendingResults = []byte("pending_results")

// BoltQueue implements ResultQueue on a BoltDB file so undelivered results
// survive a restart. Keys are the bucket sequence number, big-endian, so
// cursor order is insertion order
type BoltQueue struct {
	db *bolt.DB
}

// NewBoltQueue opens (or creates) the queue database at path
func NewBoltQueue(path string) (*BoltQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPendingResults); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketPendingResults, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltQueue{db: db}, nil
}

// Close closes the database
func (q *BoltQueue) Close() error {
	return q.db.Close()
}

func (q *BoltQueue) Push(res *types.JobResult) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPendingResults)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

func (q *BoltQueue) Peek() (*types.JobResult, error) {
	var res types.JobResult
	err := q.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(bucketPendingResults).Cursor().First()
		if v == nil {
			return ErrEmpty
		}
		return json.Unmarshal(v, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (q *BoltQueue) Pop() error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPendingResults)
		k, _ := b.Cursor().First()
		if k == nil {
			return ErrEmpty
		}
		return b.Delete(k)
	})
}

func (q *BoltQueue) Len() int {
	n := 0
	_ = q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketPendingResults).Stats().KeyN
		return nil
	})
	return n
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
