package blockchain

import (
	"sync"

	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// chainKey is the single key the snapshot document lives under.
var chainKey = []byte("chain")

// ChainDB stores the chain snapshot in a bolt bucket. The whole chain is one
// protobuf document under one key: every append rewrites the document, which
// keeps the stored form the same ordered array of block records the
// in-memory chain holds.
type ChainDB struct {
	*bbolt.DB
	bucketName []byte
	storeMutex sync.Mutex
}

// NewChainDB opens the snapshot store inside an existing bucket, typically
// the one handed out by the service's GetAdditionalBucket.
func NewChainDB(db *bbolt.DB, bn []byte) *ChainDB {
	return &ChainDB{
		DB:         db,
		bucketName: bn,
	}
}

// StoreSnapshot replaces the persisted snapshot with the given blocks.
func (db *ChainDB) StoreSnapshot(blocks []*Block) error {
	db.storeMutex.Lock()
	defer db.storeMutex.Unlock()
	buf, err := protobuf.Encode(&Snapshot{Blocks: blocks})
	if err != nil {
		return xerrors.Errorf("encoding snapshot: %v: %w", err, ErrPersistence)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(db.bucketName).Put(chainKey, buf)
	})
	if err != nil {
		return xerrors.Errorf("writing snapshot: %v: %w", err, ErrPersistence)
	}
	return nil
}

// LoadSnapshot reads the persisted snapshot. A missing document yields
// (nil, nil); the caller decides whether that means a fresh chain.
func (db *ChainDB) LoadSnapshot() ([]*Block, error) {
	var buf []byte
	err := db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(db.bucketName).Get(chainKey)
		if v != nil {
			// Copy: the value is only valid while the tx lives.
			buf = append(buf, v...)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("reading snapshot: %v: %w", err, ErrPersistence)
	}
	if buf == nil {
		return nil, nil
	}
	var snap Snapshot
	if err := protobuf.Decode(buf, &snap); err != nil {
		return nil, xerrors.Errorf("decoding snapshot: %v: %w", err, ErrPersistence)
	}
	return snap.Blocks, nil
}
