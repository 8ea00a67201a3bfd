package livestate

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	stateBucket = []byte("liveedit")
)

type boltStore struct {
	db *bolt.DB
}

// opens (or creates) a BoltDB database. caller closes via Close().
func OpenBolt(dbLocation string) (*boltStore, error) {
	db, err := bolt.Open(dbLocation, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	}); err != nil {
		ignoreError(db.Close())
		return nil, err
	}

	return &boltStore{db}, nil
}

func (b *boltStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	found := false

	err := b.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(stateBucket).Get([]byte(key))
		if stored != nil {
			found = true
			// only valid for the life of the transaction
			value = append([]byte{}, stored...)
		}

		return nil
	})

	return value, found, err
}

func (b *boltStore) Put(key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), value)
	})
}

func (b *boltStore) Close() error {
	return b.db.Close()
}

func ignoreError(err error) {
	// no-op
}
