package credstore

import (
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("session")
	boltKey    = []byte("credential")
)

// Bolt is a Store backed by a BBolt database, so the credential survives
// process restarts.
type Bolt struct {
	db *bbolt.DB
}

var _ Store = (*Bolt)(nil)

// NewBolt returns a Store backed by the given BBolt database.
func NewBolt(db *bbolt.DB) *Bolt {
	return &Bolt{db: db}
}

// NewBoltFromFile opens a BBolt database at the given path and returns a new
// Store.
func NewBoltFromFile(path string, options *bbolt.Options) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBolt(db), nil
}

// Close closes the underlying BBolt database.
func (s *Bolt) Close() error {
	return s.db.Close()
}

func (s *Bolt) Load() (string, error) {
	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b == nil {
			return nil
		}
		if data := b.Get(boltKey); data != nil {
			token = string(data)
		}
		return nil
	})
	return token, err
}

func (s *Bolt) Save(token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return b.Put(boltKey, []byte(token))
	})
}

func (s *Bolt) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b == nil {
			return nil
		}
		return b.Delete(boltKey)
	})
}
