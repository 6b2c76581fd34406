package database

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
)

// BadgerDocumentStore is an embedded on-disk store, the closest analogue of
// browser local storage: one directory per profile, no external service.
type BadgerDocumentStore struct {
	db *badger.DB
}

// NewBadgerDocumentStore opens the store in dir. An empty dir keeps all data
// in memory.
func NewBadgerDocumentStore(dir string) (*BadgerDocumentStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDocumentStore{db: db}, nil
}

func (b *BadgerDocumentStore) Ping(_ context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger: store is closed")
	}
	return nil
}

func (b *BadgerDocumentStore) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (b *BadgerDocumentStore) Put(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerDocumentStore) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerDocumentStore) Close() error {
	return b.db.Close()
}
