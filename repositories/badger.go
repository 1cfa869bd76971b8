package repositories

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how often a read-modify-write transaction is replayed
// when badger detects a concurrent write on the same key.
const maxConflictRetries = 5

func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// scanPrefix calls fn with the value of every key starting with prefix, in key order.
func scanPrefix(db *badger.DB, prefix []byte, fn func(key, value []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				return fn(item.Key(), value)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
