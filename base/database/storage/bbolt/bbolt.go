package bbolt

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/safing/rdapd/base/database/iterator"
	"github.com/safing/rdapd/base/database/record"
	"github.com/safing/rdapd/base/database/storage"
)

var bucketName = []byte{0}

// BBolt database storage backend.
type BBolt struct {
	name string
	db   *bbolt.DB
}

func init() {
	_ = storage.Register("bbolt", NewBBolt)
}

// NewBBolt opens/creates a bbolt database.
func NewBBolt(name, location string) (storage.Interface, error) {
	// Create options for bbolt database.
	dbFile := filepath.Join(location, "db.bbolt")
	dbOptions := &bbolt.Options{
		Timeout: 1 * time.Second,
	}

	// Open/Create database, retry if there is a timeout.
	db, err := bbolt.Open(dbFile, 0o0600, dbOptions)
	for i := 0; i < 5 && err != nil; i++ {
		// Try again if there is an error.
		db, err = bbolt.Open(dbFile, 0o0600, dbOptions)
	}
	if err != nil {
		return nil, err
	}

	// Create bucket
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BBolt{
		name: name,
		db:   db,
	}, nil
}

// Get returns a database record.
func (b *BBolt) Get(key string) (record.Record, error) {
	var r record.Record

	err := b.db.View(func(tx *bbolt.Tx) error {
		// get value from db
		value := tx.Bucket(bucketName).Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}

		// copy data
		duplicate := make([]byte, len(value))
		copy(duplicate, value)

		// create record
		var txErr error
		r, txErr = record.NewRawWrapper(b.name, key, duplicate)
		if txErr != nil {
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Put stores a record in the database.
func (b *BBolt) Put(r record.Record) (record.Record, error) {
	data, err := r.MarshalRecord(r)
	if err != nil {
		return nil, err
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		txErr := tx.Bucket(bucketName).Put([]byte(r.DatabaseKey()), data)
		if txErr != nil {
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PutNew stores a record in the database, if no valid record exists for its
// key yet. The existence check and the write happen in the same transaction,
// so concurrent inserts for the same key settle on exactly one winner.
func (b *BBolt) PutNew(r record.Record) (record.Record, error) {
	data, err := r.MarshalRecord(r)
	if err != nil {
		return nil, err
	}

	key := []byte(r.DatabaseKey())
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)

		value := bucket.Get(key)
		if value != nil {
			existing, txErr := record.NewRawWrapper(b.name, r.DatabaseKey(), value)
			if txErr == nil && existing.Meta().CheckValidity() {
				return storage.ErrAlreadyExists
			}
			// Expired, deleted or unreadable records do not block the insert.
		}

		return bucket.Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete deletes a record from the database.
func (b *BBolt) Delete(key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		txErr := tx.Bucket(bucketName).Delete([]byte(key))
		if txErr != nil {
			return txErr
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// Query returns an iterator for all records whose database key starts with
// the given prefix.
func (b *BBolt) Query(prefix string) (*iterator.Iterator, error) {
	queryIter := iterator.New()

	go b.queryExecutor(queryIter, prefix)
	return queryIter, nil
}

func (b *BBolt) queryExecutor(queryIter *iterator.Iterator, keyPrefix string) {
	prefix := []byte(keyPrefix)
	err := b.db.View(func(tx *bbolt.Tx) error {
		// Create a cursor for iteration.
		c := tx.Bucket(bucketName).Cursor()

		// Iterate over items in sorted key order. This starts from the
		// first key/value pair and updates the k/v variables to the
		// next key/value on each iteration.
		//
		// The loop finishes at the end of the cursor when a nil key is returned.
		for key, value := c.Seek(prefix); key != nil; key, value = c.Next() {

			// if we don't match the prefix anymore, exit
			if !bytes.HasPrefix(key, prefix) {
				return nil
			}

			// wrap value
			iterWrapper, err := record.NewRawWrapper(b.name, string(key), value)
			if err != nil {
				return err
			}

			// check validity
			if !iterWrapper.Meta().CheckValidity() {
				continue
			}

			// copy data and send
			duplicate := make([]byte, len(value))
			copy(duplicate, value)

			newWrapper, err := record.NewRawWrapper(b.name, iterWrapper.DatabaseKey(), duplicate)
			if err != nil {
				return err
			}
			select {
			case <-queryIter.Done:
				return nil
			case queryIter.Next <- newWrapper:
			default:
				select {
				case <-queryIter.Done:
					return nil
				case queryIter.Next <- newWrapper:
				case <-time.After(1 * time.Second):
					return errors.New("query timeout")
				}
			}
		}
		return nil
	})
	queryIter.Finish(err)
}

// ReadOnly returns whether the database is read only.
func (b *BBolt) ReadOnly() bool {
	return false
}

// Purge deletes all records that match the given prefix. It returns the
// number of successful deletes and an error.
func (b *BBolt) Purge(ctx context.Context, keyPrefix string) (int, error) {
	prefix := []byte(keyPrefix)

	var cnt int
	var done bool
	for !done {
		err := b.db.Update(func(tx *bbolt.Tx) error {
			// Create a cursor for iteration.
			c := tx.Bucket(bucketName).Cursor()
			for key, _ := c.Seek(prefix); key != nil; key, _ = c.Next() {
				// Check if context has been cancelled.
				select {
				case <-ctx.Done():
					done = true
					return nil
				default:
				}

				// Check if we still match the key prefix, if not, exit.
				if !bytes.HasPrefix(key, prefix) {
					done = true
					return nil
				}

				// Delete record.
				err := c.Delete()
				if err != nil {
					return err
				}

				// Work in batches of 1000 changes in order to enable other operations in between.
				cnt++
				if cnt%1000 == 0 {
					return nil
				}
			}
			done = true
			return nil
		})
		if err != nil {
			return cnt, err
		}
	}

	return cnt, nil
}

// Shutdown shuts down the database.
func (b *BBolt) Shutdown() error {
	return b.db.Close()
}
