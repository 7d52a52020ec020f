package database

import (
	"context"
	"errors"

	"github.com/safing/rdapd/base/database/iterator"
	"github.com/safing/rdapd/base/database/record"
	"github.com/safing/rdapd/base/database/storage"
)

// A Controller takes care of all the extra database logic.
type Controller struct {
	database *Database
	storage  storage.Interface
}

// newController creates a new controller for a storage.
func newController(database *Database, storageInt storage.Interface) *Controller {
	return &Controller{
		database: database,
		storage:  storageInt,
	}
}

// ReadOnly returns whether the storage is read only.
func (c *Controller) ReadOnly() bool {
	return c.storage.ReadOnly()
}

// Get returns the record with the given key.
func (c *Controller) Get(key string) (record.Record, error) {
	if shuttingDown.IsSet() {
		return nil, ErrShuttingDown
	}

	r, err := c.storage.Get(key)
	if err != nil {
		// replace not found error
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	r.Lock()
	defer r.Unlock()

	if !r.Meta().CheckValidity() {
		return nil, ErrNotFound
	}

	return r, nil
}

// Put saves a record in the database. The record must be locked and secured
// from concurrent access when calling Put().
func (c *Controller) Put(r record.Record) error {
	if shuttingDown.IsSet() {
		return ErrShuttingDown
	}

	if c.ReadOnly() {
		return ErrReadOnly
	}

	if r.Meta().IsDeleted() {
		// Immediate delete.
		return c.storage.Delete(r.DatabaseKey())
	}

	r, err := c.storage.Put(r)
	if err != nil {
		return err
	}

	if r == nil {
		return errors.New("storage returned nil record after successful put operation")
	}

	return nil
}

// PutNew saves a record in the database, if no valid record exists for its
// key yet. Returns ErrAlreadyExists otherwise. The record must be locked and
// secured from concurrent access when calling PutNew().
func (c *Controller) PutNew(r record.Record) error {
	if shuttingDown.IsSet() {
		return ErrShuttingDown
	}

	if c.ReadOnly() {
		return ErrReadOnly
	}

	_, err := c.storage.PutNew(r)
	if err != nil {
		// replace already exists error
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrAlreadyExists
		}
		return err
	}

	return nil
}

// Delete deletes a record from the database.
func (c *Controller) Delete(key string) error {
	if shuttingDown.IsSet() {
		return ErrShuttingDown
	}

	if c.ReadOnly() {
		return ErrReadOnly
	}

	return c.storage.Delete(key)
}

// Query executes a prefix query on the database.
func (c *Controller) Query(prefix string) (*iterator.Iterator, error) {
	if shuttingDown.IsSet() {
		return nil, ErrShuttingDown
	}

	it, err := c.storage.Query(prefix)
	if err != nil {
		return nil, err
	}

	return it, nil
}

// Purge deletes all records that match the given prefix.
// It returns the number of successful deletes and an error.
func (c *Controller) Purge(ctx context.Context, prefix string) (int, error) {
	if shuttingDown.IsSet() {
		return 0, ErrShuttingDown
	}

	if purger, ok := c.storage.(storage.Purger); ok {
		return purger.Purge(ctx, prefix)
	}

	return 0, errors.New("purge not implemented by this storage")
}

// Shutdown shuts down the storage.
func (c *Controller) Shutdown() error {
	return c.storage.Shutdown()
}
