package database

import (
	"context"
	"errors"

	"github.com/bluele/gcache"

	"github.com/safing/rdapd/base/database/iterator"
	"github.com/safing/rdapd/base/database/record"
)

// Interface provides a method to access the database with attached options.
type Interface struct {
	options *Options
	cache   gcache.Cache
}

// Options holds options that may be set for an Interface instance.
type Options struct {
	// CacheSize defines that a cache should be used for this interface and
	// defines it's size.
	// Caching comes with an important caveat: If database records are changed
	// from another interface, the cache will not be invalidated for these
	// records. It will therefore serve outdated data until that record is
	// evicted from the cache.
	CacheSize int
}

// Apply applies options to the record metadata.
func (o *Options) Apply(r record.Record) {
	r.UpdateMeta()
}

// NewInterface returns a new Interface to the database.
func NewInterface(opts *Options) *Interface {
	if opts == nil {
		opts = &Options{}
	}

	newIface := &Interface{
		options: opts,
	}
	if opts.CacheSize > 0 {
		newIface.cache = gcache.New(opts.CacheSize).ARC().Build()
	}
	return newIface
}

// Exists returns whether a record with the given key exists.
func (i *Interface) Exists(key string) (bool, error) {
	_, err := i.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get returns the record with the given key.
func (i *Interface) Get(key string) (record.Record, error) {
	dbName, dbKey := record.ParseKey(key)

	db, err := getController(dbName)
	if err != nil {
		return nil, err
	}

	if r := i.checkCache(key); r != nil {
		return r, nil
	}

	r, err := db.Get(dbKey)
	if err != nil {
		return nil, err
	}

	r.Lock()
	ttl := r.Meta().GetRelativeExpiry()
	r.Unlock()
	i.updateCache(
		r,
		false, // remove
		ttl,   // expiry
	)

	return r, nil
}

// Put saves a record to the database.
func (i *Interface) Put(r record.Record) error {
	db, err := getController(r.DatabaseName())
	if err != nil {
		return err
	}

	r.Lock()
	i.options.Apply(r)
	remove := r.Meta().IsDeleted()
	ttl := r.Meta().GetRelativeExpiry()
	err = db.Put(r)
	r.Unlock()
	if err != nil {
		return err
	}

	// The record may not be locked when updating the cache.
	i.updateCache(r, remove, ttl)
	return nil
}

// PutNew saves a record to the database as a new record (ie. with fresh
// timestamps), if no valid record exists for its key yet. Returns
// ErrAlreadyExists if another record won the key in the meantime.
func (i *Interface) PutNew(r record.Record) error {
	db, err := getController(r.DatabaseName())
	if err != nil {
		return err
	}

	r.Lock()
	if r.Meta() != nil {
		r.Meta().Reset()
	}
	i.options.Apply(r)
	ttl := r.Meta().GetRelativeExpiry()
	err = db.PutNew(r)
	r.Unlock()
	if err != nil {
		return err
	}

	// The record may not be locked when updating the cache.
	i.updateCache(r, false, ttl)
	return nil
}

// Delete deletes a record from the database.
func (i *Interface) Delete(key string) error {
	r, err := i.Get(key)
	if err != nil {
		return err
	}

	db, err := getController(r.DatabaseName())
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	i.options.Apply(r)
	r.Meta().Delete()

	i.updateCache(r, true, 0)
	return db.Put(r)
}

// Query returns an iterator for all records whose key starts with the given
// prefix. The prefix must include the database name.
// Results are served directly from storage, not from the read cache.
func (i *Interface) Query(prefix string) (*iterator.Iterator, error) {
	dbName, dbKeyPrefix := record.ParseKey(prefix)

	db, err := getController(dbName)
	if err != nil {
		return nil, err
	}

	return db.Query(dbKeyPrefix)
}

// Purge deletes all records whose key starts with the given prefix. It
// returns the number of successful deletes and an error. The read cache is
// cleared, as it may hold purged records.
func (i *Interface) Purge(ctx context.Context, prefix string) (int, error) {
	dbName, dbKeyPrefix := record.ParseKey(prefix)

	db, err := getController(dbName)
	if err != nil {
		return 0, err
	}

	// Check if database is read only before we purge.
	if db.ReadOnly() {
		return 0, ErrReadOnly
	}

	n, err := db.Purge(ctx, dbKeyPrefix)
	i.clearCache()
	return n, err
}
