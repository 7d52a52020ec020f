package hashmap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/safing/rdapd/base/database/iterator"
	"github.com/safing/rdapd/base/database/record"
	"github.com/safing/rdapd/base/database/storage"
)

// HashMap storage.
type HashMap struct {
	name   string
	db     map[string]record.Record
	dbLock sync.RWMutex
}

func init() {
	_ = storage.Register("hashmap", NewHashMap)
}

// NewHashMap creates a hashmap database.
func NewHashMap(name, location string) (storage.Interface, error) {
	return &HashMap{
		name: name,
		db:   make(map[string]record.Record),
	}, nil
}

// Get returns a database record.
func (hm *HashMap) Get(key string) (record.Record, error) {
	hm.dbLock.RLock()
	defer hm.dbLock.RUnlock()

	r, ok := hm.db[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r, nil
}

// Put stores a record in the database.
func (hm *HashMap) Put(r record.Record) (record.Record, error) {
	hm.dbLock.Lock()
	defer hm.dbLock.Unlock()

	hm.db[r.DatabaseKey()] = r
	return r, nil
}

// PutNew stores a record in the database, if no valid record exists for its
// key yet. The existence check and the write happen under the same lock, so
// concurrent inserts for the same key settle on exactly one winner.
func (hm *HashMap) PutNew(r record.Record) (record.Record, error) {
	hm.dbLock.Lock()
	defer hm.dbLock.Unlock()

	existing, ok := hm.db[r.DatabaseKey()]
	if ok && existing.Meta().CheckValidity() {
		return nil, storage.ErrAlreadyExists
	}
	// Expired or deleted records do not block the insert.

	hm.db[r.DatabaseKey()] = r
	return r, nil
}

// Delete deletes a record from the database.
func (hm *HashMap) Delete(key string) error {
	hm.dbLock.Lock()
	defer hm.dbLock.Unlock()

	delete(hm.db, key)
	return nil
}

// Query returns an iterator for all records whose database key starts with
// the given prefix.
func (hm *HashMap) Query(prefix string) (*iterator.Iterator, error) {
	queryIter := iterator.New()

	go hm.queryExecutor(queryIter, prefix)
	return queryIter, nil
}

func (hm *HashMap) queryExecutor(queryIter *iterator.Iterator, prefix string) {
	hm.dbLock.RLock()
	defer hm.dbLock.RUnlock()

	var err error

mapLoop:
	for key, record := range hm.db {
		record.Lock()
		if !strings.HasPrefix(key, prefix) ||
			!record.Meta().CheckValidity() {

			record.Unlock()
			continue
		}
		record.Unlock()

		select {
		case <-queryIter.Done:
			break mapLoop
		case queryIter.Next <- record:
		default:
			select {
			case <-queryIter.Done:
				break mapLoop
			case queryIter.Next <- record:
			case <-time.After(1 * time.Second):
				err = errors.New("query timeout")
				break mapLoop
			}
		}

	}

	queryIter.Finish(err)
}

// ReadOnly returns whether the database is read only.
func (hm *HashMap) ReadOnly() bool {
	return false
}

// Purge deletes all records that match the given prefix. It returns the
// number of successful deletes and an error.
func (hm *HashMap) Purge(ctx context.Context, prefix string) (int, error) {
	hm.dbLock.Lock()
	defer hm.dbLock.Unlock()

	var cnt int
	for key := range hm.db {
		// check if context is cancelled
		select {
		case <-ctx.Done():
			return cnt, ctx.Err()
		default:
		}

		if strings.HasPrefix(key, prefix) {
			delete(hm.db, key)
			cnt++
		}
	}

	return cnt, nil
}

// Shutdown shuts down the database.
func (hm *HashMap) Shutdown() error {
	return nil
}
