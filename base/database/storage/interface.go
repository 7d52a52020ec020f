package storage

import (
	"context"

	"github.com/safing/rdapd/base/database/iterator"
	"github.com/safing/rdapd/base/database/record"
)

// Interface defines the database storage API.
type Interface interface {
	// Primary Interface
	Get(key string) (record.Record, error)
	Put(r record.Record) (record.Record, error)
	// PutNew stores a record only if no valid record exists for its key yet
	// and returns ErrAlreadyExists otherwise. The check and the write are
	// atomic with regard to concurrent PutNew calls.
	PutNew(r record.Record) (record.Record, error)
	Delete(key string) error
	Query(prefix string) (*iterator.Iterator, error)

	// Information and Control
	ReadOnly() bool
	Shutdown() error
}

// Purger defines the database storage API for backends that support the purge operation.
type Purger interface {
	Purge(ctx context.Context, prefix string) (int, error)
}
