// Package dbmodule wraps the database system in a module, tying its
// initialization and shutdown to the instance lifecycle.
package dbmodule

import (
	"errors"
	"sync/atomic"

	"github.com/safing/rdapd/base/database"
	"github.com/safing/rdapd/service/mgr"
)

// DBModule is the database module.
type DBModule struct {
	mgr      *mgr.Manager
	instance instance

	location string
}

// Manager returns the module manager.
func (dbm *DBModule) Manager() *mgr.Manager {
	return dbm.mgr
}

// Start starts the module.
func (dbm *DBModule) Start() error {
	return database.Initialize(dbm.location)
}

// Stop stops the module.
func (dbm *DBModule) Stop() error {
	return database.Shutdown()
}

var (
	module     *DBModule
	shimLoaded atomic.Bool
)

// New returns a new database module that keeps its databases at the given
// location.
func New(instance instance, location string) (*DBModule, error) {
	if !shimLoaded.CompareAndSwap(false, true) {
		return nil, errors.New("only one instance allowed")
	}
	if location == "" {
		return nil, errors.New("database location not specified")
	}

	m := mgr.New("DBModule")
	module = &DBModule{
		mgr:      m,
		instance: instance,
		location: location,
	}
	return module, nil
}

type instance interface{}
