package api

import (
	"errors"
	"sync/atomic"

	"github.com/safing/rdapd/service/mgr"
)

// API is the HTTP API module.
type API struct {
	mgr      *mgr.Manager
	instance instance
}

// Manager returns the module manager.
func (api *API) Manager() *mgr.Manager {
	return api.mgr
}

// Start starts the module.
func (api *API) Start() error {
	return start()
}

// Stop stops the module.
func (api *API) Stop() error {
	return stop()
}

var (
	module     *API
	shimLoaded atomic.Bool
)

// New returns a new API module.
func New(instance instance) (*API, error) {
	if !shimLoaded.CompareAndSwap(false, true) {
		return nil, errors.New("only one instance allowed")
	}

	module = &API{
		mgr:      mgr.New("API"),
		instance: instance,
	}

	if err := prep(); err != nil {
		return nil, err
	}

	return module, nil
}

type instance interface {
	Ready() bool
}
