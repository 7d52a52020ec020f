// Package service assembles the rdapd service from its modules.
package service

import (
	"fmt"

	"github.com/safing/rdapd/base/api"
	"github.com/safing/rdapd/base/database"
	"github.com/safing/rdapd/base/database/dbmodule"
	_ "github.com/safing/rdapd/base/database/storage/bbolt"
	"github.com/safing/rdapd/base/metrics"
	"github.com/safing/rdapd/service/bootstrap"
	"github.com/safing/rdapd/service/dnsaddr"
	"github.com/safing/rdapd/service/lookup"
	"github.com/safing/rdapd/service/mgr"
)

// Instance is an instance of the rdapd service.
type Instance struct {
	*mgr.Group

	config *Config

	database  *dbmodule.DBModule
	api       *api.API
	metrics   *metrics.Metrics
	bootstrap *bootstrap.Bootstrap
	lookups   *lookup.Lookups
	dnsaddr   *dnsaddr.DNSAddr
}

// New checks the config and returns a new service instance with all modules
// assembled, ready to be started.
func New(config *Config) (*Instance, error) {
	if err := config.Init(); err != nil {
		return nil, fmt.Errorf("check config: %w", err)
	}
	if err := registerDatabases(); err != nil {
		return nil, fmt.Errorf("register databases: %w", err)
	}
	if config.ListenAddress != "" {
		api.SetDefaultAPIListenAddress(config.ListenAddress)
	}

	// Create instance to pass it to modules.
	instance := &Instance{config: config}

	var err error
	instance.database, err = dbmodule.New(instance, config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create database module: %w", err)
	}
	instance.api, err = api.New(instance)
	if err != nil {
		return nil, fmt.Errorf("create api module: %w", err)
	}
	instance.metrics, err = metrics.New(instance)
	if err != nil {
		return nil, fmt.Errorf("create metrics module: %w", err)
	}
	instance.bootstrap, err = bootstrap.New(instance, bootstrap.Config{
		BaseURL:        config.BootstrapURL,
		MaxAge:         config.RegistryMaxAge,
		RequestTimeout: config.RequestTimeout,
		UserAgent:      config.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("create bootstrap module: %w", err)
	}
	instance.lookups, err = lookup.New(instance, lookup.Config{
		UserAgent:      config.UserAgent,
		RequestTimeout: config.RequestTimeout,
		MaxRetries:     config.MaxRetries,
		MaxRedirects:   config.MaxRedirects,
	})
	if err != nil {
		return nil, fmt.Errorf("create lookup module: %w", err)
	}
	instance.dnsaddr, err = dnsaddr.New(instance, config.DNSResolveTimeout)
	if err != nil {
		return nil, fmt.Errorf("create dnsaddr module: %w", err)
	}

	// Add all modules to instance group. Startup runs in this order, the
	// databases first, then the API surface, then everything that registers
	// metrics and endpoints.
	instance.Group = mgr.NewGroup(
		instance.database,
		instance.api,
		instance.metrics,
		instance.bootstrap,
		instance.lookups,
		instance.dnsaddr,
	)

	return instance, nil
}

func registerDatabases() error {
	// Holds persisted metrics.
	_, err := database.Register(&database.Database{
		Name:        "core",
		Description: "Holds core data, such as persisted metrics",
		StorageType: "bbolt",
	})
	if err != nil {
		return err
	}

	// Holds the lookup cache.
	_, err = database.Register(&database.Database{
		Name:        "cache",
		Description: "Cached RDAP lookup results",
		StorageType: "bbolt",
	})
	return err
}

// Config returns the config the instance was created with.
func (i *Instance) Config() *Config {
	return i.config
}

// DataDir returns the directory the instance keeps its variable data in.
func (i *Instance) DataDir() string {
	return i.config.DataDir
}

// Bootstrap returns the bootstrap registry module.
func (i *Instance) Bootstrap() *bootstrap.Bootstrap {
	return i.bootstrap
}

// Lookups returns the lookup module.
func (i *Instance) Lookups() *lookup.Lookups {
	return i.lookups
}

// DNSAddr returns the DNS address lookup module.
func (i *Instance) DNSAddr() *dnsaddr.DNSAddr {
	return i.dnsaddr
}

// API returns the api module.
func (i *Instance) API() *api.API {
	return i.api
}

// Metrics returns the metrics module.
func (i *Instance) Metrics() *metrics.Metrics {
	return i.metrics
}
