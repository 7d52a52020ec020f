// Package lookup orchestrates RDAP queries: it classifies raw queries,
// serves them from the lookup cache when a cached object covers them, and
// otherwise queries the authoritative RDAP server and writes the result
// back to the cache.
package lookup

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/safing/rdapd/service/bootstrap"
	"github.com/safing/rdapd/service/mgr"
	"github.com/safing/rdapd/service/rdap"
)

// Config configures the lookup module.
type Config struct {
	// UserAgent is sent with upstream RDAP requests when set.
	UserAgent string

	// RequestTimeout bounds every single upstream request attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of additional attempts after a failed first
	// one.
	MaxRetries int

	// MaxRedirects bounds the number of followed redirects per query.
	MaxRedirects int
}

// Lookups is the lookup module.
type Lookups struct {
	mgr      *mgr.Manager
	instance instance

	locator locator
	client  *rdap.Client
}

// locator maps classified queries to authoritative RDAP query URLs,
// refreshing the bootstrap registries as needed.
type locator interface {
	ResolveDomain(ctx context.Context, domain string) (string, *rdap.StructuredError)
	ResolveIP(ctx context.Context, addr netip.Addr) (string, *rdap.StructuredError)
	ResolveASN(ctx context.Context, asn uint32) (string, *rdap.StructuredError)
}

// Manager returns the module manager.
func (l *Lookups) Manager() *mgr.Manager {
	return l.mgr
}

// Start starts the module.
func (l *Lookups) Start() error {
	if err := registerMetrics(); err != nil {
		return err
	}
	if err := rdap.RegisterMetrics(); err != nil {
		return err
	}
	return registerAPIEndpoints(l)
}

// Stop stops the module.
func (l *Lookups) Stop() error {
	return nil
}

var (
	module     *Lookups
	shimLoaded atomic.Bool
)

// New returns a new lookup module.
func New(instance instance, config Config) (*Lookups, error) {
	if !shimLoaded.CompareAndSwap(false, true) {
		return nil, errors.New("only one instance allowed")
	}

	m := mgr.New("Lookups")
	module = &Lookups{
		mgr:      m,
		instance: instance,
		locator:  instance.Bootstrap(),
		client: rdap.NewClient(rdap.Config{
			UserAgent:      config.UserAgent,
			RequestTimeout: config.RequestTimeout,
			MaxRetries:     config.MaxRetries,
			MaxRedirects:   config.MaxRedirects,
		}),
	}
	return module, nil
}

type instance interface {
	Bootstrap() *bootstrap.Bootstrap
}
