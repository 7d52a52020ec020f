// Package bootstrap maintains fresh local copies of the IANA RDAP bootstrap
// registries and maps queries to the authoritative RDAP server base URLs
// published in them.
package bootstrap

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/safing/rdapd/service/mgr"
)

// DefaultBaseURL is the well-known IANA location of the bootstrap registry
// files.
const DefaultBaseURL = "https://data.iana.org/rdap/"

const (
	defaultMaxAge         = 24 * time.Hour
	defaultRequestTimeout = 10 * time.Second

	refreshInterval = time.Hour
)

// Config configures the bootstrap registry module.
type Config struct {
	// BaseURL is where the bootstrap documents are published.
	BaseURL string

	// MaxAge is the snapshot age after which a refresh is due.
	MaxAge time.Duration

	// RequestTimeout bounds each document fetch.
	RequestTimeout time.Duration

	// UserAgent is sent with document fetches when set.
	UserAgent string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/") + "/"
	if c.MaxAge <= 0 {
		c.MaxAge = defaultMaxAge
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
}

// Bootstrap is the bootstrap registry module.
type Bootstrap struct {
	mgr      *mgr.Manager
	instance instance

	config     Config
	httpClient *http.Client

	state         atomic.Pointer[State]
	refreshFlight singleflight.Group

	refreshWorker *mgr.WorkerMgr
}

// Manager returns the module manager.
func (b *Bootstrap) Manager() *mgr.Manager {
	return b.mgr
}

// Start starts the module.
func (b *Bootstrap) Start() error {
	if err := registerMetrics(); err != nil {
		return err
	}
	if err := registerAPIEndpoints(b); err != nil {
		return err
	}

	// Keep the snapshot fresh and kick an initial load right away. An
	// initial failure is tolerated, the first lookup retries on demand.
	b.refreshWorker = b.mgr.NewWorkerMgr("registry refresh", b.refreshWorkerFunc, nil)
	b.refreshWorker.Repeat(refreshInterval)
	b.refreshWorker.Go()

	return nil
}

// Stop stops the module.
func (b *Bootstrap) Stop() error {
	return nil
}

func (b *Bootstrap) refreshWorkerFunc(w *mgr.WorkerCtx) error {
	_, err := b.EnsureFresh(w.Ctx(), false)
	return err
}

var (
	module     *Bootstrap
	shimLoaded atomic.Bool
)

// New returns a new bootstrap registry module.
func New(instance instance, config Config) (*Bootstrap, error) {
	if !shimLoaded.CompareAndSwap(false, true) {
		return nil, errors.New("only one instance allowed")
	}
	config.applyDefaults()

	m := mgr.New("Bootstrap")
	module = &Bootstrap{
		mgr:        m,
		instance:   instance,
		config:     config,
		httpClient: &http.Client{},
	}
	return module, nil
}

type instance interface{}
