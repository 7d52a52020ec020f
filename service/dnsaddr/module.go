// Package dnsaddr answers plain DNS address questions next to the RDAP
// lookup path. It is a thin wrapper around the system resolver, with none
// of the retry or server discovery logic of RDAP queries.
package dnsaddr

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/safing/rdapd/base/log"
	"github.com/safing/rdapd/service/mgr"
)

const defaultResolveTimeout = 5 * time.Second

// DNSAddr is the DNS address lookup module.
type DNSAddr struct {
	mgr      *mgr.Manager
	instance instance

	resolver *net.Resolver
	timeout  time.Duration
}

// Manager returns the module manager.
func (d *DNSAddr) Manager() *mgr.Manager {
	return d.mgr
}

// Start starts the module.
func (d *DNSAddr) Start() error {
	return registerAPIEndpoints(d)
}

// Stop stops the module.
func (d *DNSAddr) Stop() error {
	return nil
}

// Resolve returns the address records of the given host, as reported by the
// system resolver.
func (d *DNSAddr) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("host is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log.Tracer(ctx).Tracef("dnsaddr: resolving %s", host)
	addrs, err := d.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

var (
	module     *DNSAddr
	shimLoaded atomic.Bool
)

// New returns a new DNS address lookup module.
func New(instance instance, resolveTimeout time.Duration) (*DNSAddr, error) {
	if !shimLoaded.CompareAndSwap(false, true) {
		return nil, errors.New("only one instance allowed")
	}
	if resolveTimeout <= 0 {
		resolveTimeout = defaultResolveTimeout
	}

	m := mgr.New("DNSAddr")
	module = &DNSAddr{
		mgr:      m,
		instance: instance,
		resolver: &net.Resolver{},
		timeout:  resolveTimeout,
	}
	return module, nil
}

type instance interface{}
