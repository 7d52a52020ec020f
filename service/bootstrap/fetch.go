package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/safing/rdapd/base/log"
	"github.com/safing/rdapd/service/rdap"
)

const maxDocumentSize = 20000000 // 20MB

// EnsureFresh returns the current registry snapshot, refreshing it first
// when none exists, it is older than the configured max age, or force is
// set. Concurrent refreshes collapse into a single in-flight fetch shared by
// all callers. When a refresh fails but an older snapshot exists, the stale
// snapshot is served with a logged warning; the hard error is reserved for
// the case that no snapshot has ever loaded.
func (b *Bootstrap) EnsureFresh(ctx context.Context, force bool) (*State, error) {
	state := b.state.Load()
	if state != nil && !force && state.Age() < b.config.MaxAge {
		return state, nil
	}

	refreshed, err := b.runRefresh(force)
	if err == nil {
		return refreshed, nil
	}

	// Serve stale: an old snapshot beats no snapshot.
	if state := b.state.Load(); state != nil {
		log.Tracer(ctx).Warningf(
			"bootstrap: refresh failed, serving stale snapshot from %s: %s",
			state.FetchedAt.Format(time.RFC3339), err,
		)
		return state, nil
	}

	return nil, rdap.NewError(
		rdap.KindBootstrapUnavailable,
		"RDAP bootstrap registries unavailable",
		"the IANA bootstrap registries could not be loaded and no previous snapshot exists",
	).WithCause(err)
}

// Refresh forces a registry refresh, bypassing the freshness check. Unlike
// EnsureFresh it surfaces the refresh error even when a stale snapshot
// remains available.
func (b *Bootstrap) Refresh() error {
	_, err := b.runRefresh(true)
	return err
}

// CurrentState returns the current snapshot without triggering I/O. It is
// nil before the first successful load.
func (b *Bootstrap) CurrentState() *State {
	return b.state.Load()
}

// runRefresh funnels all refreshes through one singleflight group. The
// fetch itself runs on the module context, detached from any caller.
func (b *Bootstrap) runRefresh(force bool) (*State, error) {
	v, err, _ := b.refreshFlight.Do("registries", func() (interface{}, error) {
		// Joining callers may have waited; re-check freshness.
		current := b.state.Load()
		if current != nil && !force && current.Age() < b.config.MaxAge {
			return current, nil
		}

		refreshed, err := b.fetchAll(b.mgr.Ctx())
		if err != nil {
			countRefresh(resultFailure)
			return nil, err
		}

		b.state.Store(refreshed)
		countRefresh(resultSuccess)
		b.mgr.Info(
			"bootstrap registries refreshed",
			"dns_entries", len(refreshed.DNS.Entries),
			"ipv4_entries", len(refreshed.IPv4.Entries),
			"ipv6_entries", len(refreshed.IPv6.Entries),
			"asn_entries", len(refreshed.ASN.Entries),
		)
		return refreshed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*State), nil //nolint:forcetypeassert
}

// fetchAll fetches and parses all four registry documents concurrently.
// All-or-nothing: any failing document fails the whole refresh and the
// failures are reported together.
func (b *Bootstrap) fetchAll(ctx context.Context) (*State, error) {
	var (
		results  = make(map[RegistryKind]*Registry, len(registryKinds))
		failures *multierror.Error
		lock     sync.Mutex
	)

	var g errgroup.Group
	for _, kind := range registryKinds {
		g.Go(func() error {
			reg, err := b.fetchDocument(ctx, kind)

			lock.Lock()
			defer lock.Unlock()
			if err != nil {
				err = fmt.Errorf("%s: %w", kind, err)
				failures = multierror.Append(failures, err)
				return err
			}
			results[kind] = reg
			return nil
		})
	}
	_ = g.Wait() // Failures are aggregated and checked below.

	if err := failures.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &State{
		DNS:       results[RegistryDNS],
		IPv4:      results[RegistryIPv4],
		IPv6:      results[RegistryIPv6],
		ASN:       results[RegistryASN],
		FetchedAt: time.Now(),
	}, nil
}

// fetchDocument fetches and parses a single registry document.
func (b *Bootstrap) fetchDocument(ctx context.Context, kind RegistryKind) (*Registry, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	defer cancel()

	docURL := b.config.BaseURL + string(kind) + ".json"
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, docURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request to %s: %w", docURL, err)
	}
	if b.config.UserAgent != "" {
		req.Header.Set("User-Agent", b.config.UserAgent)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed GET request to %s: %w", docURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %q from %s", resp.Status, docURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read document from %s: %w", docURL, err)
	}

	reg, err := parseRegistry(kind, data)
	if err != nil {
		return nil, fmt.Errorf("invalid document at %s: %w", docURL, err)
	}
	return reg, nil
}
