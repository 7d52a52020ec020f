package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/rdapd/service/mgr"
	"github.com/safing/rdapd/service/rdap"
)

func newTestBootstrap(t *testing.T, baseURL string) *Bootstrap {
	t.Helper()

	cfg := Config{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "rdapd-test",
	}
	cfg.applyDefaults()

	return &Bootstrap{
		mgr:        mgr.New("bootstrap test"),
		config:     cfg,
		httpClient: &http.Client{},
	}
}

func serveRegistryDoc(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()

	var doc string
	switch r.URL.Path {
	case "/dns.json":
		doc = dnsDoc
	case "/ipv4.json":
		doc = ipv4Doc
	case "/ipv6.json":
		doc = ipv6Doc
	case "/asn.json":
		doc = asnDoc
	default:
		t.Errorf("unexpected document request: %s", r.URL.Path)
		http.NotFound(w, r)
		return
	}
	_, _ = io.WriteString(w, doc)
}

func TestEnsureFreshLoadsOnceWhileFresh(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "rdapd-test", r.Header.Get("User-Agent"))
		serveRegistryDoc(t, w, r)
	}))
	defer srv.Close()

	b := newTestBootstrap(t, srv.URL)
	require.Nil(t, b.CurrentState())

	ctx := context.Background()
	state, err := b.EnsureFresh(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.EqualValues(t, 4, hits.Load())

	require.NotNil(t, state.DNS)
	require.NotNil(t, state.IPv4)
	require.NotNil(t, state.IPv6)
	require.NotNil(t, state.ASN)
	assert.Len(t, state.DNS.Entries, 3)
	assert.WithinDuration(t, time.Now(), state.FetchedAt, time.Minute)

	// A fresh snapshot is returned as is, without hitting the network.
	again, err := b.EnsureFresh(ctx, false)
	require.NoError(t, err)
	assert.Same(t, state, again)
	assert.EqualValues(t, 4, hits.Load())
}

func TestEnsureFreshIsAllOrNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/asn.json" {
			http.Error(w, "temporarily broken", http.StatusInternalServerError)
			return
		}
		serveRegistryDoc(t, w, r)
	}))
	defer srv.Close()

	b := newTestBootstrap(t, srv.URL)

	_, err := b.EnsureFresh(context.Background(), false)
	require.Error(t, err)

	var serr *rdap.StructuredError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, rdap.KindBootstrapUnavailable, serr.Kind)
	assert.Contains(t, err.Error(), "asn:")

	// One broken document must not leave a partial snapshot behind.
	assert.Nil(t, b.CurrentState())
}

func TestEnsureFreshServesStaleOnFailure(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "registry offline", http.StatusInternalServerError)
			return
		}
		serveRegistryDoc(t, w, r)
	}))
	defer srv.Close()

	b := newTestBootstrap(t, srv.URL)
	ctx := context.Background()

	state, err := b.EnsureFresh(ctx, false)
	require.NoError(t, err)

	// Expire the snapshot and break the upstream.
	state.FetchedAt = time.Now().Add(-25 * time.Hour)
	fail.Store(true)

	stale, err := b.EnsureFresh(ctx, false)
	require.NoError(t, err)
	assert.Same(t, state, stale)

	// A forced refresh reports the failure even though a snapshot remains.
	err = b.Refresh()
	require.Error(t, err)
	assert.Same(t, state, b.CurrentState())
}

func TestEnsureFreshCollapsesConcurrentRefreshes(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(10 * time.Millisecond)
		serveRegistryDoc(t, w, r)
	}))
	defer srv.Close()

	b := newTestBootstrap(t, srv.URL)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		states [8]*State
	)
	for i := range states {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := b.EnsureFresh(ctx, false)
			assert.NoError(t, err)
			states[i] = state
		}()
	}
	wg.Wait()

	// All callers share the single in-flight fetch.
	assert.EqualValues(t, 4, hits.Load())
	for _, state := range states {
		assert.Same(t, states[0], state)
	}
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	t.Parallel()

	const newPublication = "2025-06-01T00:00:00Z"

	var republished atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := httptest.NewRecorder()
		serveRegistryDoc(t, rec, r)

		doc := rec.Body.String()
		if republished.Load() {
			doc = strings.ReplaceAll(doc, "2024-01-07T10:11:12Z", newPublication)
		}
		_, _ = io.WriteString(w, doc)
	}))
	defer srv.Close()

	b := newTestBootstrap(t, srv.URL)
	ctx := context.Background()

	state, err := b.EnsureFresh(ctx, false)
	require.NoError(t, err)

	republished.Store(true)

	// Still fresh, so nothing is fetched.
	same, err := b.EnsureFresh(ctx, false)
	require.NoError(t, err)
	assert.Same(t, state, same)

	require.NoError(t, b.Refresh())
	replaced := b.CurrentState()
	require.NotNil(t, replaced)
	assert.NotSame(t, state, replaced)
	assert.Equal(t, newPublication, replaced.DNS.Publication)
}
