package dnsaddr

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/rdapd/base/api"
	"github.com/safing/rdapd/service/mgr"
)

func TestMapResolveError(t *testing.T) {
	t.Parallel()

	var statusProvider api.HTTPStatusProvider

	err := mapResolveError(&net.DNSError{Err: "no such host", IsNotFound: true})
	require.ErrorAs(t, err, &statusProvider)
	assert.Equal(t, http.StatusNotFound, statusProvider.HTTPStatus())

	err = mapResolveError(&net.DNSError{Err: "i/o timeout", IsTimeout: true})
	require.ErrorAs(t, err, &statusProvider)
	assert.Equal(t, http.StatusGatewayTimeout, statusProvider.HTTPStatus())

	err = mapResolveError(&net.DNSError{Err: "server misbehaving"})
	require.ErrorAs(t, err, &statusProvider)
	assert.Equal(t, http.StatusBadGateway, statusProvider.HTTPStatus())
}

func TestResolveRejectsEmptyHost(t *testing.T) {
	t.Parallel()

	d := &DNSAddr{
		mgr:      mgr.New("dnsaddr test"),
		resolver: &net.Resolver{},
		timeout:  time.Second,
	}

	_, err := d.Resolve(context.Background(), "")
	assert.Error(t, err)

	_, err = d.Resolve(context.Background(), "   ")
	assert.Error(t, err)
}
