package dnsaddr

import (
	"errors"
	"net"
	"net/http"
	"net/netip"

	"github.com/safing/rdapd/base/api"
)

// AddressRecords is the response to a DNS address question.
type AddressRecords struct {
	Host      string       `json:"host"`
	Addresses []netip.Addr `json:"addresses"`
}

func registerAPIEndpoints(d *DNSAddr) error {
	return api.RegisterEndpoint(api.Endpoint{
		Path:        "dns/{host}",
		MimeType:    api.MimeTypeJSON,
		Name:        "DNS Address Lookup",
		Description: "Resolves the address records of a host using the system resolver.",
		StructFunc: func(ar *api.Request) (interface{}, error) {
			host := ar.URLVars["host"]
			addrs, err := d.Resolve(ar.Context(), host)
			if err != nil {
				return nil, mapResolveError(err)
			}
			return &AddressRecords{Host: host, Addresses: addrs}, nil
		},
	})
}

// mapResolveError attaches the caller-facing HTTP status to a resolver
// failure.
func mapResolveError(err error) error {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return api.ErrorWithStatus(err, http.StatusNotFound)
	case errors.As(err, &dnsErr) && dnsErr.IsTimeout:
		return api.ErrorWithStatus(err, http.StatusGatewayTimeout)
	default:
		return api.ErrorWithStatus(err, http.StatusBadGateway)
	}
}
