package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/safing/rdapd/base/log"
	"github.com/safing/rdapd/service/rdap"
)

// FindDomain returns the service entry responsible for the given domain.
// Candidate suffixes are tried from the full name down to the final label,
// which makes the match inherently most-specific-first.
func (s *State) FindDomain(domain string) *ServiceEntry {
	if s.DNS == nil {
		return nil
	}

	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	labels := strings.Split(domain, ".")
	for i := range labels {
		if entry, ok := s.DNS.suffixes[strings.Join(labels[i:], ".")]; ok {
			return entry
		}
	}
	return nil
}

// FindIP returns the first service entry, in published registry order, with
// a prefix containing the given address. There is no most-specific
// selection for IP entries; the published registries are non-overlapping.
func (s *State) FindIP(addr netip.Addr) *ServiceEntry {
	addr = addr.Unmap()

	reg := s.IPv4
	if addr.Is6() {
		reg = s.IPv6
	}
	if reg == nil {
		return nil
	}

	for _, entry := range reg.Entries {
		for _, prefix := range entry.prefixes {
			if prefix.Contains(addr) {
				return entry
			}
		}
	}
	return nil
}

// FindASN returns the first service entry whose AS number range contains the
// given AS number.
func (s *State) FindASN(asn uint32) *ServiceEntry {
	if s.ASN == nil {
		return nil
	}

	for _, entry := range s.ASN.Entries {
		for _, asnRange := range entry.ranges {
			if asn >= asnRange[0] && asn <= asnRange[1] {
				return entry
			}
		}
	}
	return nil
}

// chooseBaseURL returns the preferred base URL of the entry: the first https
// URL in published order, falling back to the first http URL with a logged
// warning.
func chooseBaseURL(ctx context.Context, entry *ServiceEntry) (string, bool) {
	for _, baseURL := range entry.BaseURLs {
		if strings.HasPrefix(baseURL, "https://") {
			return baseURL, true
		}
	}
	for _, baseURL := range entry.BaseURLs {
		if strings.HasPrefix(baseURL, "http://") {
			log.Tracer(ctx).Warningf("bootstrap: no https endpoint published for %v, falling back to %s", entry.MatchKeys, baseURL)
			return baseURL, true
		}
	}
	return "", false
}

// ResolveDomain maps a domain query to its authoritative RDAP query URL.
func (s *State) ResolveDomain(ctx context.Context, domain string) (string, *rdap.StructuredError) {
	domain = strings.ToLower(domain)

	entry := s.FindDomain(domain)
	if entry == nil {
		return "", noServerKnown(fmt.Sprintf("no bootstrap registry entry matches %q", domain))
	}

	base, ok := chooseBaseURL(ctx, entry)
	if !ok {
		return "", noUsableEndpoint(entry)
	}
	return base + "/domain/" + url.PathEscape(domain), nil
}

// ResolveIP maps an IP query to its authoritative RDAP query URL.
func (s *State) ResolveIP(ctx context.Context, addr netip.Addr) (string, *rdap.StructuredError) {
	entry := s.FindIP(addr)
	if entry == nil {
		return "", noServerKnown(fmt.Sprintf("no bootstrap registry entry covers %s", addr))
	}

	base, ok := chooseBaseURL(ctx, entry)
	if !ok {
		return "", noUsableEndpoint(entry)
	}
	return base + "/ip/" + url.PathEscape(addr.Unmap().String()), nil
}

// ResolveASN maps an AS number query to its authoritative RDAP query URL.
func (s *State) ResolveASN(ctx context.Context, asn uint32) (string, *rdap.StructuredError) {
	entry := s.FindASN(asn)
	if entry == nil {
		return "", noServerKnown(fmt.Sprintf("no bootstrap registry entry covers AS%d", asn))
	}

	base, ok := chooseBaseURL(ctx, entry)
	if !ok {
		return "", noUsableEndpoint(entry)
	}
	return base + "/autnum/" + strconv.FormatUint(uint64(asn), 10), nil
}

// ResolveDomain refreshes the registries as needed and maps a domain query
// to its authoritative RDAP query URL.
func (b *Bootstrap) ResolveDomain(ctx context.Context, domain string) (string, *rdap.StructuredError) {
	state, err := b.EnsureFresh(ctx, false)
	if err != nil {
		return "", asStructuredError(err)
	}
	return state.ResolveDomain(ctx, domain)
}

// ResolveIP refreshes the registries as needed and maps an IP query to its
// authoritative RDAP query URL.
func (b *Bootstrap) ResolveIP(ctx context.Context, addr netip.Addr) (string, *rdap.StructuredError) {
	state, err := b.EnsureFresh(ctx, false)
	if err != nil {
		return "", asStructuredError(err)
	}
	return state.ResolveIP(ctx, addr)
}

// ResolveASN refreshes the registries as needed and maps an AS number query
// to its authoritative RDAP query URL.
func (b *Bootstrap) ResolveASN(ctx context.Context, asn uint32) (string, *rdap.StructuredError) {
	state, err := b.EnsureFresh(ctx, false)
	if err != nil {
		return "", asStructuredError(err)
	}
	return state.ResolveASN(ctx, asn)
}

func asStructuredError(err error) *rdap.StructuredError {
	var serr *rdap.StructuredError
	if errors.As(err, &serr) {
		return serr
	}
	return rdap.NewError(
		rdap.KindBootstrapUnavailable, "bootstrap registries unavailable",
	).WithCause(err)
}

func noServerKnown(detail string) *rdap.StructuredError {
	return rdap.NewError(rdap.KindNotFound, "no RDAP server known", detail)
}

func noUsableEndpoint(entry *ServiceEntry) *rdap.StructuredError {
	return rdap.NewError(
		rdap.KindNotFound, "no usable RDAP endpoint",
		fmt.Sprintf("the registry entry for %v publishes neither an https nor an http URL", entry.MatchKeys),
	)
}
