package bootstrap

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/rdapd/service/rdap"
)

const (
	dnsDoc = `{
		"version": "1.0",
		"publication": "2024-01-07T10:11:12Z",
		"services": [
			[["com", "net"], ["https://rdap.verisign.com/com/v1/"]],
			[["co.uk", "uk"], ["https://rdap.nominet.uk/uk/"]],
			[["example"], ["http://rdap.example.org/"]]
		]
	}`

	ipv4Doc = `{
		"version": "1.0",
		"publication": "2024-01-07T10:11:12Z",
		"services": [
			[["8.0.0.0/8", "9.0.0.0/8"], ["https://rdap.arin.net/registry/", "http://rdap.arin.net/registry/"]],
			[["41.0.0.0/8"], ["https://rdap.afrinic.net/rdap/"]]
		]
	}`

	ipv6Doc = `{
		"version": "1.0",
		"publication": "2024-01-07T10:11:12Z",
		"services": [
			[["2001:4860::/32"], ["https://rdap.arin.net/registry/"]],
			[["2a00::/12"], ["https://rdap.db.ripe.net/"]]
		]
	}`

	asnDoc = `{
		"version": "1.0",
		"publication": "2024-01-07T10:11:12Z",
		"services": [
			[["1-1876", "1902-2042"], ["https://rdap.arin.net/registry/"]],
			[["15475"], ["https://rdap.apnic.net/"]]
		]
	}`
)

func parseTestState(t *testing.T) *State {
	t.Helper()

	state := &State{FetchedAt: time.Now()}
	for _, doc := range []struct {
		kind RegistryKind
		data string
		dst  **Registry
	}{
		{RegistryDNS, dnsDoc, &state.DNS},
		{RegistryIPv4, ipv4Doc, &state.IPv4},
		{RegistryIPv6, ipv6Doc, &state.IPv6},
		{RegistryASN, asnDoc, &state.ASN},
	} {
		reg, err := parseRegistry(doc.kind, []byte(doc.data))
		require.NoError(t, err, "parsing %s document", doc.kind)
		*doc.dst = reg
	}
	return state
}

func TestParseRegistry(t *testing.T) {
	t.Parallel()

	reg, err := parseRegistry(RegistryDNS, []byte(dnsDoc))
	require.NoError(t, err)
	assert.Equal(t, "1.0", reg.Version)
	assert.Equal(t, "2024-01-07T10:11:12Z", reg.Publication)
	require.Len(t, reg.Entries, 3)

	// Trailing slashes are trimmed, published order is kept.
	assert.Equal(t, []string{"https://rdap.verisign.com/com/v1"}, reg.Entries[0].BaseURLs)
	assert.Equal(t, []string{"com", "net"}, reg.Entries[0].MatchKeys)

	// Match keys are indexed case insensitively.
	reg, err = parseRegistry(RegistryDNS, []byte(`{
		"version": "1.9.3",
		"services": [[["EXAMPLE"], ["https://rdap.example.org"]]]
	}`))
	require.NoError(t, err)
	assert.NotNil(t, reg.suffixes["example"])

	// An empty services list is a valid, if useless, document.
	reg, err = parseRegistry(RegistryASN, []byte(`{"version": "1.0", "services": []}`))
	require.NoError(t, err)
	assert.Empty(t, reg.Entries)
}

func TestParseRegistryRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		kind RegistryKind
		doc  string
	}{
		{"malformed json", RegistryDNS, `{`},
		{"unsupported version", RegistryDNS, `{"version": "2.0", "services": []}`},
		{"unparsable version", RegistryDNS, `{"version": "first", "services": []}`},
		{"missing services", RegistryDNS, `{"version": "1.0"}`},
		{"not a pair", RegistryDNS, `{"version": "1.0", "services": [[["com"]]]}`},
		{"no match keys", RegistryDNS, `{"version": "1.0", "services": [[[], ["https://example.org"]]]}`},
		{"no base urls", RegistryDNS, `{"version": "1.0", "services": [[["com"], []]]}`},
		{"invalid cidr", RegistryIPv4, `{"version": "1.0", "services": [[["8.0.0.0"], ["https://example.org"]]]}`},
		{"unparsable asn", RegistryASN, `{"version": "1.0", "services": [[["ten"], ["https://example.org"]]]}`},
		{"descending asn range", RegistryASN, `{"version": "1.0", "services": [[["10-5"], ["https://example.org"]]]}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseRegistry(tc.kind, []byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestFindDomain(t *testing.T) {
	t.Parallel()

	state := parseTestState(t)

	// Plain match on the final label.
	entry := state.FindDomain("example.com")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"com", "net"}, entry.MatchKeys)

	// Lookups ignore case and a trailing dot.
	entry = state.FindDomain("WWW.Example.NET.")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"com", "net"}, entry.MatchKeys)

	// The longest published suffix wins over a shorter one.
	entry = state.FindDomain("registry.co.uk")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"co.uk", "uk"}, entry.MatchKeys)
	entry = state.FindDomain("plain.uk")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"co.uk", "uk"}, entry.MatchKeys)

	// Unknown TLDs have no entry.
	assert.Nil(t, state.FindDomain("unknown.zz"))
}

func TestFindDomainFirstEntryWins(t *testing.T) {
	t.Parallel()

	reg, err := parseRegistry(RegistryDNS, []byte(`{
		"version": "1.0",
		"services": [
			[["dup"], ["https://first.example.org"]],
			[["dup"], ["https://second.example.org"]]
		]
	}`))
	require.NoError(t, err)

	state := &State{DNS: reg}
	entry := state.FindDomain("host.dup")
	require.NotNil(t, entry)
	assert.Equal(t, []string{"https://first.example.org"}, entry.BaseURLs)
}

func TestFindIP(t *testing.T) {
	t.Parallel()

	state := parseTestState(t)

	entry := state.FindIP(netip.MustParseAddr("8.8.8.8"))
	require.NotNil(t, entry)
	assert.Equal(t, []string{"8.0.0.0/8", "9.0.0.0/8"}, entry.MatchKeys)

	// IPv4-mapped IPv6 addresses match the IPv4 registry.
	entry = state.FindIP(netip.MustParseAddr("::ffff:41.1.2.3"))
	require.NotNil(t, entry)
	assert.Equal(t, []string{"41.0.0.0/8"}, entry.MatchKeys)

	entry = state.FindIP(netip.MustParseAddr("2001:4860:4860::8888"))
	require.NotNil(t, entry)
	assert.Equal(t, []string{"2001:4860::/32"}, entry.MatchKeys)

	assert.Nil(t, state.FindIP(netip.MustParseAddr("1.1.1.1")))
	assert.Nil(t, state.FindIP(netip.MustParseAddr("fe80::1")))
}

func TestFindIPFirstMatchInRegistryOrder(t *testing.T) {
	t.Parallel()

	// Published registries are non-overlapping; should entries overlap
	// anyway, the first one in published order wins.
	reg, err := parseRegistry(RegistryIPv4, []byte(`{
		"version": "1.0",
		"services": [
			[["193.0.0.0/8"], ["https://broad.example.org"]],
			[["193.0.0.0/21"], ["https://specific.example.org"]]
		]
	}`))
	require.NoError(t, err)

	state := &State{IPv4: reg}
	entry := state.FindIP(netip.MustParseAddr("193.0.6.139"))
	require.NotNil(t, entry)
	assert.Equal(t, []string{"https://broad.example.org"}, entry.BaseURLs)
}

func TestFindASN(t *testing.T) {
	t.Parallel()

	state := parseTestState(t)

	entry := state.FindASN(1000)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"1-1876", "1902-2042"}, entry.MatchKeys)

	// Second range of the same entry, including its bounds.
	require.NotNil(t, state.FindASN(1902))
	require.NotNil(t, state.FindASN(2042))

	// Single AS number entry.
	entry = state.FindASN(15475)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"15475"}, entry.MatchKeys)

	// Gaps between ranges do not match.
	assert.Nil(t, state.FindASN(1890))
	assert.Nil(t, state.FindASN(0))
	assert.Nil(t, state.FindASN(4200000000))
}

func TestChooseBaseURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// https is preferred regardless of published order.
	base, ok := chooseBaseURL(ctx, &ServiceEntry{
		BaseURLs: []string{"http://plain.example.org", "https://secure.example.org"},
	})
	require.True(t, ok)
	assert.Equal(t, "https://secure.example.org", base)

	// http alone is still used.
	base, ok = chooseBaseURL(ctx, &ServiceEntry{
		BaseURLs: []string{"http://plain.example.org"},
	})
	require.True(t, ok)
	assert.Equal(t, "http://plain.example.org", base)

	// Anything else is unusable.
	_, ok = chooseBaseURL(ctx, &ServiceEntry{
		BaseURLs: []string{"ftp://files.example.org"},
	})
	assert.False(t, ok)
}

func TestResolveQueryURLs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	state := parseTestState(t)

	queryURL, serr := state.ResolveDomain(ctx, "Example.COM")
	require.Nil(t, serr)
	assert.Equal(t, "https://rdap.verisign.com/com/v1/domain/example.com", queryURL)

	queryURL, serr = state.ResolveIP(ctx, netip.MustParseAddr("::ffff:8.8.8.8"))
	require.Nil(t, serr)
	assert.Equal(t, "https://rdap.arin.net/registry/ip/8.8.8.8", queryURL)

	queryURL, serr = state.ResolveASN(ctx, 15475)
	require.Nil(t, serr)
	assert.Equal(t, "https://rdap.apnic.net/autnum/15475", queryURL)

	// No registry entry means no server is known for the query.
	_, serr = state.ResolveDomain(ctx, "unknown.zz")
	require.NotNil(t, serr)
	assert.Equal(t, rdap.KindNotFound, serr.Kind)

	// The http fallback is used when no https endpoint is published.
	queryURL, serr = state.ResolveDomain(ctx, "host.example")
	require.Nil(t, serr)
	assert.Equal(t, "http://rdap.example.org/domain/host.example", queryURL)
}
