package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// RegistryKind identifies one of the IANA bootstrap registries. The kind
// doubles as the published file name (without extension).
type RegistryKind string

// Bootstrap registries.
const (
	RegistryDNS  RegistryKind = "dns"
	RegistryIPv4 RegistryKind = "ipv4"
	RegistryIPv6 RegistryKind = "ipv6"
	RegistryASN  RegistryKind = "asn"
)

var registryKinds = []RegistryKind{RegistryDNS, RegistryIPv4, RegistryIPv6, RegistryASN}

// ServiceEntry maps a set of match keys to the RDAP base URLs serving them.
// Base URLs keep their published order; scheme preference is applied at
// selection time, not at parse time.
type ServiceEntry struct {
	MatchKeys []string
	BaseURLs  []string

	// Parsed match keys, filled for the registry kinds they apply to.
	prefixes []netip.Prefix
	ranges   [][2]uint32
}

// Registry is one parsed bootstrap registry document.
type Registry struct {
	Kind        RegistryKind
	Version     string
	Publication string
	Entries     []*ServiceEntry

	// suffixes indexes dns entries by match key, first entry wins.
	suffixes map[string]*ServiceEntry
}

// State is an immutable snapshot of all four registries. It is replaced
// wholesale on refresh and must never be mutated.
type State struct {
	DNS  *Registry
	IPv4 *Registry
	IPv6 *Registry
	ASN  *Registry

	FetchedAt time.Time
}

// Age returns how long ago the snapshot was fetched.
func (s *State) Age() time.Duration {
	return time.Since(s.FetchedAt)
}

func (s *State) registry(kind RegistryKind) *Registry {
	switch kind {
	case RegistryDNS:
		return s.DNS
	case RegistryIPv4:
		return s.IPv4
	case RegistryIPv6:
		return s.IPv6
	case RegistryASN:
		return s.ASN
	default:
		return nil
	}
}

// bootstrapDocument is the published wire format: services is a list of
// two-element lists holding match keys and base URLs.
type bootstrapDocument struct {
	Version     string       `json:"version"`
	Publication string       `json:"publication"`
	Services    [][][]string `json:"services"`
}

// parseRegistry parses and validates one bootstrap registry document.
// Any malformed entry fails the whole document.
func parseRegistry(kind RegistryKind, data []byte) (*Registry, error) {
	doc := &bootstrapDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}

	// The format is versioned, only major version 1 is understood.
	docVersion, err := version.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid document version %q: %w", doc.Version, err)
	}
	if docVersion.Segments()[0] != 1 {
		return nil, fmt.Errorf("unsupported document version %q", doc.Version)
	}

	if doc.Services == nil {
		return nil, errors.New("document carries no services list")
	}

	reg := &Registry{
		Kind:        kind,
		Version:     doc.Version,
		Publication: doc.Publication,
		Entries:     make([]*ServiceEntry, 0, len(doc.Services)),
	}
	if kind == RegistryDNS {
		reg.suffixes = make(map[string]*ServiceEntry, len(doc.Services))
	}

	for i, service := range doc.Services {
		if len(service) != 2 {
			return nil, fmt.Errorf("service %d: expected a [keys, urls] pair, got %d elements", i, len(service))
		}
		matchKeys, baseURLs := service[0], service[1]
		if len(matchKeys) == 0 {
			return nil, fmt.Errorf("service %d: no match keys", i)
		}
		if len(baseURLs) == 0 {
			return nil, fmt.Errorf("service %d: no base URLs", i)
		}

		entry := &ServiceEntry{
			MatchKeys: matchKeys,
			BaseURLs:  make([]string, 0, len(baseURLs)),
		}

		// Normalize base URLs, preserving their published order.
		for _, baseURL := range baseURLs {
			entry.BaseURLs = append(entry.BaseURLs, strings.TrimRight(baseURL, "/"))
		}

		switch kind {
		case RegistryDNS:
			for _, key := range matchKeys {
				key = strings.ToLower(key)
				if _, ok := reg.suffixes[key]; !ok {
					reg.suffixes[key] = entry
				}
			}
		case RegistryIPv4, RegistryIPv6:
			for _, key := range matchKeys {
				prefix, err := netip.ParsePrefix(key)
				if err != nil {
					return nil, fmt.Errorf("service %d: invalid CIDR %q: %w", i, key, err)
				}
				entry.prefixes = append(entry.prefixes, prefix)
			}
		case RegistryASN:
			for _, key := range matchKeys {
				asnRange, err := parseASNRange(key)
				if err != nil {
					return nil, fmt.Errorf("service %d: invalid AS number range %q: %w", i, key, err)
				}
				entry.ranges = append(entry.ranges, asnRange)
			}
		}

		reg.Entries = append(reg.Entries, entry)
	}

	return reg, nil
}

// parseASNRange parses an AS number range of the form "N" or "N-M".
func parseASNRange(key string) ([2]uint32, error) {
	first, second, isRange := strings.Cut(key, "-")

	start, err := strconv.ParseUint(first, 10, 32)
	if err != nil {
		return [2]uint32{}, err
	}
	end := start
	if isRange {
		end, err = strconv.ParseUint(second, 10, 32)
		if err != nil {
			return [2]uint32{}, err
		}
	}
	if end < start {
		return [2]uint32{}, errors.New("descending range")
	}

	return [2]uint32{uint32(start), uint32(end)}, nil
}
