package lookup

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/safing/rdapd/service/rdap"
)

// QueryKind is the kind of object a query refers to.
type QueryKind string

// Query kinds.
const (
	KindDomain QueryKind = "domain"
	KindIP     QueryKind = "ip"
	KindASN    QueryKind = "asn"
)

// classifiedQuery is a raw query after normalization. Exactly one of the
// kind-specific fields is set.
type classifiedQuery struct {
	kind   QueryKind
	domain string
	addr   netip.Addr
	asn    uint32
}

// classify decides whether the raw query is an IP address or a domain name,
// without any I/O. The address parse is authoritative: anything the address
// parser accepts is an IP query, even if it would also pass the domain
// checks. A query that is neither is rejected as invalid input.
func classify(rawQuery string) (*classifiedQuery, *rdap.StructuredError) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return nil, invalidInput("the query is empty")
	}

	if addr, err := netip.ParseAddr(query); err == nil {
		return &classifiedQuery{kind: KindIP, addr: addr.WithZone("")}, nil
	}

	if isDomainName(query) {
		return &classifiedQuery{kind: KindDomain, domain: strings.ToLower(query)}, nil
	}

	return nil, invalidInput(fmt.Sprintf("%q is neither an IP address nor a domain name", query))
}

// isDomainName reports whether the query looks like a domain name: only
// characters from [A-Za-z0-9.-], at least one dot, and neither a dot nor a
// hyphen at either end. This is a routing decision, not validation; the
// authoritative server is the judge of whether the name exists.
func isDomainName(query string) bool {
	if !strings.Contains(query, ".") {
		return false
	}
	switch query[0] {
	case '.', '-':
		return false
	}
	switch query[len(query)-1] {
	case '.', '-':
		return false
	}
	for i := 0; i < len(query); i++ {
		switch c := query[i]; {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}

func (q *classifiedQuery) String() string {
	switch q.kind {
	case KindDomain:
		return q.domain
	case KindIP:
		return q.addr.String()
	case KindASN:
		return "AS" + strconv.FormatUint(uint64(q.asn), 10)
	default:
		return string(q.kind)
	}
}

// objectKind returns the RDAP object class a response to this query must
// declare.
func (q *classifiedQuery) objectKind() rdap.ObjectKind {
	switch q.kind {
	case KindDomain:
		return rdap.ObjectDomain
	case KindIP:
		return rdap.ObjectIPNetwork
	case KindASN:
		return rdap.ObjectAutnum
	default:
		return ""
	}
}

func invalidInput(detail string) *rdap.StructuredError {
	return rdap.NewError(rdap.KindInvalidInput, "invalid query", detail)
}
