package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"

	"github.com/safing/rdapd/base/database"
	"github.com/safing/rdapd/base/log"
	"github.com/safing/rdapd/service/rdap"
)

// CacheStatus reports where a result came from.
type CacheStatus string

// Cache statuses.
const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
)

// Result is the outcome of a successfully answered lookup.
type Result struct {
	// Query is the normalized query the result answers.
	Query string `json:"query"`

	// Type is the kind of object the payload describes.
	Type QueryKind `json:"type"`

	// CacheStatus reports whether the payload was served from the lookup
	// cache or fetched live.
	CacheStatus CacheStatus `json:"cacheStatus"`

	// DomainRoot is the registrable domain of a domain query, if one could
	// be derived from the public suffix list.
	DomainRoot string `json:"domainRoot,omitempty"`

	// Payload is the raw RDAP object exactly as the authoritative server
	// returned it.
	Payload json.RawMessage `json:"payload"`
}

// Lookup answers a raw query, either from the lookup cache or by querying
// the authoritative RDAP server. Live results are written back to the cache
// best-effort. The returned error is always a *rdap.StructuredError.
func (l *Lookups) Lookup(ctx context.Context, rawQuery string) (*Result, error) {
	q, serr := classify(rawQuery)
	if serr != nil {
		countInvalidQuery()
		return nil, serr
	}
	return l.resolve(ctx, q)
}

// LookupASN answers a query for the given AS number, either from the lookup
// cache or by querying the authoritative RDAP server.
func (l *Lookups) LookupASN(ctx context.Context, asn uint32) (*Result, error) {
	return l.resolve(ctx, &classifiedQuery{kind: KindASN, asn: asn})
}

func (l *Lookups) resolve(ctx context.Context, q *classifiedQuery) (*Result, error) {
	started := time.Now()
	ctx, tracer := log.AddTracer(ctx)
	defer tracer.Submit()
	log.Tracer(ctx).Tracef("lookup: resolving %s query %s", q.kind, q)

	if result := l.checkCache(ctx, q); result != nil {
		log.Tracer(ctx).Debugf("lookup: answered %s from cache", q)
		countLookup(q.kind, statusHit)
		recordLookupDuration(started)
		return result, nil
	}

	result, serr := l.resolveLive(ctx, q)
	if serr != nil {
		log.Tracer(ctx).Warningf("lookup: %s query %s failed: %s", q.kind, q, serr)
		countLookup(q.kind, statusError)
		return nil, serr
	}

	countLookup(q.kind, statusMiss)
	recordLookupDuration(started)
	return result, nil
}

// checkCache serves the query from the lookup cache. Cache failures other
// than a plain miss are logged and treated as a miss, they never fail the
// query.
func (l *Lookups) checkCache(ctx context.Context, q *classifiedQuery) *Result {
	var (
		payload json.RawMessage
		err     error
	)
	switch q.kind {
	case KindDomain:
		var rec *DomainRecord
		if rec, err = GetDomainRecord(q.domain); err == nil {
			payload = rec.Payload
		}
	case KindIP:
		var rec *IPRecord
		if rec, err = FindIPRecord(q.addr); err == nil {
			payload = rec.Payload
			log.Tracer(ctx).Tracef("lookup: cached block %s covers %s", rec.CIDR, q.addr)
		}
	case KindASN:
		var rec *ASNRecord
		if rec, err = FindASNRecord(q.asn); err == nil {
			payload = rec.Payload
			log.Tracer(ctx).Tracef("lookup: cached range AS%d-AS%d covers %s", rec.StartASN, rec.EndASN, q)
		}
	default:
		return nil
	}

	switch {
	case err == nil:
		return l.newResult(ctx, q, CacheHit, payload)
	case errors.Is(err, database.ErrNotFound):
		return nil
	default:
		log.Tracer(ctx).Warningf("lookup: cache read for %s failed: %s", q, err)
		return nil
	}
}

// resolveLive locates the authoritative RDAP server, queries it and caches
// the result. Concurrent identical queries race to the cache; the loser's
// insert is discarded.
func (l *Lookups) resolveLive(ctx context.Context, q *classifiedQuery) (*Result, *rdap.StructuredError) {
	queryURL, serr := l.resolveQueryURL(ctx, q)
	if serr != nil {
		return nil, serr
	}
	log.Tracer(ctx).Tracef("lookup: querying %s", queryURL)

	// The query runs on the module context: a caller abandoning the request
	// does not stop upstream work that is already underway.
	resp, serr := l.client.Query(l.mgr.Ctx(), queryURL)
	if serr != nil {
		return nil, serr
	}
	if resp.Kind != q.objectKind() {
		return nil, rdap.NewError(
			rdap.KindUnexpectedResponseShape, "unexpected object class",
			fmt.Sprintf("queried for a %s object, but the server returned a %s object", q.objectKind(), resp.Kind),
		)
	}

	l.saveToCache(ctx, q, resp)
	return l.newResult(ctx, q, CacheMiss, resp.Payload), nil
}

func (l *Lookups) resolveQueryURL(ctx context.Context, q *classifiedQuery) (string, *rdap.StructuredError) {
	switch q.kind {
	case KindDomain:
		return l.locator.ResolveDomain(ctx, q.domain)
	case KindIP:
		return l.locator.ResolveIP(ctx, q.addr)
	case KindASN:
		return l.locator.ResolveASN(ctx, q.asn)
	default:
		return "", rdap.NewError(rdap.KindInternalError, "unhandled query kind", string(q.kind))
	}
}

// saveToCache derives the cache key from the response payload and inserts a
// new record. Losing the insert race to a concurrent identical query is
// expected; all other write failures are logged and swallowed. The caller
// serves the live payload either way.
func (l *Lookups) saveToCache(ctx context.Context, q *classifiedQuery, resp *rdap.Response) {
	var err error
	switch q.kind {
	case KindDomain:
		err = (&DomainRecord{
			Domain:      q.domain,
			Payload:     resp.Payload,
			FetchedFrom: resp.FetchedFrom,
			FetchedAt:   time.Now(),
		}).Save()

	case KindIP:
		prefix, ok := payloadCIDR(resp.Payload)
		if !ok {
			log.Tracer(ctx).Debugf("lookup: ip network payload for %s declares no usable block, not caching", q.addr)
			return
		}
		log.Tracer(ctx).Tracef("lookup: caching %s under block %s", q.addr, prefix)
		err = (&IPRecord{
			CIDR:        prefix.String(),
			Payload:     resp.Payload,
			FetchedFrom: resp.FetchedFrom,
			FetchedAt:   time.Now(),
		}).Save()

	case KindASN:
		start, end, ok := payloadASNRange(resp.Payload)
		if !ok {
			log.Tracer(ctx).Debugf("lookup: autnum payload for %s declares no usable range, not caching", q)
			return
		}
		err = (&ASNRecord{
			StartASN:    start,
			EndASN:      end,
			Payload:     resp.Payload,
			FetchedFrom: resp.FetchedFrom,
			FetchedAt:   time.Now(),
		}).Save()
	}

	switch {
	case err == nil:
	case errors.Is(err, database.ErrAlreadyExists):
		// A concurrent identical query won the insert race. Not an error,
		// the cached copy answers the same question.
		log.Tracer(ctx).Debugf("lookup: result for %s was already cached by a concurrent query", q)
	default:
		log.Tracer(ctx).Warningf("lookup: failed to cache result for %s: %s", q, err)
	}
}

// newResult assembles the caller-facing result, annotating domain results
// with their registrable domain root.
func (l *Lookups) newResult(ctx context.Context, q *classifiedQuery, status CacheStatus, payload json.RawMessage) *Result {
	result := &Result{
		Query:       q.String(),
		Type:        q.kind,
		CacheStatus: status,
		Payload:     payload,
	}

	if q.kind == KindDomain {
		root, err := publicsuffix.EffectiveTLDPlusOne(q.domain)
		if err != nil {
			// Happens for names that are themselves a public suffix, or
			// whose suffix is unlisted. The result is still served.
			log.Tracer(ctx).Debugf("lookup: no registrable domain root for %s: %s", q.domain, err)
		} else {
			result.DomainRoot = root
		}
	}
	return result
}

// payloadCIDR extracts the assigned CIDR block from an ip network payload:
// either the explicit cidr field, or the first block listed by the NRO
// cidr0 extension.
func payloadCIDR(payload []byte) (netip.Prefix, bool) {
	if cidr := gjson.GetBytes(payload, "cidr"); cidr.Exists() {
		if prefix, err := netip.ParsePrefix(cidr.String()); err == nil {
			return prefix, true
		}
	}

	first := gjson.GetBytes(payload, "cidr0_cidrs.0")
	if first.Exists() {
		addr := first.Get("v4prefix").String()
		if addr == "" {
			addr = first.Get("v6prefix").String()
		}
		length := first.Get("length")
		if addr != "" && length.Exists() {
			prefix, err := netip.ParsePrefix(addr + "/" + strconv.FormatInt(length.Int(), 10))
			if err == nil {
				return prefix, true
			}
		}
	}

	return netip.Prefix{}, false
}

// payloadASNRange extracts the assigned AS number range from an autnum
// payload. A missing endAutnum means the range is a single number.
func payloadASNRange(payload []byte) (start, end uint32, ok bool) {
	startField := gjson.GetBytes(payload, "startAutnum")
	if !startField.Exists() {
		return 0, 0, false
	}
	start = uint32(startField.Uint())

	end = start
	if endField := gjson.GetBytes(payload, "endAutnum"); endField.Exists() {
		end = uint32(endField.Uint())
	}
	if end < start {
		return 0, 0, false
	}
	return start, end, true
}
