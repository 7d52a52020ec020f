package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/safing/rdapd/base/database"
	"github.com/safing/rdapd/base/database/record"
	"github.com/safing/rdapd/base/log"
)

const (
	cacheKeyPrefix = "cache:rdap/"

	domainKeyPrefix = cacheKeyPrefix + "domain/"
	ipKeyPrefix     = cacheKeyPrefix + "ip/"
	asnKeyPrefix    = cacheKeyPrefix + "asn/"
)

var recordDatabase = database.NewInterface(&database.Options{
	// Cache records because hot names and blocks are queried repeatedly.
	CacheSize: 256,
})

// DomainRecord is a cached RDAP domain lookup result, keyed by the
// normalized domain name.
type DomainRecord struct {
	record.Base
	sync.Mutex

	Domain      string
	Payload     json.RawMessage
	FetchedFrom string
	FetchedAt   time.Time
}

// GetDomainRecord gets a cached domain record from the database.
func GetDomainRecord(domain string) (*DomainRecord, error) {
	r, err := recordDatabase.Get(domainKeyPrefix + domain)
	if err != nil {
		return nil, err
	}

	if r.IsWrapped() {
		newRec := &DomainRecord{}
		if err := record.Unwrap(r, newRec); err != nil {
			return nil, err
		}
		return newRec, nil
	}

	newRec, ok := r.(*DomainRecord)
	if !ok {
		return nil, fmt.Errorf("record not of type *DomainRecord, but %T", r)
	}
	return newRec, nil
}

// Save inserts the domain record into the lookup cache. It fails with
// database.ErrAlreadyExists when a concurrent query cached the domain first.
func (dr *DomainRecord) Save() error {
	if dr.Domain == "" {
		return errors.New("cannot save domain record without a domain")
	}

	dr.SetKey(domainKeyPrefix + dr.Domain)
	return recordDatabase.PutNew(dr)
}

// IPRecord is a cached RDAP ip network lookup result, keyed by the CIDR
// block the answering registry assigned the network.
type IPRecord struct {
	record.Base
	sync.Mutex

	CIDR        string
	Payload     json.RawMessage
	FetchedFrom string
	FetchedAt   time.Time
}

// FindIPRecord returns the most specific cached ip network record whose
// block contains the given address, or database.ErrNotFound when no cached
// block covers it.
func FindIPRecord(addr netip.Addr) (*IPRecord, error) {
	addr = addr.Unmap()

	it, err := recordDatabase.Query(ipKeyPrefix)
	if err != nil {
		return nil, err
	}

	var (
		best     record.Record
		bestBits = -1
	)
	for r := range it.Next {
		prefix, err := netip.ParsePrefix(strings.TrimPrefix(r.Key(), ipKeyPrefix))
		if err != nil {
			log.Warningf("lookup: cached ip record has unparsable key %s: %s", r.Key(), err)
			continue
		}
		if prefix.Contains(addr) && prefix.Bits() > bestBits {
			best = r
			bestBits = prefix.Bits()
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, database.ErrNotFound
	}

	if best.IsWrapped() {
		newRec := &IPRecord{}
		if err := record.Unwrap(best, newRec); err != nil {
			return nil, err
		}
		return newRec, nil
	}

	newRec, ok := best.(*IPRecord)
	if !ok {
		return nil, fmt.Errorf("record not of type *IPRecord, but %T", best)
	}
	return newRec, nil
}

// Save inserts the ip network record into the lookup cache. It fails with
// database.ErrAlreadyExists when a concurrent query cached the block first.
func (ir *IPRecord) Save() error {
	if ir.CIDR == "" {
		return errors.New("cannot save ip record without a CIDR block")
	}

	ir.SetKey(ipKeyPrefix + ir.CIDR)
	return recordDatabase.PutNew(ir)
}

// ASNRecord is a cached RDAP autnum lookup result, keyed by the AS number
// range the answering registry assigned.
type ASNRecord struct {
	record.Base
	sync.Mutex

	StartASN    uint32
	EndASN      uint32
	Payload     json.RawMessage
	FetchedFrom string
	FetchedAt   time.Time
}

// FindASNRecord returns the cached autnum record with the narrowest AS
// number range containing the given AS number, or database.ErrNotFound when
// no cached range covers it.
func FindASNRecord(asn uint32) (*ASNRecord, error) {
	it, err := recordDatabase.Query(asnKeyPrefix)
	if err != nil {
		return nil, err
	}

	var (
		best     record.Record
		bestSpan uint64
	)
	for r := range it.Next {
		start, end, err := parseASNKey(strings.TrimPrefix(r.Key(), asnKeyPrefix))
		if err != nil {
			log.Warningf("lookup: cached asn record has unparsable key %s: %s", r.Key(), err)
			continue
		}
		if asn < start || asn > end {
			continue
		}
		span := uint64(end-start) + 1
		if best == nil || span < bestSpan {
			best = r
			bestSpan = span
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, database.ErrNotFound
	}

	if best.IsWrapped() {
		newRec := &ASNRecord{}
		if err := record.Unwrap(best, newRec); err != nil {
			return nil, err
		}
		return newRec, nil
	}

	newRec, ok := best.(*ASNRecord)
	if !ok {
		return nil, fmt.Errorf("record not of type *ASNRecord, but %T", best)
	}
	return newRec, nil
}

// Save inserts the autnum record into the lookup cache. It fails with
// database.ErrAlreadyExists when a concurrent query cached the range first.
func (ar *ASNRecord) Save() error {
	if ar.EndASN < ar.StartASN {
		return errors.New("cannot save asn record with an inverted range")
	}

	ar.SetKey(asnKeyPrefix + makeASNKey(ar.StartASN, ar.EndASN))
	return recordDatabase.PutNew(ar)
}

func makeASNKey(start, end uint32) string {
	return strconv.FormatUint(uint64(start), 10) + "-" + strconv.FormatUint(uint64(end), 10)
}

func parseASNKey(key string) (start, end uint32, err error) {
	startStr, endStr, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, errors.New("not a range key")
	}
	start64, err := strconv.ParseUint(startStr, 10, 32)
	if err != nil {
		return 0, 0, err
	}
	end64, err := strconv.ParseUint(endStr, 10, 32)
	if err != nil {
		return 0, 0, err
	}
	if end64 < start64 {
		return 0, 0, errors.New("inverted range key")
	}
	return uint32(start64), uint32(end64), nil
}

// clearCache deletes all cached lookup results and returns how many were
// removed.
func clearCache(ctx context.Context) (int, error) {
	return recordDatabase.Purge(ctx, cacheKeyPrefix)
}
