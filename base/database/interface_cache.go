package database

import (
	"time"

	"github.com/safing/rdapd/base/database/record"
)

// checkCache checks if the record exists in the read cache.
func (i *Interface) checkCache(key string) record.Record {
	// Check if cache is in use.
	if i.cache == nil {
		return nil
	}

	// Check if record exists in cache.
	cacheVal, err := i.cache.Get(key)
	if err == nil {
		r, ok := cacheVal.(record.Record)
		if ok {
			return r
		}
	}
	return nil
}

// updateCache updates the read cache. A ttl of 0 means the record does not
// expire. The record must not be locked when calling updateCache.
func (i *Interface) updateCache(r record.Record, remove bool, ttl int64) {
	// Check if cache is in use.
	if i.cache == nil {
		return
	}

	// Check if record should be removed from the cache.
	if remove {
		i.cache.Remove(r.Key())
		return
	}

	// Update cache with record.
	if ttl > 0 {
		_ = i.cache.SetWithExpire(
			r.Key(),
			r,
			time.Duration(ttl)*time.Second,
		)
	} else {
		_ = i.cache.Set(
			r.Key(),
			r,
		)
	}
}

// clearCache drops all entries from the read cache.
func (i *Interface) clearCache() {
	if i.cache == nil {
		return
	}
	i.cache.Purge()
}
