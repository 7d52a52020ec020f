package lookup

import (
	"time"

	"github.com/safing/rdapd/base/metrics"
)

// Lookup status label values.
const (
	statusHit   = "hit"
	statusMiss  = "miss"
	statusError = "error"
)

var (
	lookupCounters map[string]*metrics.Counter
	invalidQueries *metrics.Counter
	lookupDuration *metrics.Histogram
)

func registerMetrics() error {
	kinds := []QueryKind{KindDomain, KindIP, KindASN}
	statuses := []string{statusHit, statusMiss, statusError}

	counters := make(map[string]*metrics.Counter, len(kinds)*len(statuses))
	for _, kind := range kinds {
		for _, status := range statuses {
			m, err := metrics.NewCounter(
				"lookups/total",
				map[string]string{"kind": string(kind), "status": status},
				&metrics.Options{
					Name:    "RDAP Lookups",
					Persist: true,
				},
			)
			if err != nil {
				return err
			}
			counters[lookupCounterKey(kind, status)] = m
		}
	}

	invalid, err := metrics.NewCounter(
		"lookups/invalid/total",
		nil,
		&metrics.Options{
			Name:    "Invalid Lookup Queries",
			Persist: true,
		},
	)
	if err != nil {
		return err
	}

	duration, err := metrics.NewHistogram(
		"lookups/duration/seconds",
		nil,
		&metrics.Options{
			Name: "RDAP Lookup Duration",
		},
	)
	if err != nil {
		return err
	}

	lookupCounters = counters
	invalidQueries = invalid
	lookupDuration = duration
	return nil
}

func lookupCounterKey(kind QueryKind, status string) string {
	return string(kind) + "/" + status
}

func countLookup(kind QueryKind, status string) {
	if m := lookupCounters[lookupCounterKey(kind, status)]; m != nil {
		m.Inc()
	}
}

func countInvalidQuery() {
	if invalidQueries != nil {
		invalidQueries.Inc()
	}
}

func recordLookupDuration(started time.Time) {
	if lookupDuration != nil {
		lookupDuration.UpdateDuration(started)
	}
}
