package rdap

import (
	"github.com/safing/rdapd/base/metrics"
)

// Attempt outcome label values.
const (
	outcomeSuccess      = "success"
	outcomeRedirect     = "redirect"
	outcomeNotFound     = "not_found"
	outcomeRateLimited  = "rate_limited"
	outcomeClientError  = "client_error"
	outcomeServerError  = "server_error"
	outcomeNetworkError = "network_error"
	outcomeBadShape     = "unexpected_shape"
	outcomeUnexpected   = "unexpected_status"
)

var (
	upstreamRequests  map[string]*metrics.Counter
	upstreamRetries   *metrics.Counter
	upstreamRedirects *metrics.Counter
)

// RegisterMetrics registers the upstream request metrics. Must be called
// after the metrics module has started. Without registration the client
// simply does not report.
func RegisterMetrics() error {
	outcomes := []string{
		outcomeSuccess,
		outcomeRedirect,
		outcomeNotFound,
		outcomeRateLimited,
		outcomeClientError,
		outcomeServerError,
		outcomeNetworkError,
		outcomeBadShape,
		outcomeUnexpected,
	}
	byOutcome := make(map[string]*metrics.Counter, len(outcomes))
	for _, outcome := range outcomes {
		m, err := metrics.NewCounter(
			"upstream/requests/total",
			map[string]string{"outcome": outcome},
			&metrics.Options{
				Name:    "Upstream RDAP Requests",
				Persist: true,
			},
		)
		if err != nil {
			return err
		}
		byOutcome[outcome] = m
	}

	retries, err := metrics.NewCounter(
		"upstream/retries/total", nil,
		&metrics.Options{
			Name:    "Upstream RDAP Retries",
			Persist: true,
		},
	)
	if err != nil {
		return err
	}

	redirects, err := metrics.NewCounter(
		"upstream/redirects/total", nil,
		&metrics.Options{
			Name:    "Upstream RDAP Redirects Followed",
			Persist: true,
		},
	)
	if err != nil {
		return err
	}

	upstreamRequests = byOutcome
	upstreamRetries = retries
	upstreamRedirects = redirects
	return nil
}

func countUpstreamRequest(outcome string) {
	if m := upstreamRequests[outcome]; m != nil {
		m.Inc()
	}
}

func countUpstreamRetry() {
	if upstreamRetries != nil {
		upstreamRetries.Inc()
	}
}

func countUpstreamRedirect() {
	if upstreamRedirects != nil {
		upstreamRedirects.Inc()
	}
}
