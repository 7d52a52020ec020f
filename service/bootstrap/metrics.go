package bootstrap

import (
	"github.com/safing/rdapd/base/metrics"
)

// Refresh result label values.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

var refreshCounters map[string]*metrics.Counter

func registerMetrics() error {
	results := []string{resultSuccess, resultFailure}
	byResult := make(map[string]*metrics.Counter, len(results))
	for _, result := range results {
		m, err := metrics.NewCounter(
			"bootstrap/refresh/total",
			map[string]string{"result": result},
			&metrics.Options{
				Name:    "Bootstrap Registry Refreshes",
				Persist: true,
			},
		)
		if err != nil {
			return err
		}
		byResult[result] = m
	}

	refreshCounters = byResult

	_, err := metrics.NewGauge(
		"bootstrap/registry/age/seconds",
		nil,
		registryAgeSeconds,
		&metrics.Options{
			Name: "Bootstrap Registry Age",
		},
	)
	return err
}

// registryAgeSeconds reports the age of the current snapshot, or -1 when no
// snapshot has loaded yet.
func registryAgeSeconds() float64 {
	if module == nil {
		return -1
	}
	state := module.CurrentState()
	if state == nil {
		return -1
	}
	return state.Age().Seconds()
}

func countRefresh(result string) {
	if m := refreshCounters[result]; m != nil {
		m.Inc()
	}
}
