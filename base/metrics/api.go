package metrics

import (
	"io"
	"net/http"

	"github.com/safing/rdapd/base/api"
)

func registerAPI() error {
	api.RegisterHandler("/metrics", &metricsAPI{})

	if err := api.RegisterEndpoint(api.Endpoint{
		Name:        "Export Registered Metrics",
		Description: "List all registered metrics with their metadata.",
		Path:        "metrics/list",
		StructFunc: func(ar *api.Request) (any, error) {
			return ExportMetrics(), nil
		},
	}); err != nil {
		return err
	}

	if err := api.RegisterEndpoint(api.Endpoint{
		Name:        "Export Metric Values",
		Description: "List all exportable metric values.",
		Path:        "metrics/values",
		Parameters: []api.Parameter{{
			Method:      http.MethodGet,
			Field:       "internal-only",
			Description: "Specify to only return metrics with an alternative internal ID.",
		}},
		StructFunc: func(ar *api.Request) (any, error) {
			return ExportValues(
				ar.Request.URL.Query().Has("internal-only"),
			), nil
		},
	}); err != nil {
		return err
	}

	return nil
}

type metricsAPI struct{}

func (m *metricsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	WriteMetrics(w)
}

// WriteMetrics writes all registered metrics to the given writer.
func WriteMetrics(w io.Writer) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	// Write all metrics.
	for _, metric := range registry {
		metric.WritePrometheus(w)
	}
}
