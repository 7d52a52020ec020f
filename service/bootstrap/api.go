package bootstrap

import (
	"net/http"
	"time"

	"github.com/safing/rdapd/base/api"
)

// Status describes the currently held bootstrap registry snapshot.
type Status struct {
	Loaded     bool
	FetchedAt  time.Time `json:",omitempty"`
	Age        string    `json:",omitempty"`
	Stale      bool
	MaxAge     string
	Registries map[string]RegistryStatus `json:",omitempty"`
}

// RegistryStatus describes one loaded registry.
type RegistryStatus struct {
	Version     string
	Publication string
	Entries     int
}

func registerAPIEndpoints(b *Bootstrap) error {
	if err := api.RegisterEndpoint(api.Endpoint{
		Path:        "bootstrap/status",
		MimeType:    api.MimeTypeJSON,
		Name:        "Bootstrap Registry Status",
		Description: "Returns the state of the locally held IANA bootstrap registries.",
		StructFunc: func(_ *api.Request) (interface{}, error) {
			return b.status(), nil
		},
	}); err != nil {
		return err
	}

	return api.RegisterEndpoint(api.Endpoint{
		Path:        "bootstrap/refresh",
		Method:      http.MethodPost,
		MimeType:    api.MimeTypeText,
		Name:        "Refresh Bootstrap Registries",
		Description: "Forces an immediate refresh of all bootstrap registries.",
		ActionFunc: func(_ *api.Request) (string, error) {
			if err := b.Refresh(); err != nil {
				return "", err
			}
			return "Bootstrap registries refreshed.", nil
		},
	})
}

func (b *Bootstrap) status() *Status {
	status := &Status{
		MaxAge: b.config.MaxAge.String(),
	}

	state := b.CurrentState()
	if state == nil {
		return status
	}

	status.Loaded = true
	status.FetchedAt = state.FetchedAt
	status.Age = state.Age().Round(time.Second).String()
	status.Stale = state.Age() >= b.config.MaxAge
	status.Registries = make(map[string]RegistryStatus, len(registryKinds))
	for _, kind := range registryKinds {
		reg := state.registry(kind)
		if reg == nil {
			continue
		}
		status.Registries[string(kind)] = RegistryStatus{
			Version:     reg.Version,
			Publication: reg.Publication,
			Entries:     len(reg.Entries),
		}
	}
	return status
}
