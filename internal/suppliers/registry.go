// Package suppliers talks to external supplier systems: product lookups
// and orders over their HTTP APIs, delivery reports via PDF parsing.
package suppliers

import (
	"fmt"
	"net/http"
	"time"

	"foobar/internal/config"

	"github.com/rs/zerolog"
)

// Registry resolves a supplier's internal name to its API client.
type Registry struct {
	clients map[string]*Client
}

func NewRegistry(cfgs []config.SupplierConfig, logger *zerolog.Logger) *Registry {
	clients := make(map[string]*Client, len(cfgs))
	for _, cfg := range cfgs {
		clients[cfg.InternalName] = NewClient(cfg, logger)
	}
	return &Registry{clients: clients}
}

func (r *Registry) Get(internalName string) (*Client, error) {
	client, ok := r.clients[internalName]
	if !ok {
		return nil, fmt.Errorf("unknown supplier: %s", internalName)
	}
	return client, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
