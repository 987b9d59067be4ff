package adapters

import (
	"github.com/edmarket/coursepay/internal/payment/domain"
)

// Registry resolves provider adapters by name. Providers without
// configured credentials are simply absent.
type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(list []domain.Adapter) *Registry {
	m := make(map[string]domain.Adapter, len(list))
	for _, a := range list {
		m[a.Provider()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(provider string) (domain.Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return a, nil
}

func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
