package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provide(reg *prometheus.Registry) *Metrics {
	return New(reg)
}

var Module = fx.Module("metrics",
	fx.Provide(
		newRegistry,
		provide,
	),
)
