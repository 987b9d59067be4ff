package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CheckoutTotal       *prometheus.CounterVec
	WebhookEventsTotal  *prometheus.CounterVec
	ReconcileTotal      *prometheus.CounterVec
	GatewayRequestsOpen prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursepay",
			Name:      "checkout_total",
			Help:      "Checkout attempts by gateway and result.",
		}, []string{"gateway", "result"}),
		WebhookEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursepay",
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by provider and disposition.",
		}, []string{"provider", "disposition"}),
		ReconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursepay",
			Name:      "reconcile_total",
			Help:      "Reconciliation passes by outcome and result.",
		}, []string{"outcome", "result"}),
		GatewayRequestsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coursepay",
			Name:      "gateway_requests_open",
			Help:      "In-flight calls to payment providers.",
		}),
	}
	reg.MustRegister(
		m.CheckoutTotal,
		m.WebhookEventsTotal,
		m.ReconcileTotal,
		m.GatewayRequestsOpen,
	)
	return m
}
