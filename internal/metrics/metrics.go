package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foobar",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "foobar",
			Name:      "purchases_total",
			Help:      "Purchases by final status.",
		},
		[]string{"status"},
	)

	cardScans = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "foobar",
			Name:      "card_scans_total",
			Help:      "Card scans at the kiosk.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, purchases, cardScans)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncPurchase counts a purchase status transition.
func IncPurchase(status string) {
	purchases.WithLabelValues(status).Inc()
}

// IncCardScan counts one kiosk card scan.
func IncCardScan() {
	cardScans.Inc()
}
