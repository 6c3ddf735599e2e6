package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics counts where catalog reads were served from.
type CatalogMetrics struct {
	served *prometheus.CounterVec
}

func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	served := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_served_total",
		Help: "Catalog reads by source (primary, cache, stale_cache, fallback).",
	}, []string{"source"})
	reg.MustRegister(served)
	return &CatalogMetrics{served: served}
}

func (m *CatalogMetrics) IncServed(source string) {
	if m == nil || m.served == nil {
		return
	}
	m.served.WithLabelValues(normalizeLabel(source)).Inc()
}
