package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	netrunauth "github.com/Netrun-Systems/netrun-auth"
)

const namespace = "netrun_auth"

type metricsSource interface {
	MetricsSnapshot() netrunauth.MetricsSnapshot
}

// Collector adapts the engine's counter snapshot to the Prometheus
// collection model. Register it in an existing registry or use
// [Collector.Handler] for a standalone scrape endpoint.
type Collector struct {
	source metricsSource
	descs  map[string]*prometheus.Desc
}

// NewCollector builds a Collector reading from the given engine.
func NewCollector(engine *netrunauth.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource builds a Collector from any snapshot source.
func NewCollectorFromSource(source metricsSource) *Collector {
	descs := make(map[string]*prometheus.Desc)
	for _, id := range netrunauth.MetricIDs() {
		name := id.String()
		descs[name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", name+"_total"),
			id.Help(),
			nil, nil,
		)
	}
	return &Collector{source: source, descs: descs}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source.MetricsSnapshot()
	for name, value := range snap {
		desc, ok := c.descs[name]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value))
	}
}

// Handler returns a scrape handler backed by a private registry
// containing only this collector.
func (c *Collector) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
