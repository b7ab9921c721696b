package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogCounter reports the number of base and overlay entries.
type CatalogCounter interface {
	Counts(ctx context.Context) (base, overlay int, err error)
}

// Collector samples catalog size at scrape time.
type Collector struct {
	source  CatalogCounter
	entries *prometheus.Desc
	up      *prometheus.Desc
}

// NewCollector creates a catalog collector reading from source.
func NewCollector(source CatalogCounter) *Collector {
	return &Collector{
		source: source,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "catalog", "entries"),
			"Catalog entries by layer",
			[]string{"layer"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "catalog", "overlay_readable"),
			"1 if the overlay could be read at the last scrape",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base, overlay, err := c.source.Counts(ctx)
	readable := 1.0
	if err != nil {
		readable = 0
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(base), "base")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(overlay), "overlay")
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, readable)
}
