// Package prometheus exposes the engine's counters as a
// prometheus.Collector for registration in an existing registry, plus
// a self-contained scrape handler.
package prometheus
