// Package otel bridges the engine's counters to OpenTelemetry
// asynchronous instruments. Values are observed from the engine's
// snapshot on each collection cycle.
package otel
