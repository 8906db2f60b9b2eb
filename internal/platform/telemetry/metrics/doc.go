// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Latency: request duration histograms by method and route
//   - Traffic: request counts by method, route and status
//   - Outcomes: lifecycle operation counts by operation and outcome
//
// # Integration
//
// Each Metrics value owns a Prometheus registry so servers and tests never
// share collectors. HTTP middleware records requests, and the lifecycle
// service reports outcomes through ObserveOperation. Handler exposes the
// registry in the Prometheus text format.
package metrics
