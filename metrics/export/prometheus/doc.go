// Package prometheus bridges authrbac engine metrics into a Prometheus
// registry.
//
// [NewCollector] accepts an [authrbac.Engine] and implements
// prometheus.Collector over its metrics snapshot: every engine counter
// is exposed under its authrbac_*_total name plus
// authrbac_audit_dropped_total for dispatcher backpressure. [Handler]
// mounts the collector on a private registry and serves it with
// promhttp.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry — callers
//     choose the registry or mount the Handler.
//   - Mutate engine state.
package prometheus
