// Package metric exposes Prometheus metrics for AggMesh.
//
// All collectors live on a process-local registry so tests never
// collide with the default global one. The peer replication core
// only ever increments; nothing in the hot path reads a metric.
package metric
