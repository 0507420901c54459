// Package worker runs the local aggregation shards.
//
// Each shard is one goroutine owning a private map of aggregated
// metrics, fed through a bounded task channel. The peer replication
// core never touches shard state directly: metric updates arrive as
// Add* tasks, and snapshots leave as point-in-time map copies through
// TakeSnapshot reply channels.
package worker
