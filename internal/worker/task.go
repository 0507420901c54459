package worker

import "github.com/aggmesh/aggmesh-go/internal/core/domain"

// Shard is a point-in-time copy of one worker's aggregated state.
// Keys are string-converted metric names; arbitrary bytes survive the
// conversion.
type Shard map[string]domain.Record

// Task is a closed set of operations a worker accepts. The replication
// core routes tasks without interpreting their aggregation semantics.
type Task interface {
	task()
}

// AddMetric merges a single metric update.
type AddMetric struct {
	Name   []byte
	Record domain.Record
}

// AddMetrics merges a batch of independent updates.
type AddMetrics struct {
	Entries []domain.Entry
}

// AddSnapshot merges a full aggregated-state dump from a peer.
type AddSnapshot struct {
	Entries []domain.Entry
}

// TakeSnapshot requests a point-in-time copy of the shard state.
// The worker sends exactly one Shard on Reply and closes it.
type TakeSnapshot struct {
	Reply chan<- Shard
}

func (AddMetric) task()    {}
func (AddMetrics) task()   {}
func (AddSnapshot) task()  {}
func (TakeSnapshot) task() {}
