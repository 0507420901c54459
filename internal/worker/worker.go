package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aggmesh/aggmesh-go/internal/core/domain"
)

// Pool owns a fixed set of aggregation shards.
type Pool struct {
	chans  []chan Task
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewPool creates a pool with count shards and the given per-shard
// channel capacity.
func NewPool(count, queueSize int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	chans := make([]chan Task, count)
	for i := range chans {
		chans[i] = make(chan Task, queueSize)
	}
	return &Pool{chans: chans, logger: logger}
}

// Chans returns the task channels, one per shard. Senders may block on
// a full channel; that is the backpressure contract.
func (p *Pool) Chans() []chan Task {
	return p.chans
}

// Start launches the shard goroutines. They run until ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i, ch := range p.chans {
		p.wg.Add(1)
		go func(idx int, tasks <-chan Task) {
			defer p.wg.Done()
			p.runShard(ctx, idx, tasks)
		}(i, ch)
	}
}

// Wait blocks until every shard goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runShard(ctx context.Context, idx int, tasks <-chan Task) {
	state := make(Shard)
	log := p.logger.With("shard", idx)

	for {
		select {
		case <-ctx.Done():
			log.Debug("shard stopped", "entries", len(state))
			return
		case t := <-tasks:
			apply(state, t)
		}
	}
}

// apply mutates state for one task. Exhaustive over the Task set.
func apply(state Shard, t Task) {
	switch task := t.(type) {
	case AddMetric:
		merge(state, task.Name, task.Record)
	case AddMetrics:
		for _, e := range task.Entries {
			merge(state, e.Name, e.Record)
		}
	case AddSnapshot:
		for _, e := range task.Entries {
			merge(state, e.Name, e.Record)
		}
	case TakeSnapshot:
		copied := make(Shard, len(state))
		for k, v := range state {
			copied[k] = v
		}
		task.Reply <- copied
		close(task.Reply)
	}
}

func merge(state Shard, name []byte, rec domain.Record) {
	key := string(name)
	if existing, ok := state[key]; ok {
		state[key] = existing.Merge(rec)
		return
	}
	state[key] = rec
}
