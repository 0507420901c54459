package peer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aggmesh/aggmesh-go/internal/telemetry/metric"
	"github.com/aggmesh/aggmesh-go/internal/worker"
)

// LocalSnapshot is the state of all non-empty worker shards captured
// at one coordinator tick. It is immutable once built and shared by
// reference across every peer send of that round.
type LocalSnapshot []worker.Shard

// PeerSource supplies the peer addresses for a broadcast round.
// Static configuration and gossip discovery both implement it.
type PeerSource interface {
	Peers() []*net.TCPAddr
}

// StaticPeers is a fixed peer set resolved once at startup.
type StaticPeers []*net.TCPAddr

// Peers implements PeerSource.
func (s StaticPeers) Peers() []*net.TCPAddr {
	return s
}

// ResolvePeers resolves a static host:port list. Resolution happens
// once; DNS changes require a restart.
func ResolvePeers(nodes []string) (StaticPeers, error) {
	peers := make(StaticPeers, 0, len(nodes))
	for _, node := range nodes {
		addr, err := net.ResolveTCPAddr("tcp", node)
		if err != nil {
			return nil, fmt.Errorf("resolve peer %q: %w", node, err)
		}
		peers = append(peers, addr)
	}
	return peers, nil
}

// Snapshotter drives one broadcast round per timer tick: gather a
// consistent snapshot from every worker (a barrier), then send it to
// every peer concurrently and independently under the retry policy.
type Snapshotter struct {
	interval time.Duration
	peers    PeerSource
	bind     *net.TCPAddr
	chans    []chan worker.Task
	backoff  Backoff
	sealer   *Sealer
	logger   *slog.Logger
}

// SnapshotterConfig configures a Snapshotter.
type SnapshotterConfig struct {
	Interval time.Duration
	Peers    PeerSource
	// Bind optionally pins the local address of outbound connections.
	Bind    *net.TCPAddr
	Backoff Backoff
	Sealer  *Sealer
}

// NewSnapshotter creates a snapshot coordinator over the given worker
// channels.
func NewSnapshotter(cfg SnapshotterConfig, chans []chan worker.Task, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		interval: cfg.Interval,
		peers:    cfg.Peers,
		bind:     cfg.Bind,
		chans:    chans,
		backoff:  cfg.Backoff,
		sealer:   cfg.Sealer,
		logger:   logger.With("source", "peer-client"),
	}
}

// Run ticks until ctx is done. A round still sending when the next
// tick fires overlaps with the new round; the timer is never blocked.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			go s.Round(ctx)
		}
	}
}

// Round executes one gather-then-broadcast cycle and returns once
// every peer send has succeeded or exhausted its retries. An aborted
// gather leaves every peer untouched; the next tick runs
// independently.
func (s *Snapshotter) Round(ctx context.Context) {
	metric.SnapshotRounds.Inc()

	snapshot, err := s.gather(ctx)
	if err != nil {
		metric.RoundAborts.Inc()
		metric.PeerErrors.Inc()
		s.logger.Warn("snapshot round aborted", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, addr := range s.peers.Peers() {
		sender := NewSender(snapshot, Target{Addr: addr, Bind: s.bind}, s.sealer, s.logger)
		wg.Add(1)
		go func(addr *net.TCPAddr) {
			defer wg.Done()
			if err := s.backoff.Run(ctx, sender.Send); err != nil {
				s.logger.Warn("peer send abandoned after giving up",
					"peer", addr.String(),
					"attempts", s.backoff.Retries,
					"error", err)
			}
		}(addr)
	}
	wg.Wait()
}

// gather is the consistency barrier: every worker must reply with its
// point-in-time shard before anything is broadcast. All requests are
// issued before any reply is awaited. Empty shards are filtered out.
func (s *Snapshotter) gather(ctx context.Context) (LocalSnapshot, error) {
	shards := make([]worker.Shard, len(s.chans))

	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range s.chans {
		reply := make(chan worker.Shard, 1)
		g.Go(func() error {
			select {
			case ch <- worker.TakeSnapshot{Reply: reply}:
			case <-gctx.Done():
				return fmt.Errorf("%w: shard %d unreachable", ErrTaskSend, i)
			}
			select {
			case shard, ok := <-reply:
				if !ok {
					return fmt.Errorf("%w: shard %d dropped its reply", ErrTaskSend, i)
				}
				shards[i] = shard
				return nil
			case <-gctx.Done():
				return fmt.Errorf("%w: shard %d never replied", ErrTaskSend, i)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := make(LocalSnapshot, 0, len(shards))
	for _, shard := range shards {
		if len(shard) > 0 {
			snapshot = append(snapshot, shard)
		}
	}
	return snapshot, nil
}
