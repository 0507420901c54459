package peer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/aggmesh/aggmesh-go/internal/core/domain"
	"github.com/aggmesh/aggmesh-go/internal/telemetry/metric"
)

// Target is a resolved peer address plus an optional local bind
// address used to pin the egress interface of the outbound connection.
type Target struct {
	Addr *net.TCPAddr
	Bind *net.TCPAddr
}

// Sender transmits one snapshot to one peer. The connection carries
// exactly one frame and is then released; every round re-establishes a
// fresh connection, which bounds a half-open peer's blast radius to a
// single round.
type Sender struct {
	snapshot LocalSnapshot
	target   Target
	sealer   *Sealer
	logger   *slog.Logger
}

// NewSender creates a sender bound to a shared snapshot.
func NewSender(snapshot LocalSnapshot, target Target, sealer *Sealer, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		snapshot: snapshot,
		target:   target,
		sealer:   sealer,
		logger:   logger.With("peer", target.Addr.String()),
	}
}

// Send connects, writes one Snapshot frame with the flattened shard
// maps, and closes. Every failure increments the process-wide peer
// error counter before surfacing.
func (s *Sender) Send(ctx context.Context) error {
	start := time.Now()

	dialer := net.Dialer{}
	if s.target.Bind != nil {
		dialer.LocalAddr = s.target.Bind
	}

	conn, err := dialer.DialContext(ctx, "tcp", s.target.Addr.String())
	if err != nil {
		metric.PeerErrors.Inc()
		s.logger.Debug("snapshot connect failed", "error", err)
		return fmt.Errorf("connect %s: %w", s.target.Addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	enc := NewEncoder(conn, s.sealer)
	if err := enc.Encode(Snapshot(s.snapshot.Flatten())); err != nil {
		metric.PeerErrors.Inc()
		s.logger.Debug("snapshot send failed", "error", err)
		return fmt.Errorf("send snapshot to %s: %w", s.target.Addr, err)
	}

	metric.SendDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Flatten merges all shard maps into one ordered entry sequence.
func (s LocalSnapshot) Flatten() []domain.Entry {
	total := 0
	for _, shard := range s {
		total += len(shard)
	}
	entries := make([]domain.Entry, 0, total)
	for _, shard := range s {
		for name, rec := range shard {
			entries = append(entries, domain.Entry{Name: []byte(name), Record: rec})
		}
	}
	return entries
}
