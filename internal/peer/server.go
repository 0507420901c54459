package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/aggmesh/aggmesh-go/internal/telemetry/metric"
	"github.com/aggmesh/aggmesh-go/internal/worker"
)

// ServerConfig holds the inbound server configuration.
type ServerConfig struct {
	// Listen is the TCP address accepting peer connections.
	Listen string
	// Sealer decrypts inbound frames when peers share a secret.
	Sealer *Sealer
	// RateLimit caps decoded frames per second per connection.
	// Zero disables limiting.
	RateLimit int
	// MaxFrameBytes overrides the decoder traversal limit (0 = default).
	MaxFrameBytes uint64
}

// Server accepts peer connections and fans decoded frames into the
// local worker shards. Connection failures are isolated and logged;
// only a listener failure ends Serve.
type Server struct {
	cfg     ServerConfig
	chans   []chan worker.Task
	logger  *slog.Logger
	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates an inbound replication server.
func NewServer(cfg ServerConfig, chans []chan worker.Task, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		chans:  chans,
		logger: logger.With("source", "peer-server", "listen", cfg.Listen),
	}
}

// Serve binds the listen address and accepts connections until the
// listener fails or ctx is done. A bind failure is fatal and returned
// to the caller.
func (s *Server) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("peer server bind %s: %w", s.cfg.Listen, err)
	}
	s.ln = ln
	s.running.Store(true)

	go func() {
		<-ctx.Done()
		s.running.Store(false)
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("peer server gone", "error", err)
			return fmt.Errorf("peer server accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Addr returns the bound listener address, or nil before Serve binds.
// Useful when the configured listen port is 0.
func (s *Server) Addr() net.Addr {
	if !s.running.Load() || s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown closes the listener and waits for per-connection goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	if s.ln != nil {
		_ = s.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serveConn decodes one peer connection. Each connection gets a fresh
// round-robin cursor over the worker channels; dispatch order never
// depends on message content.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote := "[unconnected]"
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	log := s.logger.With("remote", remote)

	opts := []DecoderOption{
		WithBadRecordFunc(func(err error) {
			metric.BadRecords.Inc()
			log.Warn("bad incoming record", "error", err)
		}),
	}
	if s.cfg.Sealer != nil {
		opts = append(opts, WithSealer(s.cfg.Sealer))
	}
	if s.cfg.MaxFrameBytes > 0 {
		opts = append(opts, WithMaxFrameBytes(s.cfg.MaxFrameBytes))
	}
	dec := NewDecoder(conn, opts...)

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateLimit)
	}

	next := 0
	for {
		msg, err := dec.Decode()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, ErrBadRecord):
				// One undecodable single-metric frame; the stream is
				// still aligned, keep the connection.
				metric.BadRecords.Inc()
				log.Warn("bad incoming message", "error", err)
				continue
			default:
				log.Warn("peer connection error", "error", err)
				return
			}
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		metric.FramesReceived.WithLabelValues(msg.Kind.String()).Inc()

		ch := s.chans[next%len(s.chans)]
		next++

		task, err := taskFor(msg)
		if err != nil {
			log.Warn("bad incoming message", "error", err)
			return
		}
		if !s.dispatch(ctx, log, ch, task) {
			return
		}
	}
}

// dispatch hands one task to a worker. A full channel blocks the read
// loop, applying backpressure to this connection only; a shutdown (ctx
// done) drops the task and ends the connection.
func (s *Server) dispatch(ctx context.Context, log *slog.Logger, ch chan<- worker.Task, task worker.Task) bool {
	select {
	case ch <- task:
		return true
	case <-ctx.Done():
		metric.TasksDropped.Inc()
		log.Warn("task dropped", "error", ErrTaskSend)
		return false
	}
}

// taskFor maps a message variant onto its worker task. Exhaustive
// over the protocol kinds.
func taskFor(msg Message) (worker.Task, error) {
	switch msg.Kind {
	case KindSingle:
		return worker.AddMetric{Name: msg.Entries[0].Name, Record: msg.Entries[0].Record}, nil
	case KindMulti:
		return worker.AddMetrics{Entries: msg.Entries}, nil
	case KindSnapshot:
		return worker.AddSnapshot{Entries: msg.Entries}, nil
	default:
		return nil, fmt.Errorf("%w: undispatchable kind %d", ErrProtocol, msg.Kind)
	}
}
