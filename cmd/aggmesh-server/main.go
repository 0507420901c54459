// Package main provides the entry point for aggmesh-server.
//
// aggmesh-server is the peer replication node of AggMesh, a clustered
// metrics aggregator. It accepts metric frames from peer nodes, folds
// them into sharded in-memory aggregation state, and broadcasts
// periodic snapshots of that state to every configured peer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/aggmesh/aggmesh-go/internal/infra/buildinfo"
	"github.com/aggmesh/aggmesh-go/internal/infra/confloader"
	"github.com/aggmesh/aggmesh-go/internal/infra/shutdown"
	"github.com/aggmesh/aggmesh-go/internal/peer"
	"github.com/aggmesh/aggmesh-go/internal/server/config"
	"github.com/aggmesh/aggmesh-go/internal/telemetry/logger"
	"github.com/aggmesh/aggmesh-go/internal/telemetry/metric"
	"github.com/aggmesh/aggmesh-go/internal/worker"
)

func main() {
	app := &cli.App{
		Name:    "aggmesh-server",
		Usage:   "clustered metrics aggregation node",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "peer replication listen address (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "peers",
				Usage: "static peer address, repeatable (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level: debug, info, warn, error (overrides config)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.SetDefault(log)

	if cfg.Node.ID == "" {
		cfg.Node.ID = ulid.Make().String()
	}
	log.Info("starting aggmesh-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"node_id", cfg.Node.ID,
		"config", c.String("config"))

	var sealer *peer.Sealer
	if cfg.Peer.Secret != "" {
		sealer, err = peer.NewSealer([]byte(cfg.Peer.Secret))
		if err != nil {
			return fmt.Errorf("init frame sealer: %w", err)
		}
		log.Info("peer frame encryption enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(context.Context) error {
		cancel()
		return nil
	})

	pool := worker.NewPool(cfg.Worker.Count, cfg.Worker.QueueSize, log)
	pool.Start(ctx)
	shutdownHandler.OnShutdown(func(context.Context) error {
		pool.Wait()
		return nil
	})

	peerSource, err := initPeerSource(cfg, log, shutdownHandler)
	if err != nil {
		return fmt.Errorf("init peer source: %w", err)
	}

	var clientBind *net.TCPAddr
	if cfg.Peer.ClientBind != "" {
		clientBind, err = net.ResolveTCPAddr("tcp", cfg.Peer.ClientBind)
		if err != nil {
			return fmt.Errorf("resolve peer.client_bind: %w", err)
		}
	}

	srv := peer.NewServer(peer.ServerConfig{
		Listen:    cfg.Peer.Listen,
		Sealer:    sealer,
		RateLimit: cfg.Peer.RateLimit,
	}, pool.Chans(), log)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down peer server")
		return srv.Shutdown(ctx)
	})

	snapshotter := peer.NewSnapshotter(peer.SnapshotterConfig{
		Interval: cfg.Peer.SnapshotInterval,
		Peers:    peerSource,
		Bind:     clientBind,
		Backoff: peer.Backoff{
			Delay:      cfg.Peer.Retry.Delay,
			Multiplier: cfg.Peer.Retry.Multiplier,
			MaxDelay:   cfg.Peer.Retry.MaxDelay,
			Retries:    cfg.Peer.Retry.Attempts,
		},
		Sealer: sealer,
	}, pool.Chans(), log)
	go func() {
		if err := snapshotter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("snapshot coordinator stopped", "error", err)
		}
	}()

	if cfg.Metrics.Addr != "" {
		startMetricsServer(cfg.Metrics.Addr, log, shutdownHandler)
	}
	if configFile := c.String("config"); configFile != "" {
		watchConfig(configFile, log, shutdownHandler)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("peer server listening", "addr", cfg.Peer.Listen)
		serveErr <- srv.Serve(ctx)
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- shutdownHandler.Wait()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = shutdownHandler.Run()
			return err
		}
		return <-waitErr
	case err := <-waitErr:
		if err != nil {
			log.Error("shutdown error", "error", err)
			return err
		}
		log.Info("server stopped gracefully")
		return nil
	}
}

// loadConfig merges defaults, file, environment and CLI flags, in that
// priority order, then validates the result.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	overrides := map[string]any{}
	if v := c.String("listen"); v != "" {
		overrides["peer.listen"] = v
	}
	if v := c.StringSlice("peers"); len(v) > 0 {
		overrides["peer.nodes"] = v
	}
	if v := c.String("log-level"); v != "" {
		overrides["log.level"] = v
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initPeerSource picks gossip discovery when configured, otherwise the
// static peer list resolved once at startup.
func initPeerSource(cfg *config.ServerConfig, log *slog.Logger, sh *shutdown.Handler) (peer.PeerSource, error) {
	if !cfg.Gossip.Enabled() {
		peers, err := peer.ResolvePeers(cfg.Peer.Nodes)
		if err != nil {
			return nil, err
		}
		log.Info("using static peer list", "peers", len(peers))
		return peers, nil
	}

	discovery, err := peer.NewDiscovery(peer.DiscoveryConfig{
		NodeID:          cfg.Node.ID,
		BindAddr:        cfg.Gossip.BindAddr,
		BindPort:        cfg.Gossip.BindPort,
		ReplicationAddr: cfg.Peer.Listen,
		Seeds:           cfg.Gossip.Seeds,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}
	sh.OnShutdown(func(context.Context) error {
		if err := discovery.Leave(); err != nil {
			return err
		}
		return discovery.Shutdown()
	})
	return discovery, nil
}

// startMetricsServer exposes the Prometheus endpoint.
func startMetricsServer(addr string, log *slog.Logger, sh *shutdown.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	sh.OnShutdown(func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})
}

// watchConfig reloads the log level when the config file changes. Other
// settings require a restart.
func watchConfig(path string, log *slog.Logger, sh *shutdown.Handler) {
	watcher, err := confloader.NewWatcher(log)
	if err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return
	}
	if err := watcher.Watch(path); err != nil {
		log.Warn("config watcher unavailable", "error", err)
		return
	}

	watcher.OnChange(func(changed string) {
		if filepath.Base(changed) != filepath.Base(path) {
			return
		}
		fresh := config.Default()
		if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(fresh); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if fresh.Log.Level != logger.Level() {
			logger.SetLevel(fresh.Log.Level)
			log.Info("log level changed", "level", fresh.Log.Level)
		}
	})
	watcher.StartAsync()
	sh.OnShutdown(func(context.Context) error {
		return watcher.Stop()
	})
}
