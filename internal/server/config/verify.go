package config

import (
	"errors"
	"fmt"
	"net"
)

// MinSecretLength is the minimum peer secret length in bytes.
const MinSecretLength = 16

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyPeer(&cfg.Peer); err != nil {
		return err
	}
	if err := verifyWorker(&cfg.Worker); err != nil {
		return err
	}
	return nil
}

func verifyPeer(cfg *PeerSection) error {
	if cfg.Listen == "" {
		return errors.New("peer.listen is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("peer.listen: %w", err)
	}
	for _, node := range cfg.Nodes {
		if _, _, err := net.SplitHostPort(node); err != nil {
			return fmt.Errorf("peer.nodes entry %q: %w", node, err)
		}
	}
	if cfg.ClientBind != "" {
		if _, _, err := net.SplitHostPort(cfg.ClientBind); err != nil {
			return fmt.Errorf("peer.client_bind: %w", err)
		}
	}
	if cfg.SnapshotInterval <= 0 {
		return errors.New("peer.snapshot_interval must be positive")
	}
	if cfg.Secret != "" && len(cfg.Secret) < MinSecretLength {
		return fmt.Errorf("peer.secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.RateLimit < 0 {
		return errors.New("peer.rate_limit must not be negative")
	}
	return verifyRetry(&cfg.Retry)
}

func verifyRetry(cfg *RetrySection) error {
	if cfg.Attempts < 1 {
		return errors.New("peer.retry.attempts must be at least 1")
	}
	if cfg.Delay <= 0 {
		return errors.New("peer.retry.delay must be positive")
	}
	if cfg.Multiplier < 1 {
		return errors.New("peer.retry.multiplier must be at least 1")
	}
	if cfg.MaxDelay < cfg.Delay {
		return errors.New("peer.retry.max_delay must not be below peer.retry.delay")
	}
	return nil
}

func verifyWorker(cfg *WorkerSection) error {
	if cfg.Count < 1 {
		return errors.New("worker.count must be at least 1")
	}
	if cfg.QueueSize < 1 {
		return errors.New("worker.queue_size must be at least 1")
	}
	return nil
}
