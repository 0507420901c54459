package config

import "time"

// Default configuration values.
const (
	DefaultPeerListen  = "127.0.0.1:8136"
	DefaultMetricsAddr = "127.0.0.1:9100"

	DefaultSnapshotInterval = 10 * time.Second

	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultRetryMultiplier = 2.0
	DefaultRetryMaxDelay   = 5 * time.Second

	DefaultGossipBindAddr = "0.0.0.0"
	DefaultGossipBindPort = 8137

	DefaultWorkerCount     = 4
	DefaultWorkerQueueSize = 2048

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Peer: PeerSection{
			Listen:           DefaultPeerListen,
			SnapshotInterval: DefaultSnapshotInterval,
			Retry: RetrySection{
				Attempts:   DefaultRetryAttempts,
				Delay:      DefaultRetryDelay,
				Multiplier: DefaultRetryMultiplier,
				MaxDelay:   DefaultRetryMaxDelay,
			},
		},
		Gossip: GossipSection{
			BindAddr: DefaultGossipBindAddr,
			BindPort: DefaultGossipBindPort,
		},
		Worker: WorkerSection{
			Count:     DefaultWorkerCount,
			QueueSize: DefaultWorkerQueueSize,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
