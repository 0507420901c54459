package config

import "time"

// ServerConfig is the root configuration for aggmesh-server.
type ServerConfig struct {
	Node    NodeSection    `koanf:"node"`
	Peer    PeerSection    `koanf:"peer"`
	Gossip  GossipSection  `koanf:"gossip"`
	Worker  WorkerSection  `koanf:"worker"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// NodeSection identifies this node.
type NodeSection struct {
	// ID is the unique node identifier. A ULID is generated at startup
	// when empty.
	ID string `koanf:"id"`
}

// PeerSection configures the replication protocol.
type PeerSection struct {
	// Listen is the TCP address accepting inbound peer frames.
	Listen string `koanf:"listen"`

	// Nodes is the static peer list (host:port), resolved once at
	// startup. Ignored when gossip discovery is enabled.
	Nodes []string `koanf:"nodes"`

	// ClientBind optionally pins the local address of outbound
	// snapshot connections.
	ClientBind string `koanf:"client_bind"`

	// SnapshotInterval is the period between broadcast rounds.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// Secret enables frame encryption between peers when set.
	// All nodes must share the same value. Minimum 16 bytes.
	Secret string `koanf:"secret"`

	// RateLimit caps inbound frames per second per connection.
	// Zero disables limiting.
	RateLimit int `koanf:"rate_limit"`

	Retry RetrySection `koanf:"retry"`
}

// RetrySection configures per-peer send retries.
type RetrySection struct {
	// Attempts is the total number of send attempts per peer per round.
	Attempts int `koanf:"attempts"`

	// Delay is the wait before the second attempt.
	Delay time.Duration `koanf:"delay"`

	// Multiplier grows the delay geometrically between attempts.
	Multiplier float64 `koanf:"multiplier"`

	// MaxDelay caps the grown delay.
	MaxDelay time.Duration `koanf:"max_delay"`
}

// GossipSection configures memberlist-based peer discovery.
// Discovery is enabled when Seeds is non-empty or Bootstrap is true.
type GossipSection struct {
	// Seeds is the list of gossip addresses to join.
	Seeds []string `koanf:"seeds"`

	// Bootstrap starts a new cluster without joining seeds.
	Bootstrap bool `koanf:"bootstrap"`

	// BindAddr is the gossip bind address.
	BindAddr string `koanf:"bind_addr"`

	// BindPort is the gossip bind port.
	BindPort int `koanf:"bind_port"`
}

// Enabled reports whether gossip discovery should run.
func (g GossipSection) Enabled() bool {
	return g.Bootstrap || len(g.Seeds) > 0
}

// WorkerSection configures the local aggregation worker pool.
type WorkerSection struct {
	// Count is the number of worker shards.
	Count int `koanf:"count"`

	// QueueSize is the per-worker task channel capacity.
	QueueSize int `koanf:"queue_size"`
}

// MetricsSection configures the observability endpoint.
type MetricsSection struct {
	// Addr is the Prometheus exposition listen address. Empty
	// disables the endpoint.
	Addr string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
