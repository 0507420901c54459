package peer

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/hashicorp/memberlist"
)

// Discovery supplies the peer set from gossip membership instead of a
// static list. Each member advertises its replication listen address
// as node metadata; Peers returns those addresses for everyone but the
// local node.
type Discovery struct {
	config     *memberlist.Config
	memberList *memberlist.Memberlist
	nodeID     string
	logger     *slog.Logger
	shutdown   bool
}

// DiscoveryConfig configures gossip membership.
type DiscoveryConfig struct {
	// NodeID is the unique node identifier.
	NodeID string

	// BindAddr is the gossip bind address.
	BindAddr string

	// BindPort is the gossip bind port.
	BindPort int

	// ReplicationAddr is this node's peer listen address, shared with
	// other nodes through gossip metadata.
	ReplicationAddr string

	// Seeds are the initial nodes to join. Empty bootstraps a new
	// cluster.
	Seeds []string

	// Logger for logging.
	Logger *slog.Logger
}

// NewDiscovery starts gossip membership and joins the seed nodes.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.Delegate = &metadataDelegate{replicationAddr: []byte(cfg.ReplicationAddr)}
	mlConfig.LogOutput = &slogWriter{logger: cfg.Logger}

	d := &Discovery{
		config: mlConfig,
		nodeID: cfg.NodeID,
		logger: cfg.Logger,
	}
	mlConfig.Events = &eventDelegate{discovery: d}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			_ = ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined cluster",
			"node_id", cfg.NodeID,
			"seeds", cfg.Seeds,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started discovery (bootstrap mode)", "node_id", cfg.NodeID)
	}

	return d, nil
}

// Peers implements PeerSource. Members without a resolvable
// replication address are skipped.
func (d *Discovery) Peers() []*net.TCPAddr {
	if d.memberList == nil {
		return nil
	}

	members := d.memberList.Members()
	peers := make([]*net.TCPAddr, 0, len(members))
	for _, m := range members {
		if m.Name == d.nodeID {
			continue
		}
		replAddr := string(m.Meta)
		if replAddr == "" {
			d.logger.Warn("member without replication metadata", "node_id", m.Name)
			continue
		}
		addr, err := net.ResolveTCPAddr("tcp", replAddr)
		if err != nil {
			d.logger.Warn("member with unresolvable replication address",
				"node_id", m.Name, "addr", replAddr, "error", err)
			continue
		}
		peers = append(peers, addr)
	}
	return peers
}

// Leave gracefully leaves the cluster.
func (d *Discovery) Leave() error {
	if d.memberList == nil {
		return nil
	}
	if err := d.memberList.Leave(0); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops gossip membership.
func (d *Discovery) Shutdown() error {
	if d.shutdown || d.memberList == nil {
		return nil
	}
	d.shutdown = true
	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	return nil
}

// eventDelegate implements memberlist.EventDelegate for logging.
type eventDelegate struct {
	discovery *Discovery
}

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	e.discovery.logger.Info("node joined",
		"node_id", node.Name,
		"replication_addr", string(node.Meta))
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.discovery.logger.Info("node left", "node_id", node.Name)
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.discovery.logger.Debug("node updated", "node_id", node.Name)
}

// metadataDelegate advertises the replication address to other nodes.
type metadataDelegate struct {
	replicationAddr []byte
}

func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.replicationAddr) > limit {
		return m.replicationAddr[:limit]
	}
	return m.replicationAddr
}

func (m *metadataDelegate) NotifyMsg([]byte) {}

func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

func (m *metadataDelegate) LocalState(join bool) []byte {
	return nil
}

func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {}

// slogWriter adapts slog.Logger to io.Writer for memberlist's
// internal log output.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (n int, err error) {
	w.logger.Debug(string(p))
	return len(p), nil
}
