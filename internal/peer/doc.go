// Package peer implements the replication protocol between AggMesh
// nodes.
//
// Three pieces cooperate: the inbound Server decodes peer frames and
// fans them into the local worker shards; the Snapshotter periodically
// gathers one consistent snapshot across all shards and broadcasts it;
// one Sender per peer frames and transmits a single snapshot over a
// fresh TCP connection, retried under a bounded backoff policy.
//
// The wire format is a length-prefixed binary envelope carrying one
// of three message kinds (Single, Multi, Snapshot). The decoder
// enforces a traversal size limit and a nesting depth limit on every
// frame regardless of origin.
package peer
