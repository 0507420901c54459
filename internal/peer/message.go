package peer

import "github.com/aggmesh/aggmesh-go/internal/core/domain"

// Kind discriminates the message variants of the replication protocol.
// Exactly one variant is active per frame.
type Kind uint8

const (
	// KindSingle carries one metric update.
	KindSingle Kind = iota + 1
	// KindMulti carries a batch of independent updates.
	KindMulti
	// KindSnapshot carries a full aggregated-state dump.
	KindSnapshot
)

// String returns the kind name for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindMulti:
		return "multi"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Message is the wire envelope. Single messages hold exactly one
// entry; Multi and Snapshot hold zero or more.
type Message struct {
	Kind    Kind
	Entries []domain.Entry
}

// Single builds a one-update message.
func Single(name []byte, rec domain.Record) Message {
	return Message{Kind: KindSingle, Entries: []domain.Entry{{Name: name, Record: rec}}}
}

// Multi builds a batch message.
func Multi(entries []domain.Entry) Message {
	return Message{Kind: KindMulti, Entries: entries}
}

// Snapshot builds a full-state message.
func Snapshot(entries []domain.Entry) Message {
	return Message{Kind: KindSnapshot, Entries: entries}
}
