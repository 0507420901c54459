package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind discriminates the aggregation semantics of a Record.
type Kind uint8

const (
	KindUnspecified Kind = iota
	KindGauge
	KindCounter
	KindTimer
)

// String returns the kind name for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	case KindTimer:
		return "timer"
	default:
		return "unspecified"
	}
}

// RecordWireSize is the fixed encoded size of a Record:
// kind (1) + value (8) + rate (8) + timestamp (8).
const RecordWireSize = 25

// Record is one aggregated metric value.
//
// Timestamp uses Unix milliseconds. Rate is the client-side sampling
// rate for counters and timers; zero means unsampled.
type Record struct {
	Kind      Kind
	Value     float64
	Rate      float64
	Timestamp int64
}

// AppendBinary appends the fixed-size wire encoding of r to b.
func (r Record) AppendBinary(b []byte) []byte {
	b = append(b, byte(r.Kind))
	b = binary.BigEndian.AppendUint64(b, math.Float64bits(r.Value))
	b = binary.BigEndian.AppendUint64(b, math.Float64bits(r.Rate))
	b = binary.BigEndian.AppendUint64(b, uint64(r.Timestamp))
	return b
}

// DecodeRecord decodes a Record from the first RecordWireSize bytes of b.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < RecordWireSize {
		return Record{}, ErrShortRecord
	}
	r := Record{
		Kind:      Kind(b[0]),
		Value:     math.Float64frombits(binary.BigEndian.Uint64(b[1:9])),
		Rate:      math.Float64frombits(binary.BigEndian.Uint64(b[9:17])),
		Timestamp: int64(binary.BigEndian.Uint64(b[17:25])),
	}
	switch r.Kind {
	case KindGauge, KindCounter, KindTimer:
		return r, nil
	default:
		return Record{}, fmt.Errorf("%w: %d", ErrUnknownKind, b[0])
	}
}

// Entry is one named metric update as it travels between nodes.
type Entry struct {
	Name   []byte
	Record Record
}

// Merge combines other into r and returns the result.
//
// Gauges keep the most recent value, counters and timers accumulate.
func (r Record) Merge(other Record) Record {
	out := r
	switch other.Kind {
	case KindGauge:
		if other.Timestamp >= r.Timestamp {
			out.Value = other.Value
		}
	default:
		out.Value += other.Value
	}
	if other.Timestamp > out.Timestamp {
		out.Timestamp = other.Timestamp
	}
	return out
}
