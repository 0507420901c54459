package domain

import (
	"errors"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"gauge", Record{Kind: KindGauge, Value: 42, Timestamp: 1700000000000}},
		{"counter", Record{Kind: KindCounter, Value: 13.5, Rate: 0.1, Timestamp: 1700000000001}},
		{"timer", Record{Kind: KindTimer, Value: 250.25, Rate: 1, Timestamp: 1}},
		{"negative gauge", Record{Kind: KindGauge, Value: -273.15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.rec.AppendBinary(nil)
			if len(b) != RecordWireSize {
				t.Fatalf("encoded size = %d, want %d", len(b), RecordWireSize)
			}
			got, err := DecodeRecord(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.rec {
				t.Errorf("got %+v, want %+v", got, tt.rec)
			}
		})
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	if _, err := DecodeRecord(make([]byte, RecordWireSize-1)); !errors.Is(err, ErrShortRecord) {
		t.Errorf("short buffer: err = %v, want ErrShortRecord", err)
	}

	b := Record{Kind: KindGauge, Value: 1}.AppendBinary(nil)
	b[0] = 0xff
	if _, err := DecodeRecord(b); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("bad kind: err = %v, want ErrUnknownKind", err)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		into  Record
		from  Record
		want  float64
		wants int64
	}{
		{
			name:  "gauge newer wins",
			into:  Record{Kind: KindGauge, Value: 1, Timestamp: 100},
			from:  Record{Kind: KindGauge, Value: 2, Timestamp: 200},
			want:  2,
			wants: 200,
		},
		{
			name:  "gauge older ignored",
			into:  Record{Kind: KindGauge, Value: 1, Timestamp: 300},
			from:  Record{Kind: KindGauge, Value: 2, Timestamp: 200},
			want:  1,
			wants: 300,
		},
		{
			name:  "counters accumulate",
			into:  Record{Kind: KindCounter, Value: 10, Timestamp: 100},
			from:  Record{Kind: KindCounter, Value: 5, Timestamp: 50},
			want:  15,
			wants: 100,
		},
		{
			name:  "timers accumulate",
			into:  Record{Kind: KindTimer, Value: 1.5, Timestamp: 10},
			from:  Record{Kind: KindTimer, Value: 2.5, Timestamp: 20},
			want:  4,
			wants: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.into.Merge(tt.from)
			if got.Value != tt.want {
				t.Errorf("value = %v, want %v", got.Value, tt.want)
			}
			if got.Timestamp != tt.wants {
				t.Errorf("timestamp = %d, want %d", got.Timestamp, tt.wants)
			}
		})
	}
}
