package peer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/aggmesh/aggmesh-go/internal/core/domain"
)

// Decoder safety bounds. The traversal limit is a safety ceiling for
// hostile peers, not a target frame size.
const (
	DefaultMaxFrameBytes = 8 << 30
	DefaultMaxDepth      = 16
)

// Frame layout:
//
//	[length u64][body]
//	body  = [crc32 u32][kind u8][depth u8][payload]   (sealed as a whole when encryption is on)
//	entry = [nameLen u32][name][record]
//
// Single frames carry one entry as payload; Multi and Snapshot carry
// [count u32] followed by count entries. The CRC covers kind, depth
// and payload. The cursor only advances past a frame once it decodes
// cleanly or is determined unrecoverable.
const (
	frameHeaderSize = 8
	bodyHeaderSize  = 4 + 1 + 1 // crc + kind + depth
	minEntrySize    = 4 + domain.RecordWireSize

	depthSingle = 3
	depthBatch  = 4
)

// EncodeFrame encodes one message into a self-delimited frame.
func EncodeFrame(m Message, sealer *Sealer) ([]byte, error) {
	var payload []byte
	switch m.Kind {
	case KindSingle:
		if len(m.Entries) != 1 {
			return nil, fmt.Errorf("peer: single message requires exactly one entry, got %d", len(m.Entries))
		}
		payload = appendEntry(payload, m.Entries[0])
	case KindMulti, KindSnapshot:
		payload = binary.BigEndian.AppendUint32(payload, uint32(len(m.Entries)))
		for _, e := range m.Entries {
			payload = appendEntry(payload, e)
		}
	default:
		return nil, fmt.Errorf("peer: cannot encode message kind %d", m.Kind)
	}

	depth := byte(depthBatch)
	if m.Kind == KindSingle {
		depth = depthSingle
	}

	body := make([]byte, 0, bodyHeaderSize+len(payload))
	body = append(body, 0, 0, 0, 0) // crc placeholder
	body = append(body, byte(m.Kind), depth)
	body = append(body, payload...)
	binary.BigEndian.PutUint32(body[:4], crc32.ChecksumIEEE(body[4:]))

	if sealer != nil {
		sealed, err := sealer.Seal(body)
		if err != nil {
			return nil, fmt.Errorf("peer: seal frame: %w", err)
		}
		body = sealed
	}

	frame := make([]byte, 0, frameHeaderSize+len(body))
	frame = binary.BigEndian.AppendUint64(frame, uint64(len(body)))
	return append(frame, body...), nil
}

func appendEntry(b []byte, e domain.Entry) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(e.Name)))
	b = append(b, e.Name...)
	return e.Record.AppendBinary(b)
}

// Encoder writes frames to a stream.
type Encoder struct {
	w      io.Writer
	sealer *Sealer
}

// NewEncoder creates an encoder. sealer may be nil for plaintext.
func NewEncoder(w io.Writer, sealer *Sealer) *Encoder {
	return &Encoder{w: w, sealer: sealer}
}

// Encode writes one frame.
func (e *Encoder) Encode(m Message) error {
	frame, err := EncodeFrame(m, e.sealer)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("peer: write frame: %w", err)
	}
	return nil
}

// Decoder reads frames from a stream, enforcing the traversal and
// depth bounds before allocating for a frame.
type Decoder struct {
	br          *bufio.Reader
	sealer      *Sealer
	maxFrame    uint64
	maxDepth    uint8
	onBadRecord func(error)
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithSealer sets the frame sealer; both ends must agree.
func WithSealer(s *Sealer) DecoderOption {
	return func(d *Decoder) { d.sealer = s }
}

// WithMaxFrameBytes overrides the traversal limit.
func WithMaxFrameBytes(n uint64) DecoderOption {
	return func(d *Decoder) { d.maxFrame = n }
}

// WithMaxDepth overrides the nesting depth limit.
func WithMaxDepth(n uint8) DecoderOption {
	return func(d *Decoder) { d.maxDepth = n }
}

// WithBadRecordFunc registers a callback invoked for every entry that
// fails to decode inside an otherwise well-formed batch frame.
func WithBadRecordFunc(fn func(error)) DecoderOption {
	return func(d *Decoder) { d.onBadRecord = fn }
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		br:       bufio.NewReader(r),
		maxFrame: DefaultMaxFrameBytes,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads and decodes the next frame. It returns io.EOF on a
// clean end of stream at a frame boundary. Record-level failures in a
// batch are reported through the bad-record callback and skipped; a
// Single frame whose record fails yields ErrBadRecord with the stream
// still aligned for the next frame.
func (d *Decoder) Decode() (Message, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(d.br, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("peer: read frame header: %w", err)
	}

	length := binary.BigEndian.Uint64(header[:])
	if length > d.maxFrame {
		return Message{}, fmt.Errorf("%w: declared %d bytes, limit %d", ErrTooLarge, length, d.maxFrame)
	}
	if length < bodyHeaderSize {
		return Message{}, fmt.Errorf("%w: body of %d bytes below minimum", ErrProtocol, length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(d.br, body); err != nil {
		return Message{}, fmt.Errorf("peer: read frame body: %w", err)
	}

	if d.sealer != nil {
		plain, err := d.sealer.Open(body)
		if err != nil {
			return Message{}, fmt.Errorf("%w: open sealed frame: %v", ErrProtocol, err)
		}
		body = plain
		if len(body) < bodyHeaderSize {
			return Message{}, fmt.Errorf("%w: sealed body too short", ErrProtocol)
		}
	}

	wantCRC := binary.BigEndian.Uint32(body[:4])
	if got := crc32.ChecksumIEEE(body[4:]); got != wantCRC {
		return Message{}, fmt.Errorf("%w: checksum mismatch", ErrProtocol)
	}

	kind := Kind(body[4])
	depth := body[5]
	if depth > d.maxDepth {
		return Message{}, fmt.Errorf("%w: declared depth %d, limit %d", ErrTooDeep, depth, d.maxDepth)
	}

	payload := body[bodyHeaderSize:]
	switch kind {
	case KindSingle:
		entry, rest, err := decodeEntry(payload)
		if err != nil {
			if errors.Is(err, ErrBadRecord) {
				return Message{}, err
			}
			return Message{}, err
		}
		if len(rest) != 0 {
			return Message{}, fmt.Errorf("%w: trailing bytes after single entry", ErrProtocol)
		}
		return Message{Kind: KindSingle, Entries: []domain.Entry{entry}}, nil

	case KindMulti, KindSnapshot:
		if len(payload) < 4 {
			return Message{}, fmt.Errorf("%w: missing entry count", ErrProtocol)
		}
		count := binary.BigEndian.Uint32(payload[:4])
		rest := payload[4:]
		if uint64(count)*minEntrySize > uint64(len(rest)) {
			return Message{}, fmt.Errorf("%w: %d entries cannot fit in %d bytes", ErrProtocol, count, len(rest))
		}
		entries := make([]domain.Entry, 0, count)
		for i := uint32(0); i < count; i++ {
			entry, remaining, err := decodeEntry(rest)
			rest = remaining
			if err != nil {
				if errors.Is(err, ErrBadRecord) {
					if d.onBadRecord != nil {
						d.onBadRecord(err)
					}
					continue
				}
				return Message{}, err
			}
			entries = append(entries, entry)
		}
		if len(rest) != 0 {
			return Message{}, fmt.Errorf("%w: trailing bytes after %d entries", ErrProtocol, count)
		}
		return Message{Kind: kind, Entries: entries}, nil

	default:
		return Message{}, fmt.Errorf("%w: unknown message kind %d", ErrProtocol, body[4])
	}
}

// decodeEntry consumes one entry from b. On ErrBadRecord the returned
// remainder is already advanced past the entry, keeping the stream
// position intact for the next one.
func decodeEntry(b []byte) (domain.Entry, []byte, error) {
	if len(b) < 4 {
		return domain.Entry{}, nil, fmt.Errorf("%w: truncated entry header", ErrProtocol)
	}
	nameLen := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(nameLen)+domain.RecordWireSize > uint64(len(b)) {
		return domain.Entry{}, nil, fmt.Errorf("%w: entry name of %d bytes exceeds frame", ErrProtocol, nameLen)
	}

	name := make([]byte, nameLen)
	copy(name, b[:nameLen])
	b = b[nameLen:]

	rec, err := domain.DecodeRecord(b)
	rest := b[domain.RecordWireSize:]
	if err != nil {
		return domain.Entry{}, rest, fmt.Errorf("%w: %v", ErrBadRecord, err)
	}
	return domain.Entry{Name: name, Record: rec}, rest, nil
}
