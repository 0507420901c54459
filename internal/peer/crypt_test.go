package peer

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}

	plain := []byte("the quick brown fox")
	sealed, err := sealer.Seal(plain)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed output contains the plaintext")
	}

	got, err := sealer.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("opened = %q, want %q", got, plain)
	}
}

func TestSealerSecretTooShort(t *testing.T) {
	if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("err = %v, want ErrSecretTooShort", err)
	}
}

func TestSealerWrongSecret(t *testing.T) {
	a, err := NewSealer([]byte("secret-number-one"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSealer([]byte("secret-number-two"))
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := a.Seal([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Open(sealed); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("open with wrong secret: err = %v, want ErrOpenFailed", err)
	}
}

func TestSealerRejectsTamperedFrame(t *testing.T) {
	sealer, err := NewSealer([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := sealer.Seal([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := sealer.Open(sealed); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("err = %v, want ErrOpenFailed", err)
	}

	if _, err := sealer.Open([]byte{0x01}); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("truncated input: err = %v, want ErrOpenFailed", err)
	}
}

func TestSealedFrameRoundTrip(t *testing.T) {
	secret := []byte("a-shared-cluster-secret")
	sealerA, err := NewSealer(secret)
	if err != nil {
		t.Fatal(err)
	}
	sealerB, err := NewSealer(secret)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf, sealerA)
	want := Multi(entries("sealed.a", "sealed.b"))
	if err := enc.Encode(want); err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(bytes.NewReader(buf.Bytes()), WithSealer(sealerB))
	got, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode sealed frame: %v", err)
	}
	if got.Kind != KindMulti {
		t.Errorf("kind = %v, want KindMulti", got.Kind)
	}
	sameEntries(t, got.Entries, want.Entries)
	if _, err := dec.Decode(); !errors.Is(err, io.EOF) {
		t.Errorf("after frame: err = %v, want io.EOF", err)
	}
}

func TestSealedFrameRejectedWithoutSealer(t *testing.T) {
	sealer, err := NewSealer([]byte("a-shared-cluster-secret"))
	if err != nil {
		t.Fatal(err)
	}
	frame, err := EncodeFrame(Single([]byte("x"), gauge(1)), sealer)
	if err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(bytes.NewReader(frame))
	if _, err := dec.Decode(); !errors.Is(err, ErrProtocol) {
		t.Errorf("plaintext decode of sealed frame: err = %v, want ErrProtocol", err)
	}
}
