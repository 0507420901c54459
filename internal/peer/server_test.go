package peer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/aggmesh/aggmesh-go/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, cfg ServerConfig, channels int) (*Server, []chan worker.Task, string) {
	t.Helper()

	chans := make([]chan worker.Task, channels)
	for i := range chans {
		chans[i] = make(chan worker.Task, 64)
	}
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:0"
	}
	srv := NewServer(cfg, chans, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			t.Errorf("serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = srv.Shutdown(shCtx)
	})

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(time.Millisecond)
	}
	return srv, chans, srv.Addr().String()
}

func sendFrames(t *testing.T, addr string, sealer *Sealer, msgs ...Message) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	enc := NewEncoder(conn, sealer)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			t.Fatal(err)
		}
	}
}

func recvTask(t *testing.T, ch <-chan worker.Task) worker.Task {
	t.Helper()
	select {
	case task := <-ch:
		return task
	case <-time.After(5 * time.Second):
		t.Fatal("no task arrived")
		return nil
	}
}

func TestServerDispatchesSingle(t *testing.T) {
	_, chans, addr := startServer(t, ServerConfig{}, 1)

	sendFrames(t, addr, nil, Single([]byte("cpu.load"), gauge(42)))

	task := recvTask(t, chans[0])
	add, ok := task.(worker.AddMetric)
	if !ok {
		t.Fatalf("task = %T, want worker.AddMetric", task)
	}
	if string(add.Name) != "cpu.load" {
		t.Errorf("name = %q, want cpu.load", add.Name)
	}
	if add.Record != gauge(42) {
		t.Errorf("record = %+v", add.Record)
	}
}

func TestServerPreservesOrderPerConnection(t *testing.T) {
	_, chans, addr := startServer(t, ServerConfig{}, 1)

	sendFrames(t, addr, nil,
		Multi(entries("m1", "m2", "m3")),
		Snapshot(entries("s1", "s2")),
	)

	first := recvTask(t, chans[0])
	multi, ok := first.(worker.AddMetrics)
	if !ok {
		t.Fatalf("first task = %T, want worker.AddMetrics", first)
	}
	if len(multi.Entries) != 3 {
		t.Errorf("multi entries = %d, want 3", len(multi.Entries))
	}

	second := recvTask(t, chans[0])
	snap, ok := second.(worker.AddSnapshot)
	if !ok {
		t.Fatalf("second task = %T, want worker.AddSnapshot", second)
	}
	if len(snap.Entries) != 2 {
		t.Errorf("snapshot entries = %d, want 2", len(snap.Entries))
	}
}

func TestServerRoundRobinFanOut(t *testing.T) {
	const shards = 4
	const frames = 8

	_, chans, addr := startServer(t, ServerConfig{}, shards)

	msgs := make([]Message, frames)
	for i := range msgs {
		msgs[i] = Single([]byte{byte('a' + i)}, gauge(float64(i)))
	}
	sendFrames(t, addr, nil, msgs...)

	// One connection cycles the channels in order, so every shard
	// receives exactly frames/shards tasks.
	for i, ch := range chans {
		for j := 0; j < frames/shards; j++ {
			if _, ok := recvTask(t, ch).(worker.AddMetric); !ok {
				t.Fatalf("shard %d task %d: wrong type", i, j)
			}
		}
		select {
		case task := <-ch:
			t.Errorf("shard %d got a surplus task %T", i, task)
		default:
		}
	}
}

func TestServerIsolatesBrokenConnections(t *testing.T) {
	_, chans, addr := startServer(t, ServerConfig{}, 1)

	// A connection speaking garbage is closed without touching others.
	garbage, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	garbage.Write(bytes.Repeat([]byte{0xff}, 64))
	garbage.Close()

	sendFrames(t, addr, nil, Single([]byte("alive"), gauge(1)))

	task := recvTask(t, chans[0])
	if add, ok := task.(worker.AddMetric); !ok || string(add.Name) != "alive" {
		t.Fatalf("task = %#v, want AddMetric alive", task)
	}
}

func TestServerWithSealer(t *testing.T) {
	secret := []byte("a-shared-cluster-secret")
	srvSealer, err := NewSealer(secret)
	if err != nil {
		t.Fatal(err)
	}
	cliSealer, err := NewSealer(secret)
	if err != nil {
		t.Fatal(err)
	}

	_, chans, addr := startServer(t, ServerConfig{Sealer: srvSealer}, 1)

	// A plaintext frame fails the open and closes that connection.
	sendFrames(t, addr, nil, Single([]byte("plaintext"), gauge(0)))

	sendFrames(t, addr, cliSealer, Single([]byte("sealed"), gauge(9)))

	task := recvTask(t, chans[0])
	add, ok := task.(worker.AddMetric)
	if !ok || string(add.Name) != "sealed" {
		t.Fatalf("task = %#v, want the sealed frame only", task)
	}
	select {
	case task := <-chans[0]:
		t.Errorf("plaintext frame was dispatched: %#v", task)
	default:
	}
}

func TestServerBindFailureIsFatal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	srv := NewServer(ServerConfig{Listen: ln.Addr().String()}, nil, testLogger())
	if err := srv.Serve(context.Background()); err == nil {
		t.Error("binding an occupied port must fail")
	}
}
