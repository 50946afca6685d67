package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
authority = "node-0"
worker_id = 0
listen_on = "127.0.0.1:9000"
store_path = "/tmp/node-0.db"
gc_depth = 50
sync_retry_delay = "5s"
sync_retry_nodes = 3

[[peers]]
authority = "node-1"
address = "127.0.0.1:9100"
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.toml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatalf("writing sample config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	fc, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Authority != "node-0" {
		t.Fatalf("expected authority node-0, got %s", fc.Authority)
	}
	if fc.SyncRetryNodes != 3 {
		t.Fatalf("expected sync_retry_nodes 3, got %d", fc.SyncRetryNodes)
	}
	if len(fc.Peers) != 1 || fc.Peers[0].Authority != "node-1" {
		t.Fatalf("expected one peer node-1, got %#v", fc.Peers)
	}
}

func TestSynchronizerConfig(t *testing.T) {
	fc, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := fc.SynchronizerConfig()
	if err != nil {
		t.Fatalf("SynchronizerConfig: %v", err)
	}
	if cfg.GCDepth != 50 {
		t.Fatalf("expected GCDepth 50, got %d", cfg.GCDepth)
	}
	if cfg.SyncRetryDelay.Seconds() != 5 {
		t.Fatalf("expected 5s retry delay, got %v", cfg.SyncRetryDelay)
	}
}

func TestSynchronizerConfig_InvalidDuration(t *testing.T) {
	fc := &FileConfig{SyncRetryDelay: "not-a-duration"}
	if _, err := fc.SynchronizerConfig(); err == nil {
		t.Fatal("expected an error for an invalid sync_retry_delay")
	}
}

func TestBootstrap(t *testing.T) {
	fc, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	committee, workerCache := fc.Bootstrap()

	if committee.Epoch != 0 {
		t.Fatalf("expected epoch 0, got %d", committee.Epoch)
	}
	if _, ok := committee.Authorities["node-0"]; !ok {
		t.Fatal("expected self present in bootstrap committee")
	}
	if _, ok := committee.Authorities["node-1"]; !ok {
		t.Fatal("expected peer present in bootstrap committee")
	}

	addr, err := workerCache.Worker("node-1", 0)
	if err != nil {
		t.Fatalf("expected peer resolvable in bootstrap worker cache: %v", err)
	}
	if addr != "127.0.0.1:9100" {
		t.Fatalf("expected peer address 127.0.0.1:9100, got %s", addr)
	}
}
