package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/telosevm/shipcore/types"
)

func TestDefaultsAreRunnable(t *testing.T) {
	cfg := Defaults()
	if cfg.Perf.WorkerAmount <= 0 {
		t.Fatalf("expected a positive default worker amount, got %d", cfg.Perf.WorkerAmount)
	}
	if cfg.Sink.DataDir == "" {
		t.Fatalf("expected a default sink data dir")
	}
	if cfg.Broadcast.WSPort == 0 {
		t.Fatalf("expected a default broadcast port")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shipindexer.toml")
	contents := `
wsEndpoint = "ws://localhost:8999"
chainName = "testnet"
startBlock = 100

[perf]
workerAmount = 2
maxMsgsInFlight = 10
concurrencyAmount = 4

[sink]
dataDir = "/tmp/custom-sink"

[broadcast]
wsHost = "127.0.0.1"
wsPort = 9090
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.WSEndpoint != "ws://localhost:8999" {
		t.Fatalf("unexpected wsEndpoint: %s", cfg.WSEndpoint)
	}
	if cfg.StartBlock != 100 {
		t.Fatalf("unexpected startBlock: %d", cfg.StartBlock)
	}
	if cfg.Perf.WorkerAmount != 2 {
		t.Fatalf("unexpected perf.workerAmount: %d", cfg.Perf.WorkerAmount)
	}
	if cfg.Broadcast.WSPort != 9090 {
		t.Fatalf("unexpected broadcast.wsPort: %d", cfg.Broadcast.WSPort)
	}
	// chainName is set in the fixture above; confirm it overrode the default.
	if cfg.ChainName != "testnet" {
		t.Fatalf("unexpected chainName: %s", cfg.ChainName)
	}
}

func TestLoadFileRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shipindexer.toml")
	if err := os.WriteFile(path, []byte("bogusField = 1\n"), 0o644); err != nil {
		t.Fatalf("write fixture config: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected an error decoding an unknown top-level field")
	}
}

func TestWriteToRoundTripsThroughLoadFile(t *testing.T) {
	cfg := Defaults()
	cfg.ChainName = "roundtrip"
	cfg.StartBlock = 42

	var sb strings.Builder
	if err := WriteTo(&sb, cfg); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.toml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write encoded config: %v", err)
	}

	decoded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile of round-tripped config failed: %v", err)
	}
	if decoded.ChainName != "roundtrip" || decoded.StartBlock != 42 {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestBlockRequestDefaultsUnboundedEnd(t *testing.T) {
	cfg := Defaults()
	req := cfg.BlockRequest()
	if req.EndBlockNum != types.DefaultEndBlockNum {
		t.Fatalf("expected unbounded end block, got %d", req.EndBlockNum)
	}
	if !req.Flags.FetchTraces || !req.Flags.FetchDeltas || !req.Flags.FetchBlock {
		t.Fatalf("expected all fetch flags set, got %+v", req.Flags)
	}
}
