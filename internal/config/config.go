// Package config loads this indexer's TOML configuration (§6), the way
// cmd/geth's own config.go loads node.toml: a plain struct with `toml`
// tags, defaults applied before load, naoina/toml doing the decode.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"

	"github.com/telosevm/shipcore/types"
)

// tomlSettings mirrors cmd/geth's own tomlSettings: field names are taken
// verbatim (no case folding), and an unknown key in the file is an error
// rather than silently ignored.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("config: field %q is not defined in %s", field, rt.String())
	},
}

// PerfConfig tunes decode parallelism and queue width (§6).
type PerfConfig struct {
	WorkerAmount      int   `toml:"workerAmount"`
	MaxMsgsInFlight   int   `toml:"maxMsgsInFlight"`
	ConcurrencyAmount int64 `toml:"concurrencyAmount"`
}

// SinkConfig configures the default pebble-backed sink.
type SinkConfig struct {
	DataDir string `toml:"dataDir"`
}

// BroadcastConfig configures the head-broadcast websocket listener.
type BroadcastConfig struct {
	WSHost string `toml:"wsHost"`
	WSPort int    `toml:"wsPort"`
}

// Config is the indexer's full runtime configuration (§6).
type Config struct {
	Endpoint   string `toml:"endpoint"`
	WSEndpoint string `toml:"wsEndpoint"`
	ChainName  string `toml:"chainName"`
	ChainID    uint64 `toml:"chainId"`

	StartBlock       uint32 `toml:"startBlock"`
	StopBlock        uint32 `toml:"stopBlock"` // 0 means types.DefaultEndBlockNum (never stop)
	IrreversibleOnly bool   `toml:"irreversibleOnly"`

	Perf PerfConfig `toml:"perf"`

	Elastic map[string]string `toml:"elastic"`
	Sink    SinkConfig        `toml:"sink"`

	Broadcast BroadcastConfig `toml:"broadcast"`

	Debug bool `toml:"debug"`
}

// Defaults returns the configuration applied before any file is loaded,
// so a partially-specified TOML file still produces a runnable config.
func Defaults() Config {
	return Config{
		ChainName: "telos",
		Perf: PerfConfig{
			WorkerAmount:      4,
			MaxMsgsInFlight:   50,
			ConcurrencyAmount: 8,
		},
		Sink:      SinkConfig{DataDir: "./data/sink"},
		Broadcast: BroadcastConfig{WSHost: "0.0.0.0", WSPort: 8080},
	}
}

// LoadFile reads and decodes path over Defaults().
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// WriteTo encodes cfg as TOML, the `dumpconfig` subcommand's output.
func WriteTo(w *strings.Builder, cfg Config) error {
	enc := tomlSettings.NewEncoder(w)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}

// BlockRequest converts the start/stop fields into a types.BlockRequest
// with sensible fetch flags for this pipeline (traces and deltas are
// always needed; the raw block body is needed only for signature mining).
func (c Config) BlockRequest() types.BlockRequest {
	end := c.StopBlock
	if end == 0 {
		end = types.DefaultEndBlockNum
	}
	return types.BlockRequest{
		StartBlockNum:       c.StartBlock,
		EndBlockNum:         end,
		MaxMessagesInFlight: uint32(c.Perf.MaxMsgsInFlight),
		IrreversibleOnly:    c.IrreversibleOnly,
		Flags: types.FetchFlags{
			FetchBlock:  true,
			FetchTraces: true,
			FetchDeltas: true,
		},
	}
}
