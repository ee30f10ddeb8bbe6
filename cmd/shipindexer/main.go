// Command shipindexer runs the State-History reader, block assembler,
// pebble sink, and head broadcaster as one process, wired together the
// way cmd/geth wires node, config, and CLI (naoina/toml + urfave/cli/v2).
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/logrusorgru/aurora"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/telosevm/shipcore/actionhash"
	"github.com/telosevm/shipcore/assembler"
	"github.com/telosevm/shipcore/broadcast"
	"github.com/telosevm/shipcore/internal/config"
	"github.com/telosevm/shipcore/ship"
	"github.com/telosevm/shipcore/sink"
	"github.com/telosevm/shipcore/types"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Value:   "shipindexer.toml",
	Usage:   "path to the TOML configuration file",
}

var jsonLogFlag = &cli.BoolFlag{
	Name:  "log.json",
	Usage: "emit structured JSON logs instead of the terminal format",
}

var logFileFlag = &cli.StringFlag{
	Name:  "log.file",
	Usage: "rotate logs into this file instead of stderr (100MB/7 backups/28 days)",
}

func main() {
	app := &cli.App{
		Name:  "shipindexer",
		Usage: "EOSIO/Antelope State-History reader and EVM block assembler",
		Flags: []cli.Flag{configFlag, jsonLogFlag, logFileFlag},
		Commands: []*cli.Command{
			runCommand,
			dumpconfigCommand,
			statusCommand,
		},
		Action: runAction,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) {
	var out io.Writer = os.Stderr
	useColor := true
	if path := c.String(logFileFlag.Name); path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     28,
			Compress:   true,
		}
		useColor = false
	}

	var handler slog.Handler
	if c.Bool(jsonLogFlag.Name) {
		handler = log.JSONHandler(out)
	} else {
		handler = log.NewTerminalHandler(out, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
}

func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String(configFlag.Name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Defaults(), nil
	}
	return config.LoadFile(path)
}

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "run the reader, assembler, sink, and broadcaster",
	Action: runAction,
}

func runAction(c *cli.Context) error {
	setupLogging(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	sk, err := sink.Open(cfg.Sink.DataDir)
	if err != nil {
		return err
	}
	defer sk.Close()
	if err := sk.Init(); err != nil {
		return err
	}

	state, err := sk.GetIndexerState()
	if err != nil {
		return err
	}
	last, err := sk.GetLastIndexedBlock()
	if err != nil {
		return err
	}
	log.Info("shipindexer: resuming", "state", state, "lastIndexedBlock", last)

	bc := broadcast.New()

	handlers := assembler.Handlers{
		Raw:      passthroughHandler,
		Withdraw: passthroughHandler,
		Deposit:  passthroughHandler,
	}
	asm := assembler.New(assembler.Config{
		Debug:          cfg.Debug,
		ActionHashMode: actionHashMode(cfg.Debug),
		OnEmit: func(block types.ProcessedBlock) {
			if head, ok := broadcast.BuildHeadJSON(block); ok {
				bc.Publish(head)
			}
		},
	}, handlers, sk)

	request := cfg.BlockRequest()
	if last != nil {
		asm.Seed(last.BlockNum, state)
		if resumeFrom := last.BlockNum + 1; resumeFrom > request.StartBlockNum {
			request.StartBlockNum = resumeFrom
		}
	}

	shipCfg := ship.Config{
		WSEndpoint:           cfg.WSEndpoint,
		Request:              request,
		MinBlockConfirmation: uint32(cfg.Perf.MaxMsgsInFlight / 2),
		DecodeThreads:        cfg.Perf.WorkerAmount,
		QueueConcurrency:     cfg.Perf.ConcurrencyAmount,
		ActionHashMode:       actionHashMode(cfg.Debug),
		HavePositionsWindow:  1024,
	}

	client, err := ship.New(shipCfg, ship.DialWebsocket, asm.ProcessBlock, asm)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := broadcast.ListenAndServe(broadcast.Config{Host: cfg.Broadcast.WSHost, Port: cfg.Broadcast.WSPort}, bc); err != nil {
			log.Error("shipindexer: broadcast server stopped", "err", err)
		}
	}()

	runErr := client.Run(ctx)

	if last, lastErr := sk.GetLastIndexedBlock(); lastErr == nil && last != nil {
		log.Info("shipindexer: shutting down", "lastIndexedBlock", last.BlockNum)
	}
	if persistErr := sk.IndexState(asm.Snapshot().State); persistErr != nil {
		log.Error("shipindexer: persist final state failed", "err", persistErr)
	}
	return runErr
}

// passthroughHandler stands in for the external EVM transaction decoder
// collaborator (§6, §9: out of scope for behavior). It is fixed here only
// as a contract a real deployment replaces.
func passthroughHandler(act types.Action, gasUsedBlock uint64) (types.EVMTx, error) {
	return types.EVMTx{GasUsedBlock: gasUsedBlock}, nil
}

func actionHashMode(debug bool) actionhash.Mode {
	if debug {
		return actionhash.Debug
	}
	return actionhash.Release
}

var dumpconfigCommand = &cli.Command{
	Name:  "dumpconfig",
	Usage: "print the effective configuration as TOML",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		var sb strings.Builder
		if err := config.WriteTo(&sb, cfg); err != nil {
			return err
		}
		fmt.Println(sb.String())
		return nil
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "print the sink's last-indexed block and indexer state",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		sk, err := sink.Open(cfg.Sink.DataDir)
		if err != nil {
			return err
		}
		defer sk.Close()

		last, err := sk.GetLastIndexedBlock()
		if err != nil {
			return err
		}
		state, err := sk.GetIndexerState()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"field", "value"})

		stateCell := fmt.Sprintf("%v", state)
		if state == types.StateHead {
			stateCell = aurora.Green(stateCell).String()
		} else {
			stateCell = aurora.Yellow(stateCell).String()
		}
		table.Append([]string{"state", stateCell})

		if last == nil {
			table.Append([]string{"lastIndexedBlock", aurora.Red("none").String()})
		} else {
			table.Append([]string{"lastIndexedBlock", fmt.Sprintf("%d", last.BlockNum)})
			table.Append([]string{"lastIndexedTimestamp", fmt.Sprintf("%d", last.Timestamp)})
		}
		table.Render()
		return nil
	},
}
