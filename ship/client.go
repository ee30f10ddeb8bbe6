// Package ship implements the State-History Reader (§4.6): a websocket
// session state machine that negotiates the node's schema, streams
// get_blocks_result frames, parallel-decodes their three payloads, mines
// transaction signatures, and hands assembled blocks to the rest of the
// pipeline in order.
package ship

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/telosevm/shipcore/actionhash"
	"github.com/telosevm/shipcore/codec"
	"github.com/telosevm/shipcore/decodepool"
	"github.com/telosevm/shipcore/extract"
	"github.com/telosevm/shipcore/queue"
	"github.com/telosevm/shipcore/shiperr"
	"github.com/telosevm/shipcore/types"
)

var (
	metricBlocksPerSec = metrics.NewRegisteredMeter("shipcore/ship/blocks", nil)
	metricAcksSent     = metrics.NewRegisteredCounter("shipcore/ship/acks", nil)
)

// sessionState is the connection state machine of §4.6. It is distinct
// from types.IndexerState (SYNC/HEAD), which governs dispatch mode rather
// than connection lifecycle.
type sessionState int

const (
	stateDisconnected sessionState = iota
	stateConnecting
	stateAwaitingABI
	stateStreaming
)

// StateSnapshot is the one-way view the assembler publishes to the reader
// (§4.8, §9): whether dispatch should be queued (SYNC) or immediate (HEAD),
// and the last block number the assembler accepted.
type StateSnapshot struct {
	State            types.IndexerState
	LastOrderedBlock uint32
}

// StateObserver lets ShipClient read the assembler's published snapshot
// without holding a reference back into the assembler itself.
type StateObserver interface {
	Snapshot() StateSnapshot
}

// ProcessFunc is the assembler entry point: BlockAssembler.ProcessBlock,
// injected so this package has no compile-time dependency on the
// assembler package.
type ProcessFunc func(block types.DecodedBlock) error

// Config is the session configuration a Client is built from.
type Config struct {
	WSEndpoint           string
	Request              types.BlockRequest
	MinBlockConfirmation uint32
	DecodeThreads        int
	QueueConcurrency     int64
	AllowEmptyBlock      bool
	AllowEmptyTraces     bool
	AllowEmptyDeltas     bool
	ActionHashMode       actionhash.Mode
	ReconnectBackoff     time.Duration
	HavePositionsWindow  int // bound on the have_positions LRU (§12)
}

// Client is the ShipClient state machine.
type Client struct {
	cfg      Config
	dial     Dialer
	process  ProcessFunc
	observer StateObserver
	hasher   *actionhash.Hasher

	schema     *codec.Schema
	pool       *decodepool.Pool
	q          *queue.OrderedQueue
	positions  *lru.Cache[uint32, types.BlockPosition]
	unconfirmed uint32

	state sessionState
}

// New builds a Client. observer may be nil, in which case every block is
// dispatched through the OrderedQueue (equivalent to permanent SYNC state);
// cmd/shipindexer passes the *assembler.Assembler, whose Snapshot reads its
// statemachine.Machine.
func New(cfg Config, dial Dialer, process ProcessFunc, observer StateObserver) (*Client, error) {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 5 * time.Second
	}
	window := cfg.HavePositionsWindow
	if window <= 0 {
		window = 1
	}
	positions, err := lru.New[uint32, types.BlockPosition](window)
	if err != nil {
		return nil, fmt.Errorf("ship: build have_positions cache: %w", err)
	}
	return &Client{
		cfg:       cfg,
		dial:      dial,
		process:   process,
		observer:  observer,
		hasher:    actionhash.New(cfg.ActionHashMode),
		positions: positions,
		state:     stateDisconnected,
	}, nil
}

// Run drives the session until ctx is cancelled, reconnecting with backoff
// whenever the transport fails (§4.6 Disconnect). It returns nil only when
// ctx is cancelled; any fatal (non-transport) error is returned directly.
func (c *Client) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := c.runSession(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if !errors.Is(err, shiperr.ErrTransport) {
			return err
		}
		log.Warn("ship: session ended, reconnecting", "err", err, "backoff", c.cfg.ReconnectBackoff)
		c.teardown()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectBackoff):
		}
	}
}

func (c *Client) teardown() {
	if c.pool != nil {
		c.pool.Release()
		c.pool = nil
	}
	c.schema = nil
	c.state = stateDisconnected
}

func (c *Client) runSession(ctx context.Context) error {
	c.state = stateConnecting
	transport, err := c.dial(ctx, c.cfg.WSEndpoint)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", shiperr.ErrTransport, err)
	}
	defer transport.Close()

	c.state = stateAwaitingABI
	abi, err := transport.ReadMessage()
	if err != nil {
		return fmt.Errorf("%w: read schema: %v", shiperr.ErrTransport, err)
	}
	schema, err := codec.LoadSchema(abi)
	if err != nil {
		return fmt.Errorf("ship: load schema: %w", err)
	}
	codec.DefaultSchema(schema)
	c.schema = schema

	pool, err := decodepool.New(c.cfg.DecodeThreads, schema)
	if err != nil {
		return fmt.Errorf("ship: build decode pool: %w", err)
	}
	c.pool = pool

	c.q = queue.New(c.cfg.QueueConcurrency, func(value any) {
		decoded, ok := value.(types.DecodedBlock)
		if !ok {
			log.Error("ship: ordered queue delivered unexpected value type")
			return
		}
		if err := c.process(decoded); err != nil {
			log.Error("ship: block processing failed, pausing queue", "block", decoded.Envelope.ThisBlock.BlockNum, "err", err)
			c.q.Pause()
			c.q.Clear()
			return
		}
		metricBlocksPerSec.Mark(1)
	}, func(err error) {
		log.Error("ship: ordered queue task failure", "err", err)
	})

	req := c.cfg.Request
	req.HavePositions = c.snapshotHavePositions()
	if err := transport.WriteMessage(codec.EncodeBlocksRequestV0(req)); err != nil {
		return fmt.Errorf("%w: send get_blocks_request_v0: %v", shiperr.ErrTransport, err)
	}
	c.state = stateStreaming

	for {
		if ctx.Err() != nil {
			return nil
		}
		data, err := transport.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read frame: %v", shiperr.ErrTransport, err)
		}
		if err := c.handleFrame(ctx, transport, data); err != nil {
			return err
		}
		if c.q.Paused() {
			return fmt.Errorf("ship: %w", shiperr.ErrDecode)
		}
	}
}

// snapshotHavePositions drains the have_positions LRU into a slice for the
// outgoing request (§12: a bounded rolling window, evicted oldest-first,
// rather than an unbounded list).
func (c *Client) snapshotHavePositions() []types.BlockPosition {
	keys := c.positions.Keys()
	out := make([]types.BlockPosition, 0, len(keys))
	for _, k := range keys {
		if p, ok := c.positions.Get(k); ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *Client) handleFrame(ctx context.Context, transport Transport, data []byte) error {
	env, err := codec.DecodeGetBlocksResult(c.schema, data)
	if err != nil {
		return fmt.Errorf("ship: decode get_blocks_result: %w", err)
	}
	if env.ThisBlock == nil {
		// caught up to head, or the node has nothing before its snapshot
		// yet; no block to process, no ACK bump.
		log.Debug("ship: empty get_blocks_result, no this_block")
		return nil
	}
	c.positions.Add(env.ThisBlock.BlockNum, *env.ThisBlock)

	decoded, err := c.decodeBlock(env)
	if err != nil {
		if errors.Is(err, shiperr.ErrMissingPayload) || errors.Is(err, shiperr.ErrDecode) {
			c.q.Pause()
			return fmt.Errorf("ship: %w", err)
		}
		return fmt.Errorf("ship: decode block %d: %w", env.ThisBlock.BlockNum, err)
	}

	// HEAD-state dispatch bypasses OrderedQueue entirely (§4.8): ordering
	// is still guaranteed because frames arrive strictly ordered and this
	// frame handler is single-threaded. SYNC-state dispatch goes through
	// the queue so decode-pipeline concurrency doesn't reorder delivery
	// to the assembler.
	immediate := c.observer != nil && c.observer.Snapshot().State == types.StateHead
	if immediate {
		if err := c.process(decoded); err != nil {
			c.q.Pause()
			return fmt.Errorf("ship: process block %d: %w", env.ThisBlock.BlockNum, err)
		}
		metricBlocksPerSec.Mark(1)
	} else if err := c.q.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return decoded, nil
	}); err != nil {
		return fmt.Errorf("ship: enqueue block %d: %w", env.ThisBlock.BlockNum, err)
	}

	c.unconfirmed++
	if c.unconfirmed >= c.cfg.MinBlockConfirmation {
		if err := transport.WriteMessage(codec.EncodeBlocksAckRequestV0(c.unconfirmed)); err != nil {
			return fmt.Errorf("%w: send ack: %v", shiperr.ErrTransport, err)
		}
		metricAcksSent.Inc(1)
		c.unconfirmed = 0
	}
	return nil
}

// decodeBlock joins the three parallel decodes for one block (§4.1, §4.6,
// §9: an errgroup.Group with three Go calls, short-circuiting on first
// failure), applies the missing-payload policy, and mines signatures.
func (c *Client) decodeBlock(env codec.ResultEnvelope) (types.DecodedBlock, error) {
	var (
		body   codec.BlockBody
		traces []types.TransactionTrace
		deltas []types.TableDelta
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		v, err := c.decodeOrPolicy(len(env.Block) > 0, c.cfg.Request.Flags.FetchBlock, c.cfg.AllowEmptyBlock,
			decodepool.BlockTaskType(env.ResultVariant), env.Block)
		if err != nil {
			return err
		}
		if v == nil {
			return nil
		}
		b, ok := v.(codec.BlockBody)
		if !ok {
			return fmt.Errorf("%w: block body result has unexpected type", shiperr.ErrDecode)
		}
		body = b
		return nil
	})
	g.Go(func() error {
		v, err := c.decodeOrPolicy(len(env.Traces) > 0, c.cfg.Request.Flags.FetchTraces, c.cfg.AllowEmptyTraces,
			decodepool.TypeTraces, env.Traces)
		if err != nil {
			return err
		}
		if v == nil {
			return nil
		}
		t, ok := v.([]types.TransactionTrace)
		if !ok {
			return fmt.Errorf("%w: traces result has unexpected type", shiperr.ErrDecode)
		}
		traces = t
		return nil
	})
	g.Go(func() error {
		v, err := c.decodeOrPolicy(len(env.Deltas) > 0, c.cfg.Request.Flags.FetchDeltas, c.cfg.AllowEmptyDeltas,
			decodepool.TypeDeltas, env.Deltas)
		if err != nil {
			return err
		}
		if v == nil {
			return nil
		}
		d, ok := v.([]types.TableDelta)
		if !ok {
			return fmt.Errorf("%w: deltas result has unexpected type", shiperr.ErrDecode)
		}
		deltas = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.DecodedBlock{}, err
	}

	sigMap := c.mineSignatures(body)
	filteredTraces := extract.Traces(traces)

	return types.DecodedBlock{
		Envelope: types.BlockEnvelope{
			ThisBlock:        *env.ThisBlock,
			Head:             env.Head,
			LastIrreversible: env.LastIrreversible,
			ResultVariant:    env.ResultVariant,
		},
		Timestamp:  body.Timestamp,
		Traces:     filteredTraces,
		Deltas:     deltas,
		Signatures: sigMap,
	}, nil
}

// decodeOrPolicy applies §4.6's missing-data policy: present payloads are
// submitted to the pool; absent ones are either tolerated (allowEmpty) or
// fatal, per whether this fetch flag was requested at all.
func (c *Client) decodeOrPolicy(present, requested, allowEmpty bool, taskType string, payload []byte) (any, error) {
	if !present {
		if !requested {
			return nil, nil
		}
		if allowEmpty {
			log.Warn("ship: requested payload missing from result, continuing", "type", taskType)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", shiperr.ErrMissingPayload, taskType)
	}
	res := c.pool.Decode(decodepool.Task{Type: taskType, Bytes: payload})
	if !res.Success {
		return nil, fmt.Errorf("%w: %s: %s", shiperr.ErrDecode, taskType, res.Message)
	}
	return res.Data, nil
}

// mineSignatures implements §4.6's signature mining: each packed
// transaction's packed_trx is tried against the candidate type list; a
// "transaction" match fingerprints every action in it.
func (c *Client) mineSignatures(body codec.BlockBody) types.SignatureMap {
	sigMap := make(types.SignatureMap)
	for _, receipt := range body.Transactions {
		if receipt.Packed == nil {
			continue
		}
		res, ok := codec.MinePackedTrx(receipt.Packed.PackedTrx)
		if !ok {
			log.Debug("ship: no candidate type matched packed_trx, signatures unavailable for this transaction")
			continue
		}
		if res.MatchedType != "transaction" {
			continue
		}
		for _, action := range res.Transaction.Actions {
			fp := c.hasher.Fingerprint(action)
			sigMap[fp] = receipt.Packed.Signatures
		}
	}
	return sigMap
}
