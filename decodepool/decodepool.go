// Package decodepool runs CPU-bound binary decode off the ShipClient's
// single-threaded frame handler (§4.4, §5). The pool is a pure
// execute(batch) -> result service: workers receive opaque bytes and return
// opaque values, with no shared mutable state between them.
package decodepool

import (
	"fmt"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ethereum/go-ethereum/metrics"

	"github.com/telosevm/shipcore/codec"
	"github.com/telosevm/shipcore/types"
)

var (
	metricDecodesTotal  = metrics.NewRegisteredCounter("shipcore/decodepool/decodes", nil)
	metricDecodeFailure = metrics.NewRegisteredCounter("shipcore/decodepool/failures", nil)
	metricDecodeTimer   = metrics.NewRegisteredTimer("shipcore/decodepool/latency", nil)
)

// Task is one unit of decode work: Type selects which codec entry point to
// invoke, following the "kind:arg" convention ("traces", "deltas",
// "block:<result_variant>").
type Task struct {
	Type  string
	Bytes []byte
}

const (
	TypeTraces      = "traces"
	TypeDeltas      = "deltas"
	blockTypePrefix = "block:"
)

// BlockTaskType builds the Task.Type selecting a block-body decode for the
// given get_blocks_result variant.
func BlockTaskType(resultVariant string) string {
	return blockTypePrefix + resultVariant
}

// Result is what a decode task reports back: exactly one of Data or Message
// is meaningful, mirroring §4.4's {success, data | message} contract.
type Result struct {
	Success bool
	Data    any
	Message string
}

// Pool is the DecodeWorkerPool. A Pool is bound to one Schema for its
// entire lifetime: reconnecting tears down the pool and schema together and
// builds a fresh pair (§4.6 AWAITING_ABI).
type Pool struct {
	schema *codec.Schema
	ants   *ants.Pool // nil when size == 0 (inline fallback, §4.4)
}

// New builds a pool of the given size bound to schema. size == 0 selects
// the inline fallback: Decode/DecodeBatch then run synchronously on the
// caller's goroutine.
func New(size int, schema *codec.Schema) (*Pool, error) {
	if size <= 0 {
		return &Pool{schema: schema}, nil
	}
	p, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("decodepool: create pool: %w", err)
	}
	return &Pool{schema: schema, ants: p}, nil
}

// Release tears down the underlying goroutine pool. Safe to call on an
// inline (size == 0) Pool.
func (p *Pool) Release() {
	if p.ants != nil {
		p.ants.Release()
	}
}

// Decode runs one task, on a pool worker if one is configured, blocking
// until the result is ready.
func (p *Pool) Decode(task Task) Result {
	if p.ants == nil {
		return p.run(task)
	}
	ch := make(chan Result, 1)
	if err := p.ants.Submit(func() { ch <- p.run(task) }); err != nil {
		return Result{Success: false, Message: fmt.Sprintf("decodepool: submit: %v", err)}
	}
	return <-ch
}

// DecodeBatch runs every task, bounding concurrency at the pool's size (or
// running inline if size == 0), and returns results in the same order as
// tasks — each result is written to its own pre-sized slot, so arrival
// order inside the pool never reorders the output.
func (p *Pool) DecodeBatch(tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if p.ants == nil {
		for i, t := range tasks {
			results[i] = p.run(t)
		}
		return results
	}

	done := make(chan struct{}, len(tasks))
	for i, t := range tasks {
		i, t := i, t
		if err := p.ants.Submit(func() {
			results[i] = p.run(t)
			done <- struct{}{}
		}); err != nil {
			results[i] = Result{Success: false, Message: fmt.Sprintf("decodepool: submit: %v", err)}
			done <- struct{}{}
		}
	}
	for range tasks {
		<-done
	}
	return results
}

func (p *Pool) run(task Task) Result {
	metricDecodesTotal.Inc(1)
	start := time.Now()
	defer func() { metricDecodeTimer.UpdateSince(start) }()

	data, err := p.decode(task)
	if err != nil {
		metricDecodeFailure.Inc(1)
		return Result{Success: false, Message: err.Error()}
	}
	return Result{Success: true, Data: data}
}

func (p *Pool) decode(task Task) (any, error) {
	switch {
	case task.Type == TypeTraces:
		return codec.DecodeTransactionTraces(task.Bytes)
	case task.Type == TypeDeltas:
		return codec.DecodeTableDeltas(task.Bytes)
	case strings.HasPrefix(task.Type, blockTypePrefix):
		resultVariant := strings.TrimPrefix(task.Type, blockTypePrefix)
		return codec.DecodeBlockBody(p.schema, resultVariant, task.Bytes)
	default:
		return nil, fmt.Errorf("decodepool: unknown task type %q", task.Type)
	}
}

// TracesOf is a typed convenience accessor over Result.Data for traces
// tasks.
func TracesOf(r Result) ([]types.TransactionTrace, bool) {
	v, ok := r.Data.([]types.TransactionTrace)
	return v, ok
}

// DeltasOf is a typed convenience accessor over Result.Data for deltas
// tasks.
func DeltasOf(r Result) ([]types.TableDelta, bool) {
	v, ok := r.Data.([]types.TableDelta)
	return v, ok
}

// BlockBodyOf is a typed convenience accessor over Result.Data for block
// tasks.
func BlockBodyOf(r Result) (codec.BlockBody, bool) {
	v, ok := r.Data.(codec.BlockBody)
	return v, ok
}
