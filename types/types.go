// Package types holds the data model shared across the ship reader, the
// block assembler, and the downstream sink/broadcaster. None of these types
// carry behavior beyond small helpers; component packages own the logic.
package types

import (
	"fmt"
	"time"
)

// BlockPosition is the node's notion of "a block at this position": its
// number and its ID (content hash of the position, not the EVM block hash).
type BlockPosition struct {
	BlockNum uint32 `json:"block_num"`
	BlockID  []byte `json:"block_id"`
}

func (p BlockPosition) String() string {
	return fmt.Sprintf("#%d/%x", p.BlockNum, p.BlockID)
}

// FetchFlags selects which payloads the node should include in each
// get_blocks_result.
type FetchFlags struct {
	FetchBlock  bool
	FetchTraces bool
	FetchDeltas bool
}

// BlockRequest is the session configuration sent as get_blocks_request_v0
// and mutated only between ACK boundaries.
type BlockRequest struct {
	StartBlockNum       uint32
	EndBlockNum         uint32 // exclusive; defaults to math.MaxUint32
	MaxMessagesInFlight uint32
	IrreversibleOnly    bool
	HavePositions       []BlockPosition
	Flags               FetchFlags
}

// DefaultEndBlockNum is used when the caller does not bound the range.
const DefaultEndBlockNum = ^uint32(0)

// BlockEnvelope is the raw, partially-decoded block as received from the
// node: the position triple plus opaque payload blobs.
type BlockEnvelope struct {
	ThisBlock          BlockPosition
	Head               BlockPosition
	LastIrreversible   BlockPosition
	ResultVariant      string // get_blocks_result_v0 | v1 | v2
	BlockBytes         []byte // opaque, absent if not fetched
	TracesBytes        []byte
	DeltasBytes        []byte
}

// Authorization is one permission entry attached to an action.
type Authorization struct {
	Actor      string
	Permission string
}

// Action is a native contract action as carried inside a transaction trace.
type Action struct {
	Account       string
	Name          string
	Authorization []Authorization
	Data          []byte
}

// ActionTrace pairs an action with the identity of the transaction that
// produced it and that transaction's execution status. It is the flattened,
// filtered output of extract.Traces.
type ActionTrace struct {
	TrxID  string
	Status uint8 // 0 == executed
	Act    Action
}

// RawActionTrace is one nested action trace inside a TransactionTrace, as
// decoded straight off the wire, before extraction flattens and filters it.
// Receiver may differ from Act.Account: when it does, the trace is an
// inline notification rather than the action's point of execution.
type RawActionTrace struct {
	Receiver       string
	Act            Action
	GlobalSequence uint64
}

// TransactionTrace is a decoded transaction_trace_v0 entry: one transaction
// and every action it executed, in wire order.
type TransactionTrace struct {
	TrxID        string
	Status       uint8 // 0 == executed
	ActionTraces []RawActionTrace
}

// TableDelta is a single contract-row change as carried in the deltas
// payload of a block.
type TableDelta struct {
	Code    string
	Scope   string
	Table   string
	Present bool
	Payload []byte // opaque row payload, decoded lazily per whitelist
}

// DecodedBlock is the envelope after parallel binary decoding: the block
// body's timestamp, structured traces and deltas, and the signature map
// mined from the block body's transactions.
type DecodedBlock struct {
	Envelope   BlockEnvelope
	Timestamp  time.Time
	Traces     []ActionTrace
	Deltas     []TableDelta
	Signatures SignatureMap
}

// SignatureMap maps an action fingerprint (see package actionhash) to the
// ordered list of signatures attached to the transaction that carried it,
// scoped to a single block.
type SignatureMap map[string][]string

// EVMTx is opaque to this module: the output of the raw/deposit/withdraw
// decoder collaborators. GasUsedBlock is the only field this module reads.
type EVMTx struct {
	GasUsedBlock uint64
	Payload      any
}

// ActionRecord is an EVM-relevant action selected from traces.
type ActionRecord struct {
	TrxID         string
	ActionOrdinal int
	Signatures    []string
	EVMTx         EVMTx
}

// ProcessedBlock is the assembled output delivered to the sink and
// broadcaster.
type ProcessedBlock struct {
	NativeBlockHash   []byte
	NativeBlockNumber uint32
	EVMBlockNumber    uint64
	BlockTimestamp    int64 // unix seconds
	EVMTxs            []ActionRecord
	Errors            []string
}

// IndexerState is the two-phase SYNC/HEAD state. It is monotonic: once HEAD
// is reached the pipeline never reverts to SYNC.
type IndexerState int

const (
	StateSync IndexerState = iota
	StateHead
)

func (s IndexerState) String() string {
	if s == StateHead {
		return "HEAD"
	}
	return "SYNC"
}

// HeadHorizon is the head-distance threshold (in blocks) at or below which
// the state machine transitions from SYNC to HEAD.
const HeadHorizon = 100
