// Package assembler implements the Block Assembler (§4.7): it correlates
// one block's decoded traces, deltas, and block body into an ordered EVM
// transaction list, resolves "limbo" blocks whose EVM block number is not
// yet known, and emits ProcessedBlock to a Sink in strict native-block
// order.
package assembler

import (
	"fmt"

	"github.com/telosevm/shipcore/actionhash"
	"github.com/telosevm/shipcore/codec"
	"github.com/telosevm/shipcore/extract"
	"github.com/telosevm/shipcore/ship"
	"github.com/telosevm/shipcore/shiperr"
	"github.com/telosevm/shipcore/statemachine"
	"github.com/telosevm/shipcore/types"
)

const (
	acctEVM   = "eosio.evm"
	acctToken = "eosio.token"
	acctMsig  = "eosio.msig"

	actRaw      = "raw"
	actWithdraw = "withdraw"
	actTransfer = "transfer"
	actExec     = "exec"
)

// transferBlacklist names token-transfer senders that are never an EVM
// deposit even when addressed to eosio.evm (system accounts moving their
// own balance, not a user deposit).
var transferBlacklist = map[string]bool{
	"eosio":       true,
	"eosio.stake": true,
	"eosio.ram":   true,
}

// Handler dispatches one whitelisted action to its external decoder
// collaborator (§6: out of scope for behavior, fixed here only as a
// contract). gasUsedBlock is the running cumulative gas for the native
// block being assembled.
type Handler func(act types.Action, gasUsedBlock uint64) (types.EVMTx, error)

// Handlers bundles the three decoder collaborators BlockAssembler
// dispatches to (§4.7 step 6).
type Handlers struct {
	Raw      Handler // eosio.evm::raw
	Withdraw Handler // eosio.evm::withdraw
	Deposit  Handler // eosio.token::transfer, to == eosio.evm
}

// Config configures one Assembler.
type Config struct {
	Debug          bool // accumulate TxDeserializationError into errors[] instead of aborting
	ActionHashMode actionhash.Mode

	// OnEmit, if set, is called with every ProcessedBlock after the sink's
	// IndexBlock call for it has returned without error (e.g. to republish a head to the
	// broadcaster). It must not block.
	OnEmit func(types.ProcessedBlock)
}

type pendingBlock struct {
	nativeBlockHash   []byte
	nativeBlockNumber uint32
	timestamp         int64
	records           []types.ActionRecord
	errs              []string
}

// Assembler is the BlockAssembler. It is built to run on a single
// goroutine (§5: single-threaded cooperative main loop); it is not
// internally synchronized beyond the atomically-published state snapshot.
type Assembler struct {
	cfg      Config
	hasher   *actionhash.Hasher
	handlers Handlers
	sink     Sink
	sm       *statemachine.Machine

	hasEVMBlockNumber bool
	evmBlockNumber    uint64

	hasEmitted  bool
	lastEmitted uint32

	limbo []pendingBlock
}

// New builds an Assembler delivering to sink.
func New(cfg Config, handlers Handlers, sink Sink) *Assembler {
	return &Assembler{
		cfg:      cfg,
		hasher:   actionhash.New(cfg.ActionHashMode),
		handlers: handlers,
		sink:     sink,
		sm:       statemachine.New(),
	}
}

// Snapshot implements ship.StateObserver: the reader polls this to decide
// queued (SYNC) vs immediate (HEAD) dispatch (§4.8, §9).
func (a *Assembler) Snapshot() ship.StateSnapshot {
	return a.sm.Snapshot()
}

// Seed resumes the assembler from a persisted watermark (§2 "startup
// resume from sink"): both the incoming-sequence tracker and the
// emission-order tracker are advanced to lastBlockNum, so the next freshly
// streamed block and the next emitted ProcessedBlock are both expected to
// be lastBlockNum+1, exactly as if this process had emitted lastBlockNum
// itself. state restores the persisted SYNC/HEAD phase, since the
// SYNC→HEAD transition must not be replayed on every restart.
func (a *Assembler) Seed(lastBlockNum uint32, state types.IndexerState) {
	a.sm.Seed(lastBlockNum, state)
	a.lastEmitted = lastBlockNum
	a.hasEmitted = true
}

// ProcessBlock implements §4.7 end to end for one decoded block. A
// returned error is always fatal: the caller (ship.Client) pauses its
// queue and the session aborts.
func (a *Assembler) ProcessBlock(block types.DecodedBlock) error {
	blockNum := block.Envelope.ThisBlock.BlockNum

	if err := a.sm.Accept(blockNum); err != nil {
		return err
	}

	pending, err := a.buildPendingBlock(block)
	if err != nil {
		return err
	}

	globalPayload, hasGlobal := extract.GlobalRow(block.Deltas)
	if !hasGlobal {
		a.limbo = append(a.limbo, pending)
		a.sm.UpdateHeadDistance(block.Envelope.Head.BlockNum)
		return nil
	}

	global, err := codec.DecodeGlobalRow(globalPayload)
	if err != nil {
		return fmt.Errorf("assembler: decode global row: %w", err)
	}
	a.hasEVMBlockNumber = true
	a.evmBlockNumber = uint64(global.BlockNum)

	a.limbo = append(a.limbo, pending)
	flush := a.limbo
	a.limbo = nil

	for _, pb := range flush {
		processed := types.ProcessedBlock{
			NativeBlockHash:   pb.nativeBlockHash,
			NativeBlockNumber: pb.nativeBlockNumber,
			EVMBlockNumber:    a.evmBlockNumber,
			BlockTimestamp:    pb.timestamp,
			EVMTxs:            pb.records,
			Errors:            pb.errs,
		}
		if err := a.emit(processed); err != nil {
			return err
		}
	}

	a.sm.UpdateHeadDistance(block.Envelope.Head.BlockNum)
	return nil
}

// emit enforces the emission-order invariant (nativeBlockNumber strictly
// lastEmitted+1) separately from statemachine.Machine's incoming-sequence
// gap/fork check: a block accepted into the pipeline can sit in limbo for
// several more blocks before its turn to reach the sink.
func (a *Assembler) emit(processed types.ProcessedBlock) error {
	if a.hasEmitted && processed.NativeBlockNumber != a.lastEmitted+1 {
		return fmt.Errorf("assembler: emission order violated: emitting %d after %d", processed.NativeBlockNumber, a.lastEmitted)
	}
	meta := BlockMeta{
		Timestamp:      processed.BlockTimestamp,
		GlobalBlockNum: processed.EVMBlockNumber,
		EVMBlockHash:   evmBlockHashOf(processed.EVMTxs),
	}
	if err := a.sink.IndexBlock(processed.NativeBlockNumber, processed.EVMTxs, meta); err != nil {
		return fmt.Errorf("assembler: sink.IndexBlock: %w", err)
	}
	a.lastEmitted = processed.NativeBlockNumber
	a.hasEmitted = true
	if a.cfg.OnEmit != nil {
		a.cfg.OnEmit(processed)
	}
	return nil
}

// buildPendingBlock implements §4.7 steps 4-7: filter whitelisted traces,
// resolve signatures, dispatch to the matching decoder collaborator, and
// collect gasUsedBlock as a running cumulative.
func (a *Assembler) buildPendingBlock(block types.DecodedBlock) (pendingBlock, error) {
	pb := pendingBlock{
		nativeBlockHash:   block.Envelope.ThisBlock.BlockID,
		nativeBlockNumber: block.Envelope.ThisBlock.BlockNum,
		timestamp:         block.Timestamp.Unix(),
	}

	var gasUsedBlock uint64
	for i, trace := range block.Traces {
		handler, ok := a.dispatchTarget(trace.Act)
		if !ok {
			continue
		}
		if handler == nil {
			// whitelisted but with no decoder contract (eosio.msig::exec):
			// it passes the filter but produces no EVMTx.
			continue
		}

		sigs := a.findSignatures(block, trace)
		evmTx, err := handler(trace.Act, gasUsedBlock)
		if err != nil {
			wrapped := fmt.Errorf("%w: %s::%s: %v", shiperr.ErrTxDeserialization, trace.Act.Account, trace.Act.Name, err)
			if !a.cfg.Debug {
				return pendingBlock{}, wrapped
			}
			pb.errs = append(pb.errs, wrapped.Error())
			continue
		}
		gasUsedBlock = evmTx.GasUsedBlock

		pb.records = append(pb.records, types.ActionRecord{
			TrxID:         trace.TrxID,
			ActionOrdinal: i,
			Signatures:    sigs,
			EVMTx:         evmTx,
		})
	}
	return pb, nil
}

// dispatchTarget implements §4.7 steps 4 and 6: ok reports whether the
// trace passes the whitelist; a nil handler with ok == true means the
// trace is whitelisted but has no decoder contract (msig::exec).
func (a *Assembler) dispatchTarget(act types.Action) (handler Handler, ok bool) {
	switch act.Account {
	case acctEVM:
		switch act.Name {
		case actRaw:
			return a.handlers.Raw, true
		case actWithdraw:
			return a.handlers.Withdraw, true
		}
	case acctToken:
		if act.Name != actTransfer {
			return nil, false
		}
		from, to, err := decodeTransferFromTo(act.Data)
		if err != nil || to != acctEVM || transferBlacklist[from] {
			return nil, false
		}
		return a.handlers.Deposit, true
	case acctMsig:
		if act.Name == actExec {
			return nil, true
		}
	}
	return nil, false
}

// findSignatures implements §4.7 step 5: search the transaction's traces,
// in order, for the first fingerprint present in the block's signature
// map. A miss yields an empty (non-fatal) signature list.
func (a *Assembler) findSignatures(block types.DecodedBlock, trace types.ActionTrace) []string {
	if sigs, ok := block.Signatures[a.hasher.Fingerprint(trace.Act)]; ok {
		return sigs
	}
	for _, other := range block.Traces {
		if other.TrxID != trace.TrxID {
			continue
		}
		if sigs, ok := block.Signatures[a.hasher.Fingerprint(other.Act)]; ok {
			return sigs
		}
	}
	return nil
}

func decodeTransferFromTo(data []byte) (from, to string, err error) {
	r := codec.NewReader(data)
	from, err = r.String()
	if err != nil {
		return "", "", err
	}
	to, err = r.String()
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

// evmBlockHashOf pulls an opaque hash out of the first record whose
// EVMTx.Payload exposes one. The EVM block hash is an external
// collaborator's output (§9); this assembler never computes it.
func evmBlockHashOf(records []types.ActionRecord) []byte {
	for _, r := range records {
		if hasher, ok := r.EVMTx.Payload.(interface{ EVMBlockHash() []byte }); ok {
			if h := hasher.EVMBlockHash(); h != nil {
				return h
			}
		}
	}
	return nil
}
