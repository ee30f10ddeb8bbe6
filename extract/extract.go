// Package extract pulls the EVM-relevant pieces out of a block's raw
// decoded payloads: the flattened, ordered action-trace list, and the
// singleton eosio/eosio/global row that carries the EVM block number.
package extract

import (
	"sort"

	"github.com/telosevm/shipcore/types"
)

const (
	statusExecuted = uint8(0)

	globalCode  = "eosio"
	globalScope = "eosio"
	globalTable = "global"
)

// Traces flattens every transaction_trace_v0 entry whose Status is
// "executed", keeping only action traces where Receiver == Act.Account
// (dropping inline notifications), and returns them sorted globally by
// GlobalSequence ascending. The global sort preserves canonical execution
// order across transactions within the block.
func Traces(txTraces []types.TransactionTrace) []types.ActionTrace {
	type ordered struct {
		seq   uint64
		trace types.ActionTrace
	}

	var kept []ordered
	for _, tx := range txTraces {
		if tx.Status != statusExecuted {
			continue
		}
		for _, at := range tx.ActionTraces {
			if at.Receiver != at.Act.Account {
				continue // inline notification, not the point of execution
			}
			kept = append(kept, ordered{
				seq: at.GlobalSequence,
				trace: types.ActionTrace{
					TrxID:  tx.TrxID,
					Status: tx.Status,
					Act:    at.Act,
				},
			})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].seq < kept[j].seq })

	out := make([]types.ActionTrace, len(kept))
	for i, o := range kept {
		out[i] = o.trace
	}
	return out
}

// GlobalRow scans the block's table deltas for the singleton
// eosio/eosio/global row and returns its payload. It returns (nil, false)
// when the row is absent, which the caller (BlockAssembler) must treat as
// MissingGlobalRow: non-fatal, accumulate into the limbo buffer.
func GlobalRow(deltas []types.TableDelta) (payload []byte, ok bool) {
	for _, d := range deltas {
		if !d.Present {
			continue
		}
		if d.Code == globalCode && d.Scope == globalScope && d.Table == globalTable {
			return d.Payload, true
		}
	}
	return nil, false
}
