package codec

import (
	"fmt"

	"github.com/telosevm/shipcore/types"
)

// contextFreeAction is an action with no authorization list, as carried in
// a transaction's context_free_actions. This pipeline never mines
// signatures from it (only authorized actions bind to a signing key), but
// the bytes must still be walked correctly to reach the actions that do.
func decodeContextFreeAction(r *Reader) error {
	if _, err := r.String(); err != nil { // account
		return fmt.Errorf("codec: read context_free_action account: %w", err)
	}
	if _, err := r.String(); err != nil { // name
		return fmt.Errorf("codec: read context_free_action name: %w", err)
	}
	if _, err := r.VarBytes(); err != nil { // data
		return fmt.Errorf("codec: read context_free_action data: %w", err)
	}
	return nil
}

// Transaction is the decoded body of a "transaction"-typed packed_trx: just
// the ordinary actions, in wire order. Fields irrelevant to signature
// mining (expiration, ref_block, resource limits, extensions) are walked
// but not retained.
type Transaction struct {
	Actions []types.Action
}

func decodeTransactionBody(r *Reader) (Transaction, error) {
	if _, err := r.Uint32LE(); err != nil { // expiration
		return Transaction{}, fmt.Errorf("codec: read expiration: %w", err)
	}
	if _, err := r.Uint16LE(); err != nil { // ref_block_num
		return Transaction{}, fmt.Errorf("codec: read ref_block_num: %w", err)
	}
	if _, err := r.Uint32LE(); err != nil { // ref_block_prefix
		return Transaction{}, fmt.Errorf("codec: read ref_block_prefix: %w", err)
	}
	if _, err := r.VarUint32(); err != nil { // max_net_usage_words
		return Transaction{}, fmt.Errorf("codec: read max_net_usage_words: %w", err)
	}
	if _, err := r.Byte(); err != nil { // max_cpu_usage_ms
		return Transaction{}, fmt.Errorf("codec: read max_cpu_usage_ms: %w", err)
	}
	if _, err := r.VarUint32(); err != nil { // delay_sec
		return Transaction{}, fmt.Errorf("codec: read delay_sec: %w", err)
	}

	cfaCount, err := r.VarUint32()
	if err != nil {
		return Transaction{}, fmt.Errorf("codec: read context_free_actions count: %w", err)
	}
	for i := uint32(0); i < cfaCount; i++ {
		if err := decodeContextFreeAction(r); err != nil {
			return Transaction{}, err
		}
	}

	actionCount, err := r.VarUint32()
	if err != nil {
		return Transaction{}, fmt.Errorf("codec: read actions count: %w", err)
	}
	actions := make([]types.Action, actionCount)
	for i := range actions {
		actions[i], err = decodeAction(r)
		if err != nil {
			return Transaction{}, fmt.Errorf("codec: read action %d: %w", i, err)
		}
	}

	extCount, err := r.VarUint32()
	if err != nil {
		return Transaction{}, fmt.Errorf("codec: read transaction_extensions count: %w", err)
	}
	for i := uint32(0); i < extCount; i++ {
		if _, err := r.Uint16LE(); err != nil {
			return Transaction{}, fmt.Errorf("codec: read extension type: %w", err)
		}
		if _, err := r.VarBytes(); err != nil {
			return Transaction{}, fmt.Errorf("codec: read extension data: %w", err)
		}
	}
	return Transaction{Actions: actions}, nil
}

// snapshotRow is the shared wire shape of the code_v0/account_v0/
// contract_table_v0/contract_row_v0 candidates (and their unversioned
// aliases): a named, scoped row with an opaque payload. None of these
// candidates yield signable actions; they exist only so the ordered
// candidate search in MinePackedTrx can recognize (and stop at) a
// packed_trx that happens to carry one instead of a plain transaction.
type snapshotRow struct {
	name, scope, table string
	payload            []byte
}

func decodeSnapshotRow(r *Reader) (snapshotRow, error) {
	name, err := r.String()
	if err != nil {
		return snapshotRow{}, err
	}
	scope, err := r.String()
	if err != nil {
		return snapshotRow{}, err
	}
	table, err := r.String()
	if err != nil {
		return snapshotRow{}, err
	}
	payload, err := r.VarBytes()
	if err != nil {
		return snapshotRow{}, err
	}
	return snapshotRow{name: name, scope: scope, table: table, payload: payload}, nil
}

// candidateTypeNames is the ordered list §4.6 specifies: the first type
// whose decode succeeds (and, under CheckLength, consumes every byte) wins.
var candidateTypeNames = []string{
	"transaction",
	"code_v0",
	"account_v0",
	"contract_table_v0",
	"contract_row_v0",
	"code",
	"account",
	"contract_table",
	"contract_row",
}

// MineResult is the outcome of attempting every candidate type against one
// packed_trx.
type MineResult struct {
	MatchedType string
	Transaction Transaction // only meaningful when MatchedType == "transaction"
}

// MinePackedTrx attempts to decode raw as each candidate type in order,
// returning the first success. ok is false if every candidate failed, in
// which case the caller logs and continues (§4.6): the block is still
// emittable, just without signatures mined from this transaction.
func MinePackedTrx(raw []byte) (MineResult, bool) {
	if tx, err := Decode(raw, CheckLength, decodeTransactionBody); err == nil {
		return MineResult{MatchedType: "transaction", Transaction: tx}, true
	}
	for _, name := range candidateTypeNames[1:] {
		if _, err := Decode(raw, CheckLength, decodeSnapshotRow); err == nil {
			return MineResult{MatchedType: name}, true
		}
	}
	return MineResult{}, false
}
