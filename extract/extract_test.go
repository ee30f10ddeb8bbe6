package extract

import (
	"testing"

	"github.com/telosevm/shipcore/types"
)

func TestTracesFiltersStatusAndReceiver(t *testing.T) {
	in := []types.TransactionTrace{
		{
			TrxID:  "tx1",
			Status: 0,
			ActionTraces: []types.RawActionTrace{
				{Receiver: "eosio.evm", Act: types.Action{Account: "eosio.evm", Name: "raw"}, GlobalSequence: 20},
				{Receiver: "alice", Act: types.Action{Account: "eosio.evm", Name: "raw"}, GlobalSequence: 21}, // inline notification, dropped
			},
		},
		{
			TrxID:  "tx2",
			Status: 1, // not executed, entire tx dropped
			ActionTraces: []types.RawActionTrace{
				{Receiver: "eosio.evm", Act: types.Action{Account: "eosio.evm", Name: "raw"}, GlobalSequence: 5},
			},
		},
		{
			TrxID:  "tx3",
			Status: 0,
			ActionTraces: []types.RawActionTrace{
				{Receiver: "eosio.token", Act: types.Action{Account: "eosio.token", Name: "transfer"}, GlobalSequence: 10},
			},
		},
	}

	out := Traces(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 kept traces, got %d", len(out))
	}
	// Sorted by global_sequence ascending across transactions: tx3 (10) before tx1 (20).
	if out[0].TrxID != "tx3" || out[1].TrxID != "tx1" {
		t.Fatalf("traces not sorted by global_sequence: got %+v", out)
	}
}

func TestGlobalRowFound(t *testing.T) {
	deltas := []types.TableDelta{
		{Code: "someother", Scope: "someother", Table: "global", Present: true, Payload: []byte("wrong")},
		{Code: "eosio", Scope: "eosio", Table: "global", Present: true, Payload: []byte("payload")},
	}
	got, ok := GlobalRow(deltas)
	if !ok {
		t.Fatalf("expected global row to be found")
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestGlobalRowAbsent(t *testing.T) {
	deltas := []types.TableDelta{
		{Code: "eosio.token", Scope: "alice", Table: "accounts", Present: true, Payload: []byte("x")},
	}
	_, ok := GlobalRow(deltas)
	if ok {
		t.Fatalf("expected no global row")
	}
}

func TestGlobalRowIgnoresDeletedDelta(t *testing.T) {
	deltas := []types.TableDelta{
		{Code: "eosio", Scope: "eosio", Table: "global", Present: false, Payload: []byte("stale")},
	}
	_, ok := GlobalRow(deltas)
	if ok {
		t.Fatalf("a deleted (Present=false) global row must not be returned")
	}
}
