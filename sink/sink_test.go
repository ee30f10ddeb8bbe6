package sink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telosevm/shipcore/assembler"
	"github.com/telosevm/shipcore/types"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetLastIndexedBlockEmptyReturnsNil(t *testing.T) {
	s := openTestSink(t)
	last, err := s.GetLastIndexedBlock()
	if err != nil {
		t.Fatalf("GetLastIndexedBlock failed: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil on empty sink, got %+v", last)
	}
}

func TestIndexBlockRoundTrips(t *testing.T) {
	s := openTestSink(t)

	actions := []types.ActionRecord{
		{TrxID: "t1", ActionOrdinal: 0, Signatures: []string{"SIG_K1_abc"}, EVMTx: types.EVMTx{GasUsedBlock: 21000}},
	}
	meta := assembler.BlockMeta{Timestamp: 123456, GlobalBlockNum: 42, EVMBlockHash: []byte{0xde, 0xad}}

	require.NoError(t, s.IndexBlock(7, actions, meta))

	gotActions, gotMeta, ok, err := s.GetBlock(7)
	require.NoError(t, err)
	require.True(t, ok, "expected block 7 to be found")
	require.Len(t, gotActions, 1)
	require.Equal(t, "t1", gotActions[0].TrxID)
	require.Equal(t, uint64(42), gotMeta.GlobalBlockNum)

	last, err := s.GetLastIndexedBlock()
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, uint32(7), last.BlockNum)
}

func TestGetBlockMissingReturnsNotOK(t *testing.T) {
	s := openTestSink(t)
	_, _, ok, err := s.GetBlock(999)
	if err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for never-indexed block")
	}
}

func TestIndexerStateDefaultsToSync(t *testing.T) {
	s := openTestSink(t)
	state, err := s.GetIndexerState()
	if err != nil {
		t.Fatalf("GetIndexerState failed: %v", err)
	}
	if state != types.StateSync {
		t.Fatalf("expected default SYNC state, got %v", state)
	}
}

func TestIndexerStatePersists(t *testing.T) {
	s := openTestSink(t)
	if err := s.IndexState(types.StateHead); err != nil {
		t.Fatalf("IndexState failed: %v", err)
	}
	state, err := s.GetIndexerState()
	if err != nil {
		t.Fatalf("GetIndexerState failed: %v", err)
	}
	if state != types.StateHead {
		t.Fatalf("expected HEAD state, got %v", state)
	}
}
