// Package statemachine implements the two-phase SYNC/HEAD indexer state
// machine (§4.8, §9): it tracks the last native block accepted into the
// pipeline, detects gaps and forks in the incoming block-number sequence,
// and publishes a {state, lastOrderedBlock} snapshot the ShipClient polls
// to decide queued (SYNC) vs immediate (HEAD) dispatch. It is the single
// resolution to the reader/assembler cyclic reference (§9 Design Notes):
// the assembler owns a Machine and publishes into it; the reader only
// ever reads through ship.StateObserver.
package statemachine

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"

	"github.com/telosevm/shipcore/ship"
	"github.com/telosevm/shipcore/shiperr"
	"github.com/telosevm/shipcore/types"
)

// Machine is safe for Snapshot to be called from any goroutine; Accept and
// UpdateHeadDistance are assumed single-threaded (the assembler's own
// cooperative main loop, §5).
type Machine struct {
	hasAccepted  bool
	lastAccepted uint32

	snapshot atomic.Pointer[ship.StateSnapshot]
}

// New returns a Machine starting in SYNC with no accepted blocks.
func New() *Machine {
	m := &Machine{}
	m.snapshot.Store(&ship.StateSnapshot{State: types.StateSync})
	return m
}

// Snapshot implements ship.StateObserver.
func (m *Machine) Snapshot() ship.StateSnapshot {
	return *m.snapshot.Load()
}

// LastAccepted reports the last accepted native block number, if any.
func (m *Machine) LastAccepted() (uint32, bool) {
	return m.lastAccepted, m.hasAccepted
}

// Seed resumes the machine from a persisted watermark (§2 "startup resume
// from sink"): lastAccepted is taken as already emitted, so the next call
// to Accept must present lastAccepted+1, and state is restored as-is since
// SYNC→HEAD is monotonic and a prior HEAD transition must not be replayed.
func (m *Machine) Seed(lastAccepted uint32, state types.IndexerState) {
	m.lastAccepted = lastAccepted
	m.hasAccepted = true
	m.snapshot.Store(&ship.StateSnapshot{State: state, LastOrderedBlock: lastAccepted})
}

// Accept validates blockNum against the running sequence (gap/fork
// detection, §4.7 step 1-2) and, if valid, records it as accepted. It does
// not itself publish a new snapshot; call UpdateHeadDistance afterward
// once the caller knows the block's reported head distance.
func (m *Machine) Accept(blockNum uint32) error {
	if m.hasAccepted {
		if blockNum > m.lastAccepted+1 {
			return fmt.Errorf("%w: block %d, expected %d", shiperr.ErrGap, blockNum, m.lastAccepted+1)
		}
		if blockNum <= m.lastAccepted {
			return fmt.Errorf("%w: block %d re-observed, lastAccepted %d", shiperr.ErrFork, blockNum, m.lastAccepted)
		}
	}
	m.lastAccepted = blockNum
	m.hasAccepted = true
	return nil
}

// UpdateHeadDistance recomputes the SYNC→HEAD transition and publishes the
// resulting snapshot. The transition is monotonic: once HEAD is reached it
// is never cleared back to SYNC.
func (m *Machine) UpdateHeadDistance(headBlockNum uint32) {
	current := m.snapshot.Load()
	state := current.State
	if state == types.StateSync && m.hasAccepted {
		headDistance := int64(headBlockNum) - int64(m.lastAccepted)
		if headDistance <= types.HeadHorizon {
			state = types.StateHead
			log.Info("statemachine: head horizon reached, switching to immediate dispatch", "block", m.lastAccepted, "head", headBlockNum)
		}
	}
	m.snapshot.Store(&ship.StateSnapshot{State: state, LastOrderedBlock: m.lastAccepted})
}
