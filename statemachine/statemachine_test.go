package statemachine

import (
	"errors"
	"testing"

	"github.com/telosevm/shipcore/shiperr"
	"github.com/telosevm/shipcore/types"
)

func TestAcceptSequentialBlocks(t *testing.T) {
	m := New()
	for i := uint32(1); i <= 5; i++ {
		if err := m.Accept(i); err != nil {
			t.Fatalf("Accept(%d) failed: %v", i, err)
		}
	}
	last, ok := m.LastAccepted()
	if !ok || last != 5 {
		t.Fatalf("expected lastAccepted 5, got %d (ok=%v)", last, ok)
	}
}

func TestAcceptDetectsGap(t *testing.T) {
	m := New()
	if err := m.Accept(1); err != nil {
		t.Fatalf("Accept(1) failed: %v", err)
	}
	err := m.Accept(3)
	if !errors.Is(err, shiperr.ErrGap) {
		t.Fatalf("expected ErrGap, got %v", err)
	}
}

func TestAcceptDetectsFork(t *testing.T) {
	m := New()
	if err := m.Accept(5); err != nil {
		t.Fatalf("Accept(5) failed: %v", err)
	}
	err := m.Accept(5)
	if !errors.Is(err, shiperr.ErrFork) {
		t.Fatalf("expected ErrFork, got %v", err)
	}
	err = m.Accept(4)
	if !errors.Is(err, shiperr.ErrFork) {
		t.Fatalf("expected ErrFork on block before lastAccepted, got %v", err)
	}
}

func TestUpdateHeadDistanceTransitionsOnceWithinHorizon(t *testing.T) {
	m := New()
	if err := m.Accept(1); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	m.UpdateHeadDistance(1000)
	if m.Snapshot().State != types.StateSync {
		t.Fatalf("expected SYNC while far from head, got %v", m.Snapshot().State)
	}

	m.UpdateHeadDistance(50)
	if m.Snapshot().State != types.StateHead {
		t.Fatalf("expected HEAD once within horizon, got %v", m.Snapshot().State)
	}
}

func TestUpdateHeadDistanceIsMonotonic(t *testing.T) {
	m := New()
	if err := m.Accept(1); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	m.UpdateHeadDistance(1)
	if m.Snapshot().State != types.StateHead {
		t.Fatalf("expected HEAD, got %v", m.Snapshot().State)
	}

	m.UpdateHeadDistance(100000)
	if m.Snapshot().State != types.StateHead {
		t.Fatalf("expected HEAD to remain sticky, got %v", m.Snapshot().State)
	}
}

func TestSnapshotReflectsLastOrderedBlock(t *testing.T) {
	m := New()
	if err := m.Accept(7); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	m.UpdateHeadDistance(7)
	if got := m.Snapshot().LastOrderedBlock; got != 7 {
		t.Fatalf("expected LastOrderedBlock 7, got %d", got)
	}
}
