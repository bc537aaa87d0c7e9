package domain

import (
	"errors"
	"testing"
)

func TestProgressState_NextChunk(t *testing.T) {
	tests := []struct {
		name      string
		progress  ProgressState
		chunkSize int
		want      int
	}{
		{
			name:      "full chunk available",
			progress:  ProgressState{RowsProcessed: 0, RowsTotal: 2500},
			chunkSize: 1000,
			want:      1000,
		},
		{
			name:      "partial last chunk",
			progress:  ProgressState{RowsProcessed: 2000, RowsTotal: 2500},
			chunkSize: 1000,
			want:      500,
		},
		{
			name:      "already complete",
			progress:  ProgressState{RowsProcessed: 2500, RowsTotal: 2500},
			chunkSize: 1000,
			want:      0,
		},
		{
			name:      "empty result set",
			progress:  ProgressState{RowsProcessed: 0, RowsTotal: 0},
			chunkSize: 1000,
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.progress.NextChunk(tt.chunkSize); got != tt.want {
				t.Errorf("NextChunk() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProgressState_Advance(t *testing.T) {
	p := NewProgressState(2500)
	if !p.IsFirstStep {
		t.Fatal("Expected new progress to be on its first step")
	}

	p, err := p.Advance(1000)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if p.RowsProcessed != 1000 {
		t.Errorf("Expected 1000 rows processed, got %d", p.RowsProcessed)
	}
	if p.IsFirstStep {
		t.Error("Expected IsFirstStep to be cleared after the first advance")
	}

	before := p
	_, err = p.Advance(2000)
	if !errors.Is(err, ErrLedgerOverflow) {
		t.Errorf("Expected ErrLedgerOverflow, got %v", err)
	}
	if p != before {
		t.Error("Expected progress to be unchanged after a rejected advance")
	}

	if _, err := p.Advance(-1); err == nil {
		t.Error("Expected error for negative advance")
	}
}

func TestProgressState_FractionComplete(t *testing.T) {
	if got := (ProgressState{RowsTotal: 0}).FractionComplete(); got != 1.0 {
		t.Errorf("Expected empty set to be complete, got %v", got)
	}

	p := NewProgressState(2500)
	expected := []float64{0.4, 0.8, 1.0}
	last := p.FractionComplete()
	for i, want := range expected {
		p, _ = p.Advance(p.NextChunk(1000))
		got := p.FractionComplete()
		if got != want {
			t.Errorf("step %d: fraction = %v, want %v", i+1, got, want)
		}
		if got < last {
			t.Errorf("step %d: fraction decreased from %v to %v", i+1, last, got)
		}
		last = got
	}
	if !p.IsComplete() {
		t.Error("Expected progress to be complete")
	}
}

func TestProgressState_Validate(t *testing.T) {
	if err := (ProgressState{RowsProcessed: 3, RowsTotal: 2}).Validate(); !errors.Is(err, ErrLedgerOverflow) {
		t.Errorf("Expected ErrLedgerOverflow, got %v", err)
	}
	if err := (ProgressState{RowsProcessed: -1, RowsTotal: 2}).Validate(); err == nil {
		t.Error("Expected error for negative rows processed")
	}
	if err := (ProgressState{RowsProcessed: 2, RowsTotal: 2}).Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestProgressState_IsFinalStep(t *testing.T) {
	p := ProgressState{RowsProcessed: 1000, RowsTotal: 2500}
	if p.IsFinalStep(1000) {
		t.Error("Expected middle step not to be final")
	}
	p.RowsProcessed = 2000
	if !p.IsFinalStep(1000) {
		t.Error("Expected last partial step to be final")
	}
}
