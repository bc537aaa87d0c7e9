package domain

import "fmt"

// ProgressState is the ledger of an export: the only state that changes between steps.
type ProgressState struct {
	RowsProcessed int  `json:"rows_processed"`
	RowsTotal     int  `json:"rows_total"`
	IsFirstStep   bool `json:"is_first_step"`
}

func NewProgressState(rowsTotal int) ProgressState {
	return ProgressState{
		RowsProcessed: 0,
		RowsTotal:     rowsTotal,
		IsFirstStep:   true,
	}
}

// Validate checks 0 <= RowsProcessed <= RowsTotal
func (p ProgressState) Validate() error {
	if p.RowsTotal < 0 || p.RowsProcessed < 0 {
		return fmt.Errorf("negative progress values: processed=%d total=%d", p.RowsProcessed, p.RowsTotal)
	}
	if p.RowsProcessed > p.RowsTotal {
		return ErrLedgerOverflow
	}
	return nil
}

func (p ProgressState) Remaining() int {
	return p.RowsTotal - p.RowsProcessed
}

// NextChunk is the number of rows the next step handles; zero means nothing is left.
func (p ProgressState) NextChunk(chunkSize int) int {
	items := chunkSize
	if remaining := p.Remaining(); remaining < items {
		items = remaining
	}
	if items < 0 {
		return 0
	}
	return items
}

// IsFinalStep reports whether the next step of chunkSize rows reaches the end
func (p ProgressState) IsFinalStep(chunkSize int) bool {
	return p.RowsProcessed+chunkSize >= p.RowsTotal
}

func (p ProgressState) IsComplete() bool {
	return p.RowsProcessed >= p.RowsTotal
}

// NothingWritten reports a non-empty export that has no successful step yet
func (p ProgressState) NothingWritten() bool {
	return p.RowsProcessed == 0 && p.RowsTotal > 0
}

// FractionComplete is in [0,1]; an empty result set is complete.
func (p ProgressState) FractionComplete() float64 {
	if p.RowsTotal <= 0 {
		return 1.0
	}
	return float64(p.RowsProcessed) / float64(p.RowsTotal)
}

// Advance returns the ledger after n more rows were durably written.
func (p ProgressState) Advance(n int) (ProgressState, error) {
	if n < 0 {
		return p, fmt.Errorf("cannot advance ledger by %d rows", n)
	}
	if p.RowsProcessed+n > p.RowsTotal {
		return p, ErrLedgerOverflow
	}
	return ProgressState{
		RowsProcessed: p.RowsProcessed + n,
		RowsTotal:     p.RowsTotal,
		IsFirstStep:   false,
	}, nil
}
