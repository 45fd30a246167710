package storage

import (
	"context"

	"dnnevo/internal/model"
)

// Store defines persistence operations for trained networks and run summaries.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, network model.NetworkRecord) error
	GetNetwork(ctx context.Context, id string) (model.NetworkRecord, bool, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)
	SaveErrorHistory(ctx context.Context, runID string, history []float64) error
	GetErrorHistory(ctx context.Context, runID string) ([]float64, bool, error)
}

// RunFilter narrows ListRuns. The zero value lists every run, newest first.
type RunFilter struct {
	Dataset       string
	ConvergedOnly bool
	// ByError orders by ascending best error instead of finish time.
	ByError bool
	Limit   int
}
