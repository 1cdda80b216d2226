package storage

import (
	"context"

	"coinevo/internal/model"
)

// Store persists run records and their per-generation census.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGeneration(ctx context.Context, generation model.GenerationRecord) error
	// GetGenerations returns a run's generations in ascending order.
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
}
