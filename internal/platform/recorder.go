package platform

import (
	"context"

	"coinevo/internal/evo"
	"coinevo/internal/model"
	"coinevo/internal/storage"
)

// generationRecorder persists each completed generation under its run.
type generationRecorder struct {
	store storage.Store
	runID string
}

func (r *generationRecorder) ObserveGeneration(ctx context.Context, _ evo.GenerationStats, record model.GenerationRecord) error {
	return r.store.SaveGeneration(ctx, stampGeneration(record, r.runID))
}

func stampGeneration(record model.GenerationRecord, runID string) model.GenerationRecord {
	record.VersionedRecord = storage.CurrentVersion()
	record.RunID = runID
	return record
}
