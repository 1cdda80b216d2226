package storage

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"coinevo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp new records are written with.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(run model.RunRecord) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeGeneration(gen model.GenerationRecord) ([]byte, error) {
	return json.Marshal(gen)
}

func DecodeGeneration(data []byte) (model.GenerationRecord, error) {
	var gen model.GenerationRecord
	if err := json.Unmarshal(data, &gen); err != nil {
		return model.GenerationRecord{}, err
	}
	if err := checkVersion(gen.VersionedRecord); err != nil {
		return model.GenerationRecord{}, err
	}
	return gen, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

// sortRunsNewestFirst orders by parsed creation time. RFC3339Nano trims
// trailing zeros, so the stamps do not sort as strings. Unparseable stamps
// sort as oldest.
func sortRunsNewestFirst(runs []model.RunRecord) {
	created := make(map[string]time.Time, len(runs))
	for _, run := range runs {
		ts, err := time.Parse(time.RFC3339Nano, run.CreatedAtUTC)
		if err == nil {
			created[run.ID] = ts
		}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		ti, tj := created[runs[i].ID], created[runs[j].ID]
		if ti.Equal(tj) {
			return runs[i].ID < runs[j].ID
		}
		return ti.After(tj)
	})
}

func sortGenerations(gens []model.GenerationRecord) {
	sort.SliceStable(gens, func(i, j int) bool { return gens[i].Generation < gens[j].Generation })
}
