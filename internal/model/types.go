package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Meta carries lineage and integrity data stamped onto a genome by the
// network layer. Pointer fields stay nil until they are known.
type Meta struct {
	SerialNumber   *uint64  `json:"serial_number"`
	Checksum       *float64 `json:"checksum"`
	Parent1        *uint64  `json:"parent_1"`
	Parent2        *uint64  `json:"parent_2"`
	HiddenChecksum *float64 `json:"hidden_checksum,omitempty"`
	OutputChecksum *float64 `json:"output_checksum,omitempty"`
}

// LayerSpec describes one hidden layer. Type and Activation live in [0, 1].
type LayerSpec struct {
	Type       float64 `json:"type"`
	Neurons    int     `json:"neurons"`
	Activation float64 `json:"activation"`
}

// OutputSpec describes the output layer. Count is the action-space size.
type OutputSpec struct {
	Type       float64 `json:"type"`
	Count      int     `json:"count"`
	Activation float64 `json:"activation"`
}

type Genome struct {
	Meta         Meta        `json:"meta"`
	Inputs       int         `json:"inputs"`
	HiddenLayers []LayerSpec `json:"hidden_layers"`
	Output       OutputSpec  `json:"output"`
}

// WeightLayer holds a dense layer's kernel and bias vector. Weights is laid
// out as [input][unit], so Weights[0] is the first weight vector.
type WeightLayer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// CensusEntry is one network's definition and fitness as reported for a
// population snapshot.
type CensusEntry struct {
	Index   int    `json:"index"`
	Genome  Genome `json:"genome"`
	Fitness *int   `json:"fitness"`
}

type CensusStage string

const (
	StageInitial         CensusStage = "initial"
	StageAfterEvaluation CensusStage = "after_evaluation"
	StageAfterCarryOver  CensusStage = "after_carryover"
)

type GenerationRecord struct {
	VersionedRecord
	RunID           string        `json:"run_id"`
	Generation      int           `json:"generation"`
	AfterEvaluation []CensusEntry `json:"after_evaluation"`
	AfterCarryOver  []CensusEntry `json:"after_carryover"`
	CarriedOver     int           `json:"carried_over"`
}

type RunRecord struct {
	VersionedRecord
	ID             string         `json:"id"`
	Collection     string         `json:"collection"`
	Experiment     string         `json:"experiment"`
	Parameters     map[string]any `json:"parameters"`
	Initial        []CensusEntry  `json:"initial"`
	Generations    int            `json:"generations"`
	AverageFitness float64        `json:"average_fitness"`
	BestFitness    int            `json:"best_fitness"`
	CreatedAtUTC   string         `json:"created_at_utc"`
	ElapsedMillis  int64          `json:"elapsed_ms"`
}
