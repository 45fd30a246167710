package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NetworkRecord is the persisted form of a trained network: its non-bias
// layer sizes and the weight genome in canonical order.
type NetworkRecord struct {
	VersionedRecord
	ID         string    `json:"id"`
	LayerSizes []int     `json:"layer_sizes"`
	Weights    []float64 `json:"weights"`
	Error      float64   `json:"error"`
	Epoch      int       `json:"epoch"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunRecord summarises one training run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	NetworkID      string    `json:"network_id"`
	Dataset        string    `json:"dataset"`
	LayerSizes     []int     `json:"layer_sizes"`
	PopulationSize int       `json:"population_size"`
	KillRate       float64   `json:"kill_rate"`
	TargetError    float64   `json:"target_error"`
	MaxEpochs      int       `json:"max_epochs"`
	Seed           int64     `json:"seed"`
	Epochs         int       `json:"epochs"`
	BestError      float64   `json:"best_error"`
	Converged      bool      `json:"converged"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
