package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dnnevo/internal/model"
	"dnnevo/internal/nn"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// RecordFromNetwork snapshots the topology and genome of net. An empty id is
// replaced by a generated one.
func RecordFromNetwork(id string, net *nn.Network) model.NetworkRecord {
	if id == "" {
		id = NewID()
	}
	return model.NetworkRecord{
		VersionedRecord: currentVersion(),
		ID:              id,
		LayerSizes:      net.LayerSizes(),
		Weights:         net.FlatWeights(),
		CreatedAt:       time.Now().UTC(),
	}
}

// NetworkFromRecord rebuilds the network described by record.
func NetworkFromRecord(record model.NetworkRecord) (*nn.Network, error) {
	if err := checkVersion(record.VersionedRecord); err != nil {
		return nil, err
	}
	net, err := nn.FromWeights(record.LayerSizes, record.Weights)
	if err != nil {
		return nil, fmt.Errorf("restore network %s: %w", record.ID, err)
	}
	return net, nil
}

// NewRunRecord returns a run record stamped with the current versions.
func NewRunRecord(id string) model.RunRecord {
	if id == "" {
		id = NewID()
	}
	return model.RunRecord{VersionedRecord: currentVersion(), ID: id}
}

// EncodeNetwork renders a network record as JSON. Non-finite weights are
// written as strings, see model.JSONFloat.
func EncodeNetwork(n model.NetworkRecord) ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNetwork(data []byte) (model.NetworkRecord, error) {
	var network model.NetworkRecord
	if err := json.Unmarshal(data, &network); err != nil {
		return model.NetworkRecord{}, err
	}
	if err := checkVersion(network.VersionedRecord); err != nil {
		return model.NetworkRecord{}, err
	}
	return network, nil
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
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

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
