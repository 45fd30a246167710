package storage

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"

	"dnnevo/internal/model"
	"dnnevo/internal/nn"
)

// WriteFile stores record at path as gzip-compressed gob. Weights are kept
// bit for bit, including non-finite values.
func WriteFile(path string, record model.NetworkRecord) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create network file %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close network file %s: %w", path, cerr)
		}
	}()

	gz := gzip.NewWriter(file)
	if err := gob.NewEncoder(gz).Encode(record); err != nil {
		_ = gz.Close()
		return fmt.Errorf("encode network %s: %w", record.ID, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flush network file %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a record written by WriteFile.
func ReadFile(path string) (model.NetworkRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.NetworkRecord{}, fmt.Errorf("open network file %s: %w", path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return model.NetworkRecord{}, fmt.Errorf("read network file %s: %w", path, err)
	}
	defer gz.Close()

	var record model.NetworkRecord
	if err := gob.NewDecoder(gz).Decode(&record); err != nil {
		return model.NetworkRecord{}, fmt.Errorf("decode network file %s: %w", path, err)
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.NetworkRecord{}, err
	}
	return record, nil
}

// Save writes net to path under a generated id.
func Save(net *nn.Network, path string) error {
	return WriteFile(path, RecordFromNetwork("", net))
}

// Load reads a network written by Save or WriteFile.
func Load(path string) (*nn.Network, error) {
	record, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NetworkFromRecord(record)
}
