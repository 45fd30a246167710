package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"dnnevo/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	runFile         = "run.json"
	errorSeriesFile = "error_series.csv"
)

// RunIndexEntry is one line of the run index kept at the artifacts root.
type RunIndexEntry struct {
	RunID          string          `json:"run_id"`
	Dataset        string          `json:"dataset"`
	LayerSizes     []int           `json:"layer_sizes"`
	PopulationSize int             `json:"population_size"`
	Seed           int64           `json:"seed"`
	Epochs         int             `json:"epochs"`
	BestError      model.JSONFloat `json:"best_error"`
	Converged      bool            `json:"converged"`
	CreatedAtUTC   string          `json:"created_at_utc"`
}

// IndexEntryFromRun summarises a run record for the index.
func IndexEntryFromRun(run model.RunRecord) RunIndexEntry {
	return RunIndexEntry{
		RunID:          run.ID,
		Dataset:        run.Dataset,
		LayerSizes:     append([]int(nil), run.LayerSizes...),
		PopulationSize: run.PopulationSize,
		Seed:           run.Seed,
		Epochs:         run.Epochs,
		BestError:      model.JSONFloat(run.BestError),
		Converged:      run.Converged,
		CreatedAtUTC:   run.FinishedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
}

// WriteRunArtifacts writes run.json and error_series.csv under
// baseDir/<run id> and records the run in the index. It returns the run
// directory.
func WriteRunArtifacts(baseDir string, run model.RunRecord, history []float64) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, runFile), run); err != nil {
		return "", err
	}
	if err := WriteErrorSeries(runDir, history); err != nil {
		return "", err
	}
	if err := AppendRunIndex(baseDir, IndexEntryFromRun(run)); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs, newest first. A missing index is empty.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	// Later appends win ties.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func ReadRun(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, runFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

func WriteErrorSeries(runDir string, history []float64) (err error) {
	file, err := os.Create(filepath.Join(runDir, errorSeriesFile))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"epoch", "leader_error"}); err != nil {
		return err
	}
	for i, value := range history {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(value, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadErrorSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, errorSeriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("error series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("error series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
