package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"dnnevo/internal/evo"
)

var ErrUnknownDataset = errors.New("unknown dataset")

var builtins = map[string][][2][]float64{
	"xor": {
		{{0, 0}, {0}},
		{{0, 1}, {1}},
		{{1, 0}, {1}},
		{{1, 1}, {0}},
	},
	"and": {
		{{0, 0}, {0}},
		{{0, 1}, {0}},
		{{1, 0}, {0}},
		{{1, 1}, {1}},
	},
	"or": {
		{{0, 0}, {0}},
		{{0, 1}, {1}},
		{{1, 0}, {1}},
		{{1, 1}, {1}},
	},
}

// Names lists the built-in datasets.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a fresh copy of the named built-in dataset.
func Builtin(name string) ([]evo.Sample, error) {
	rows, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	samples := make([]evo.Sample, len(rows))
	for i, row := range rows {
		samples[i] = evo.Sample{
			Input: append([]float64(nil), row[0]...),
			Ideal: append([]float64(nil), row[1]...),
		}
	}
	return samples, nil
}

// Resolve returns the built-in dataset called source, or loads source as a
// CSV file with the given input width.
func Resolve(source string, inputs int) ([]evo.Sample, error) {
	if samples, err := Builtin(source); err == nil {
		return samples, nil
	}
	file, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, source)
		}
		return nil, err
	}
	defer file.Close()
	return LoadCSV(file, inputs)
}

// LoadCSV reads numeric rows whose first inputs columns are network inputs
// and whose remaining columns are ideal outputs. A non-numeric first row is
// treated as a header; blank rows are skipped.
func LoadCSV(in io.Reader, inputs int) ([]evo.Sample, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("input width must be > 0, got %d", inputs)
	}

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		samples []evo.Sample
		width   int
		line    int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset csv row %d: %w", line+1, err)
		}
		line++
		if blankRecord(record) {
			continue
		}

		values, err := parseRecord(record)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("dataset csv row %d: %w", line, err)
		}
		if width == 0 {
			width = len(values)
			if width <= inputs {
				return nil, fmt.Errorf("dataset csv row %d: need more than %d columns, got %d", line, inputs, width)
			}
		}
		if len(values) != width {
			return nil, fmt.Errorf("dataset csv row %d: expected %d columns, got %d", line, width, len(values))
		}
		samples = append(samples, evo.Sample{
			Input: values[:inputs:inputs],
			Ideal: values[inputs:],
		})
	}
	return samples, nil
}

func parseRecord(record []string) ([]float64, error) {
	values := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
