package main

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"dnnevo/internal/evo"
)

type runConfig struct {
	Run    runSection
	Data   dataSection
	Output outputSection
}

type runSection struct {
	Layers      []int   `ini:"layers" delim:","`
	Population  int     `ini:"population"`
	KillRate    float64 `ini:"kill_rate"`
	TargetError float64 `ini:"target_error"`
	MaxEpochs   int     `ini:"max_epochs"`
	Seed        int64   `ini:"seed"`
	Workers     int     `ini:"workers"`
	InitNetwork string  `ini:"init_network"`
}

type dataSection struct {
	Source string `ini:"source"`
}

type outputSection struct {
	Network   string `ini:"network"`
	SVG       string `ini:"svg"`
	Store     string `ini:"store"`
	DBPath    string `ini:"db_path"`
	Artifacts string `ini:"artifacts"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		Run: runSection{
			Layers:      []int{2, 3, 1},
			Population:  50,
			KillRate:    0.5,
			TargetError: 0.01,
			MaxEpochs:   1000,
			Workers:     1,
		},
		Data:   dataSection{Source: "xor"},
		Output: outputSection{Store: "memory", DBPath: "dnnevo.db"},
	}
}

// loadRunConfig overlays the keys present in the ini file at path onto cfg.
func loadRunConfig(path string, cfg runConfig) (runConfig, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return runConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := file.Section("run").MapTo(&cfg.Run); err != nil {
		return runConfig{}, fmt.Errorf("map [run] section: %w", err)
	}
	if err := file.Section("data").MapTo(&cfg.Data); err != nil {
		return runConfig{}, fmt.Errorf("map [data] section: %w", err)
	}
	if err := file.Section("output").MapTo(&cfg.Output); err != nil {
		return runConfig{}, fmt.Errorf("map [output] section: %w", err)
	}
	return cfg, cfg.validate()
}

func (c runConfig) validate() error {
	if len(c.Run.Layers) < 2 {
		return fmt.Errorf("config error: layers needs at least two sizes, got %v", c.Run.Layers)
	}
	if c.Run.Population <= 0 {
		return fmt.Errorf("config error: population must be positive")
	}
	if c.Run.KillRate < 0 || c.Run.KillRate >= 1 {
		return fmt.Errorf("config error: kill_rate must be in [0, 1)")
	}
	if c.Run.MaxEpochs < 0 {
		return fmt.Errorf("config error: max_epochs cannot be negative")
	}
	if strings.TrimSpace(c.Data.Source) == "" {
		return fmt.Errorf("config error: data source is required")
	}
	return nil
}

func (c runConfig) params() evo.Params {
	return evo.Params{
		PopulationSize: c.Run.Population,
		KillRate:       c.Run.KillRate,
		TargetError:    c.Run.TargetError,
		MaxEpochs:      c.Run.MaxEpochs,
		Workers:        c.Run.Workers,
	}
}

// intList is a comma separated list flag such as "2,3,1".
type intList struct {
	values *[]int
}

func (l intList) String() string {
	if l.values == nil {
		return ""
	}
	parts := make([]string, len(*l.values))
	for i, v := range *l.values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l intList) Set(raw string) error {
	var out []int
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			return fmt.Errorf("invalid integer %q", field)
		}
		out = append(out, v)
	}
	*l.values = out
	return nil
}

func parseFloats(raw string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", field)
		}
		out = append(out, v)
	}
	return out, nil
}
