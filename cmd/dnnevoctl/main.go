package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dnnevo/internal/dataset"
	"dnnevo/internal/evo"
	"dnnevo/internal/nn"
	"dnnevo/internal/stats"
	"dnnevo/internal/storage"
	"dnnevo/internal/visual"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "render":
		return runRender(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "datasets":
		return runDatasets(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func trainFlags(cfg *runConfig) (*flag.FlagSet, *string, *bool) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional ini run config; explicit flags override it")
	quiet := fs.Bool("quiet", false, "suppress per-epoch progress lines")
	fs.Var(intList{values: &cfg.Run.Layers}, "layers", "comma separated layer sizes, input first")
	fs.IntVar(&cfg.Run.Population, "pop", cfg.Run.Population, "population size")
	fs.Float64Var(&cfg.Run.KillRate, "kill-rate", cfg.Run.KillRate, "share of the population culled per epoch")
	fs.Float64Var(&cfg.Run.TargetError, "target-error", cfg.Run.TargetError, "stop once the leader error is at or below this")
	fs.IntVar(&cfg.Run.MaxEpochs, "epochs", cfg.Run.MaxEpochs, "maximum epochs")
	fs.Int64Var(&cfg.Run.Seed, "seed", cfg.Run.Seed, "random seed; 0 seeds from the clock")
	fs.IntVar(&cfg.Run.Workers, "workers", cfg.Run.Workers, "parallel fitness workers")
	fs.StringVar(&cfg.Run.InitNetwork, "init-net", cfg.Run.InitNetwork, "continue training from a saved network file")
	fs.StringVar(&cfg.Data.Source, "data", cfg.Data.Source, "built-in dataset name or csv path")
	fs.StringVar(&cfg.Output.Network, "out", cfg.Output.Network, "write the best network to this file")
	fs.StringVar(&cfg.Output.SVG, "svg", cfg.Output.SVG, "render the best network to this svg file")
	fs.StringVar(&cfg.Output.Store, "store", cfg.Output.Store, "store backend: memory|sqlite")
	fs.StringVar(&cfg.Output.DBPath, "db-path", cfg.Output.DBPath, "sqlite database path")
	fs.StringVar(&cfg.Output.Artifacts, "artifacts", cfg.Output.Artifacts, "write run artifacts and the run index under this directory")
	return fs, configPath, quiet
}

func runTrain(ctx context.Context, args []string) error {
	cfg := defaultRunConfig()
	fs, configPath, quiet := trainFlags(&cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath != "" {
		loaded, err := loadRunConfig(*configPath, defaultRunConfig())
		if err != nil {
			return err
		}
		cfg = loaded
		// Flags given on the command line win over the file.
		fs, _, _ = trainFlags(&cfg)
		if err := fs.Parse(args); err != nil {
			return err
		}
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	if cfg.Run.Seed == 0 {
		cfg.Run.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cfg.Run.Seed))

	var (
		seedNet *nn.Network
		err     error
	)
	if cfg.Run.InitNetwork != "" {
		seedNet, err = loadNetwork(cfg.Run.InitNetwork)
		if err != nil {
			return err
		}
		cfg.Run.Layers = seedNet.LayerSizes()
	} else {
		seedNet, err = nn.New(rng, cfg.Run.Layers...)
		if err != nil {
			return err
		}
	}

	// The seed decides how many csv columns are inputs.
	data, err := dataset.Resolve(cfg.Data.Source, seedNet.InputSize())
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.Output.Store, cfg.Output.DBPath)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(store)
	if err := store.Init(ctx); err != nil {
		return err
	}

	var progress evo.ProgressFunc
	if !*quiet {
		progress = func(ev evo.ProgressEvent) {
			fmt.Printf("epoch=%d error=%.6f\n", ev.Epoch, ev.Error)
		}
	}

	started := time.Now().UTC()
	result, err := evo.Train(ctx, rng, seedNet, data, cfg.params(), progress)
	if err != nil {
		return err
	}
	finished := time.Now().UTC()

	netRecord := storage.RecordFromNetwork("", result.Best)
	netRecord.Error = result.Error
	netRecord.Epoch = result.Epochs
	netRecord.CreatedAt = finished

	runRecord := storage.NewRunRecord("")
	runRecord.NetworkID = netRecord.ID
	runRecord.Dataset = cfg.Data.Source
	runRecord.LayerSizes = result.Best.LayerSizes()
	runRecord.PopulationSize = cfg.Run.Population
	runRecord.KillRate = cfg.Run.KillRate
	runRecord.TargetError = cfg.Run.TargetError
	runRecord.MaxEpochs = cfg.Run.MaxEpochs
	runRecord.Seed = cfg.Run.Seed
	runRecord.Epochs = result.Epochs
	runRecord.BestError = result.Error
	runRecord.Converged = result.Converged
	runRecord.StartedAt = started
	runRecord.FinishedAt = finished

	// Files first: the trained network must survive a store failure.
	if cfg.Output.Network != "" {
		if err := storage.WriteFile(cfg.Output.Network, netRecord); err != nil {
			return err
		}
	}
	if cfg.Output.SVG != "" {
		if err := writeSVG(cfg.Output.SVG, result.Best, visual.Options{}); err != nil {
			return err
		}
	}

	if err := store.SaveNetwork(ctx, netRecord); err != nil {
		return err
	}
	if err := store.SaveRun(ctx, runRecord); err != nil {
		return err
	}
	if err := store.SaveErrorHistory(ctx, runRecord.ID, result.History); err != nil {
		return err
	}
	if cfg.Output.Artifacts != "" {
		if _, err := stats.WriteRunArtifacts(cfg.Output.Artifacts, runRecord, result.History); err != nil {
			return err
		}
	}

	fmt.Printf("run completed run_id=%s network_id=%s epochs=%d error=%.6f converged=%t\n",
		runRecord.ID,
		netRecord.ID,
		result.Epochs,
		result.Error,
		result.Converged,
	)
	if cfg.Output.Network != "" {
		fmt.Printf("network=%s\n", cfg.Output.Network)
	}
	return nil
}

func runEval(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	netPath := fs.String("net", "", "network file")
	input := fs.String("input", "", "comma separated input vector")
	source := fs.String("data", "", "built-in dataset name or csv path to score")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *netPath == "" {
		return errors.New("eval requires -net")
	}
	if *input == "" && *source == "" {
		return errors.New("eval requires -input or -data")
	}

	net, err := loadNetwork(*netPath)
	if err != nil {
		return err
	}

	if *input != "" {
		values, err := parseFloats(*input)
		if err != nil {
			return err
		}
		out, err := net.FeedForward(values)
		if err != nil {
			return err
		}
		fmt.Printf("output=%s\n", formatFloats(out))
	}

	if *source != "" {
		data, err := dataset.Resolve(*source, net.InputSize())
		if err != nil {
			return err
		}
		for _, sample := range data {
			out, err := net.FeedForward(sample.Input)
			if err != nil {
				return err
			}
			fmt.Printf("input=%s ideal=%s output=%s\n",
				formatFloats(sample.Input),
				formatFloats(sample.Ideal),
				formatFloats(out),
			)
		}
		total, err := evo.NetError(net, data)
		if err != nil {
			return err
		}
		fmt.Printf("error=%.6f\n", total)
	}
	return nil
}

func runRender(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	netPath := fs.String("net", "", "network file")
	outPath := fs.String("out", "network.svg", "svg output path")
	width := fs.Float64("width", 800, "canvas width")
	height := fs.Float64("height", 600, "canvas height")
	background := fs.String("background", "black", "background colour name")
	neuron := fs.String("neuron", "white", "neuron colour name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *netPath == "" {
		return errors.New("render requires -net")
	}

	net, err := loadNetwork(*netPath)
	if err != nil {
		return err
	}
	opts := visual.Options{Width: *width, Height: *height, Background: *background, Neuron: *neuron}
	if err := writeSVG(*outPath, net, opts); err != nil {
		return err
	}
	fmt.Printf("rendered=%s layers=%s\n", *outPath, formatInts(net.LayerSizes()))
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	storeKind := fs.String("store", "sqlite", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "dnnevo.db", "sqlite database path")
	runID := fs.String("run-id", "", "run id to show")
	history := fs.Bool("history", false, "print the per-epoch error history")
	jsonOut := fs.Bool("json", false, "emit the run record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("show requires -run-id")
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(store)
	if err := store.Init(ctx); err != nil {
		return err
	}

	runRecord, ok, err := store.GetRun(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", *runID)
	}
	if *jsonOut {
		data, err := storage.EncodeRun(runRecord)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("run_id=%s dataset=%s layers=%s population=%d kill_rate=%.3f seed=%d\n",
		runRecord.ID,
		runRecord.Dataset,
		formatInts(runRecord.LayerSizes),
		runRecord.PopulationSize,
		runRecord.KillRate,
		runRecord.Seed,
	)
	fmt.Printf("epochs=%d best_error=%.6f converged=%t started=%s finished=%s\n",
		runRecord.Epochs,
		runRecord.BestError,
		runRecord.Converged,
		runRecord.StartedAt.Format(time.RFC3339),
		runRecord.FinishedAt.Format(time.RFC3339),
	)

	netRecord, ok, err := store.GetNetwork(ctx, runRecord.NetworkID)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("network_id=%s weights=%d error=%.6f\n", netRecord.ID, len(netRecord.Weights), netRecord.Error)
	}

	if *history {
		values, ok, err := store.GetErrorHistory(ctx, runRecord.ID)
		if err != nil {
			return err
		}
		if ok {
			for i, v := range values {
				fmt.Printf("epoch=%d error=%.6f\n", i, v)
			}
		}
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dir := fs.String("artifacts", "runs", "artifacts directory, used when -store is not set")
	storeKind := fs.String("store", "", "list from a store instead: memory|sqlite")
	dbPath := fs.String("db-path", "dnnevo.db", "sqlite database path")
	datasetName := fs.String("dataset", "", "only runs on this dataset (store only)")
	convergedOnly := fs.Bool("converged", false, "only converged runs (store only)")
	byError := fs.Bool("by-error", false, "order by best error instead of recency (store only)")
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	if *storeKind != "" {
		store, err := storage.NewStore(*storeKind, *dbPath)
		if err != nil {
			return err
		}
		defer storage.CloseIfSupported(store)
		if err := store.Init(ctx); err != nil {
			return err
		}
		runs, err := store.ListRuns(ctx, storage.RunFilter{
			Dataset:       *datasetName,
			ConvergedOnly: *convergedOnly,
			ByError:       *byError,
			Limit:         *limit,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs found")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("run_id=%s finished_at=%s dataset=%s layers=%s population=%d seed=%d epochs=%d best_error=%.6f converged=%t\n",
				r.ID,
				r.FinishedAt.Format(time.RFC3339),
				r.Dataset,
				formatInts(r.LayerSizes),
				r.PopulationSize,
				r.Seed,
				r.Epochs,
				r.BestError,
				r.Converged,
			)
		}
		return nil
	}

	entries, err := stats.ListRunIndex(*dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s dataset=%s layers=%s population=%d seed=%d epochs=%d best_error=%.6f converged=%t\n",
			e.RunID,
			e.CreatedAtUTC,
			e.Dataset,
			formatInts(e.LayerSizes),
			e.PopulationSize,
			e.Seed,
			e.Epochs,
			e.BestError,
			e.Converged,
		)
	}
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	netPath := fs.String("net", "", "network file")
	outPath := fs.String("out", "", "json output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *netPath == "" || *outPath == "" {
		return errors.New("export requires -net and -out")
	}

	record, err := storage.ReadFile(*netPath)
	if err != nil {
		return err
	}
	data, err := storage.EncodeNetwork(record)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("exported=%s network_id=%s\n", *outPath, record.ID)
	return nil
}

// loadNetwork reads a gob network file, or a JSON export when path ends in
// .json.
func loadNetwork(path string) (*nn.Network, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return storage.Load(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	record, err := storage.DecodeNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return storage.NetworkFromRecord(record)
}

func runDatasets(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("datasets", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range dataset.Names() {
		fmt.Println(name)
	}
	return nil
}

func writeSVG(path string, net *nn.Network, opts visual.Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create svg %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return visual.RenderSVG(f, net, opts)
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return strings.Join(parts, ",")
}

func formatInts(values []int) string {
	return intList{values: &values}.String()
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: dnnevoctl <train|eval|render|show|runs|export|datasets> [flags]", msg)
}
