package storage

import (
	"context"
	"testing"

	"dnnevo/internal/model"
)

func TestMemoryStoreNetworkRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := model.NetworkRecord{
		VersionedRecord: currentVersion(),
		ID:              "n1",
		LayerSizes:      []int{1, 1},
		Weights:         []float64{2, 0.5},
	}
	if err := store.SaveNetwork(ctx, input); err != nil {
		t.Fatalf("save network: %v", err)
	}
	input.Weights[0] = 99

	output, ok, err := store.GetNetwork(ctx, "n1")
	if err != nil {
		t.Fatalf("get network: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted network")
	}
	if output.Weights[0] != 2 || output.Weights[1] != 0.5 {
		t.Fatalf("stored weights aliased caller slice: %+v", output.Weights)
	}

	if _, ok, err := store.GetNetwork(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing network: ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreRunAndHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := NewRunRecord("run-1")
	run.NetworkID = "n1"
	run.Epochs = 7
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if loaded.NetworkID != "n1" || loaded.Epochs != 7 {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	input := []float64{3, 2, 1}
	if err := store.SaveErrorHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetErrorHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted error history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), NewRunRecord("r")); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
