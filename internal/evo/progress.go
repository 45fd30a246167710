package evo

import "dnnevo/internal/nn"

// ProgressEvent reports a new population leader.
type ProgressEvent struct {
	Network *nn.Network
	Error   float64
	Epoch   int
}

// ProgressFunc is invoked once per epoch in which the leader changes.
type ProgressFunc func(ProgressEvent)
