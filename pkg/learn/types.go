// Package learn is the boundary to the external learning core: it runs
// the improvement epochs for one sample and reduces them to a single
// best-scoring outcome.
package learn

import (
	"context"

	"github.com/unisco/ticketlearn/pkg/sample"
)

// Artifact is one behavioral delta produced by the learning core, in the
// shape the core's playbook accumulator exposes.
type Artifact struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Content string `json:"content"`
	Helpful int    `json:"helpful"`
	Harmful int    `json:"harmful"`
}

// EpochResult carries one epoch's quality score and deltas.
type EpochResult struct {
	Epoch     int        `json:"epoch"`
	Score     float64    `json:"score"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Core is the external learning core. One call runs one improvement
// epoch against the sample. Implementations own the generation and
// critique internals; the pipeline only sees scores and deltas.
type Core interface {
	RunEpoch(ctx context.Context, s sample.Sample, epoch int) (EpochResult, error)
}

// RunResult is the reduced outcome of a full multi-epoch run.
type RunResult struct {
	BestScore float64
	BestEpoch int
	Scores    []float64
	Artifacts []Artifact
}
