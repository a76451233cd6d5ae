package learn

import (
	"context"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/logging"
	"github.com/unisco/ticketlearn/pkg/sample"
)

// DefaultEpochs is the improvement epoch count used when none is set.
const DefaultEpochs = 5

// Adapter runs a fixed number of epochs through the learning core and
// selects the best-scoring epoch as the final outcome.
type Adapter struct {
	core   Core
	epochs int
}

// NewAdapter creates an Adapter around the external core.
func NewAdapter(core Core, epochs int) *Adapter {
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	return &Adapter{core: core, epochs: epochs}
}

// Run executes all epochs for one sample. The epoch with the maximum
// score wins, ties broken by earliest occurrence; artifacts from every
// epoch are collected. A failure at any epoch aborts the run — there is
// no per-epoch retry, the owning ticket pipeline absorbs the failure.
func (a *Adapter) Run(ctx context.Context, s sample.Sample) (RunResult, error) {
	logger := logging.GetLogger()

	result := RunResult{BestEpoch: -1}
	for epoch := 0; epoch < a.epochs; epoch++ {
		if err := errors.CheckContext(ctx, "learning run"); err != nil {
			return RunResult{}, err
		}

		er, err := a.core.RunEpoch(ctx, s, epoch)
		if err != nil {
			return RunResult{}, errors.WithFields(
				errors.Wrap(err, errors.EvaluationFailed, "epoch failed"),
				errors.Fields{"epoch": epoch})
		}

		result.Scores = append(result.Scores, er.Score)
		result.Artifacts = append(result.Artifacts, er.Artifacts...)
		if result.BestEpoch == -1 || er.Score > result.BestScore {
			result.BestScore = er.Score
			result.BestEpoch = epoch
		}
	}

	logger.Info(ctx, "learning run complete: best=%.2f epoch=%d scores=%v",
		result.BestScore, result.BestEpoch, result.Scores)
	return result, nil
}
