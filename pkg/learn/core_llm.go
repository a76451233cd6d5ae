package learn

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/llm"
	"github.com/unisco/ticketlearn/pkg/sample"
)

const generatePromptTemplate = `You are a customer support agent. Using the conversation context below, write the reply that resolves the ticket.

Question: %s

Context:
%s

Known strategies from earlier attempts:
%s

Write only the reply.`

const evaluatePromptTemplate = `Compare a generated support reply against the expert ground truth.

Rubric (%s):
%s

Ground truth reply:
%s

Generated reply:
%s

Respond with JSON only:
{"score": <0.0-1.0>, "strategies": [{"section": "<short label>", "content": "<one reusable lesson>"}]}`

// CompletionCore is a Core backed by the text-completion service: each
// epoch generates a candidate reply and scores it against the ground
// truth with the configured rubric. Strategies extracted by the judge
// are fed back into the next epoch's generation prompt.
type CompletionCore struct {
	completer llm.Completer
	rubric    Rubric
	parser    ResponseParser

	// learned accumulates strategy content across epochs of one run.
	// A core instance therefore serves a single ticket pipeline.
	learned []string
}

// NewCompletionCore creates a CompletionCore with the given rubric and
// response parser. A nil parser defaults to fenced-JSON tolerance.
func NewCompletionCore(completer llm.Completer, rubric Rubric, parser ResponseParser) *CompletionCore {
	if parser == nil {
		parser = FencedJSONParser{}
	}
	return &CompletionCore{completer: completer, rubric: rubric, parser: parser}
}

type judgement struct {
	Score      float64 `json:"score"`
	Strategies []struct {
		Section string `json:"section"`
		Content string `json:"content"`
	} `json:"strategies"`
}

// RunEpoch implements Core.
func (c *CompletionCore) RunEpoch(ctx context.Context, s sample.Sample, epoch int) (EpochResult, error) {
	strategies := "(none yet)"
	if len(c.learned) > 0 {
		strategies = ""
		for _, l := range c.learned {
			strategies += "- " + l + "\n"
		}
	}

	reply, err := c.completer.Complete(ctx, fmt.Sprintf(generatePromptTemplate, s.Question, s.Context, strategies))
	if err != nil {
		return EpochResult{}, errors.Wrap(err, errors.EvaluationFailed, "generate reply")
	}

	verdict, err := c.completer.Complete(ctx, fmt.Sprintf(evaluatePromptTemplate,
		c.rubric.Name, c.rubric.criteriaList(), s.GroundTruth, reply))
	if err != nil {
		return EpochResult{}, errors.Wrap(err, errors.EvaluationFailed, "score reply")
	}

	var j judgement
	if err := c.parser.Parse(verdict, &j); err != nil {
		return EpochResult{}, err
	}
	if j.Score < 0 || j.Score > 1 {
		return EpochResult{}, errors.WithFields(
			errors.New(errors.InvalidResponse, "score out of range"),
			errors.Fields{"score": j.Score})
	}

	result := EpochResult{Epoch: epoch, Score: j.Score}
	for _, st := range j.Strategies {
		if st.Content == "" {
			continue
		}
		result.Artifacts = append(result.Artifacts, Artifact{
			ID:      uuid.NewString(),
			Section: st.Section,
			Content: st.Content,
		})
		c.learned = append(c.learned, st.Content)
	}
	return result, nil
}
