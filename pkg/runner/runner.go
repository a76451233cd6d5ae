// Package runner drives the batch run: ticket pages in, persisted
// learning outcomes out.
package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/learn"
	"github.com/unisco/ticketlearn/pkg/logging"
	"github.com/unisco/ticketlearn/pkg/sample"
	"github.com/unisco/ticketlearn/pkg/store"
	"github.com/unisco/ticketlearn/pkg/thread"
	"github.com/unisco/ticketlearn/pkg/ticket"
)

// TicketSource supplies ticket pages and full message sets. The HTTP
// client satisfies it; tests substitute fakes.
type TicketSource interface {
	FetchTicketPage(ctx context.Context, page, size int, filter ticket.ListFilter) ([]ticket.Ticket, bool, error)
	FetchAllMessages(ctx context.Context, ticketID ticket.ID) ([]ticket.Message, error)
}

// SampleBuilder renders a reconstructed thread into a training sample.
type SampleBuilder interface {
	Build(ctx context.Context, res thread.Result, tkt ticket.Ticket) (sample.Sample, error)
}

// Saver persists one outcome row.
type Saver interface {
	SaveRecord(ctx context.Context, r store.Record) error
}

// CoreFactory builds a fresh learning core. Each ticket pipeline gets
// its own instance because the core accumulates per-run state.
type CoreFactory func() learn.Core

// Options bounds a batch run.
type Options struct {
	MaxTickets  int
	BatchSize   int
	Concurrency int
	Epochs      int
	Filter      ticket.ListFilter
}

// Outcome is the result of one ticket pipeline, success or failure.
type Outcome struct {
	TicketID  string
	Score     float64
	Artifacts int
	Success   bool
	Err       string
}

// Summary aggregates a full run.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Artifacts int
	Batches   int
}

// Orchestrator fans ticket pipelines out under a bounded worker pool and
// persists every outcome. A ticket failure never aborts the batch; only
// a ticket page fetch failure ends the run early.
type Orchestrator struct {
	source      TicketSource
	builder     *thread.Builder
	formatter   SampleBuilder
	coreFactory CoreFactory
	saver       Saver
	opts        Options
}

// New creates an Orchestrator. Zero option fields fall back to the
// production defaults.
func New(source TicketSource, builder *thread.Builder, formatter SampleBuilder,
	coreFactory CoreFactory, saver Saver, opts Options) *Orchestrator {
	if opts.MaxTickets <= 0 {
		opts.MaxTickets = 200
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Epochs <= 0 {
		opts.Epochs = learn.DefaultEpochs
	}
	return &Orchestrator{
		source:      source,
		builder:     builder,
		formatter:   formatter,
		coreFactory: coreFactory,
		saver:       saver,
		opts:        opts,
	}
}

// Run pages through tickets until the source is exhausted, the ticket
// cap is reached, or the context ends.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())
	logger := logging.GetLogger()

	var summary Summary
	for page := 1; ; page++ {
		if err := errors.CheckContext(ctx, "batch run"); err != nil {
			return summary, err
		}

		tickets, hasMore, err := o.source.FetchTicketPage(ctx, page, o.opts.BatchSize, o.opts.Filter)
		if err != nil {
			return summary, errors.WithFields(
				errors.Wrap(err, errors.Transport, "fetch ticket page"),
				errors.Fields{"page": page})
		}
		if len(tickets) == 0 {
			break
		}

		if remaining := o.opts.MaxTickets - summary.Processed; len(tickets) > remaining {
			tickets = tickets[:remaining]
		}

		outcomes := o.processBatch(ctx, tickets)
		summary.Batches++
		for _, out := range outcomes {
			summary.Processed++
			summary.Artifacts += out.Artifacts
			if out.Success {
				summary.Succeeded++
			} else {
				summary.Failed++
				logger.Warn(ctx, "ticket %s failed: %s", out.TicketID, out.Err)
			}
		}

		if summary.Processed >= o.opts.MaxTickets || !hasMore {
			break
		}
	}

	logger.Info(ctx, "run complete: %d processed, %d succeeded, %d failed, %d artifacts",
		summary.Processed, summary.Succeeded, summary.Failed, summary.Artifacts)
	return summary, nil
}

// processBatch runs one page's pipelines under the concurrency ceiling.
func (o *Orchestrator) processBatch(ctx context.Context, tickets []ticket.Ticket) []Outcome {
	outcomes := make([]Outcome, len(tickets))

	p := pool.New().WithMaxGoroutines(o.opts.Concurrency)
	for i, tkt := range tickets {
		i, tkt := i, tkt
		p.Go(func() {
			outcomes[i] = o.processTicket(ctx, tkt)
		})
	}
	p.Wait()

	return outcomes
}

// processTicket runs one full pipeline: messages, thread, sample,
// learning, persistence. Every path ends in a persisted row; a pipeline
// failure yields a zero-score row carrying the error text.
func (o *Orchestrator) processTicket(ctx context.Context, tkt ticket.Ticket) (out Outcome) {
	id := tkt.ID.String()
	ctx = logging.WithTicketID(ctx, id)
	out = Outcome{TicketID: id}

	defer func() {
		if r := recover(); r != nil {
			out = o.fail(ctx, tkt, errors.New(errors.Unknown, fmt.Sprintf("pipeline panic: %v", r)))
		}
	}()

	messages, err := o.source.FetchAllMessages(ctx, tkt.ID)
	if err != nil {
		return o.fail(ctx, tkt, err)
	}

	res := o.builder.Build(messages)
	if res.GroundTruth == nil {
		return o.fail(ctx, tkt, errors.New(errors.InvalidInput, "ticket has no usable messages"))
	}

	smp, err := o.formatter.Build(ctx, res, tkt)
	if err != nil {
		return o.fail(ctx, tkt, err)
	}

	adapter := learn.NewAdapter(o.coreFactory(), o.opts.Epochs)
	runRes, err := adapter.Run(ctx, smp)
	if err != nil {
		return o.fail(ctx, tkt, err)
	}

	record := store.Record{
		TicketID:          id,
		ConversationID:    "ticket_" + id,
		Topic:             tkt.Title,
		ContextData:       smp.Context,
		GroundTruth:       smp.GroundTruth,
		LearnedStrategies: runRes.Artifacts,
		FinalScore:        runRes.BestScore,
		Success:           true,
	}
	if err := o.saver.SaveRecord(ctx, record); err != nil {
		out.Err = err.Error()
		return out
	}

	out.Success = true
	out.Score = runRes.BestScore
	out.Artifacts = len(runRes.Artifacts)
	return out
}

// fail persists the failure row and returns the failed outcome. A save
// error at this point is logged, not propagated; the outcome already
// carries the original failure.
func (o *Orchestrator) fail(ctx context.Context, tkt ticket.Ticket, cause error) Outcome {
	id := tkt.ID.String()
	record := store.Record{
		TicketID:       id,
		ConversationID: "ticket_" + id,
		Topic:          tkt.Title,
		Success:        false,
		ErrorText:      cause.Error(),
	}
	if err := o.saver.SaveRecord(ctx, record); err != nil {
		logging.GetLogger().Error(ctx, "failed to persist failure row for ticket %s: %v", id, err)
	}
	return Outcome{TicketID: id, Err: cause.Error()}
}

// RunFromStore replays stored conversations instead of fetching from
// the ticket platform. Each conversation row carries a serialized
// sample produced by an earlier run.
func (o *Orchestrator) RunFromStore(ctx context.Context, src ConversationSource, limit, offset int) (Summary, error) {
	ctx = logging.WithRunID(ctx, uuid.NewString())

	convs, err := src.ListConversations(ctx, limit, offset)
	if err != nil {
		return Summary{}, err
	}

	outcomes := make([]Outcome, len(convs))
	p := pool.New().WithMaxGoroutines(o.opts.Concurrency)
	for i, conv := range convs {
		i, conv := i, conv
		p.Go(func() {
			outcomes[i] = o.processConversation(ctx, conv)
		})
	}
	p.Wait()

	summary := Summary{Batches: 1}
	for _, out := range outcomes {
		summary.Processed++
		summary.Artifacts += out.Artifacts
		if out.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	if len(convs) == 0 {
		summary.Batches = 0
	}
	return summary, nil
}

// ConversationSource lists stored conversations for replay runs.
type ConversationSource interface {
	ListConversations(ctx context.Context, limit, offset int) ([]store.Conversation, error)
}

func (o *Orchestrator) processConversation(ctx context.Context, conv store.Conversation) Outcome {
	ctx = logging.WithTicketID(ctx, conv.EmailID)

	smp, err := sample.Decode(conv.Content)
	if err != nil {
		return o.fail(ctx, ticket.Ticket{ID: ticket.ID(conv.EmailID)}, err)
	}

	adapter := learn.NewAdapter(o.coreFactory(), o.opts.Epochs)
	runRes, err := adapter.Run(ctx, smp)
	if err != nil {
		return o.fail(ctx, ticket.Ticket{ID: ticket.ID(conv.EmailID)}, err)
	}

	record := store.Record{
		TicketID:          conv.EmailID,
		ConversationID:    conv.ConversationID,
		ContextData:       smp.Context,
		GroundTruth:       smp.GroundTruth,
		LearnedStrategies: runRes.Artifacts,
		FinalScore:        runRes.BestScore,
		Success:           true,
	}
	if err := o.saver.SaveRecord(ctx, record); err != nil {
		return Outcome{TicketID: conv.EmailID, Err: err.Error()}
	}

	return Outcome{
		TicketID:  conv.EmailID,
		Success:   true,
		Score:     runRes.BestScore,
		Artifacts: len(runRes.Artifacts),
	}
}
