// Command ticketlearn runs the support-ticket learning pipeline: it
// pages resolved tickets from the ticket platform, reconstructs each
// conversation thread, and feeds the resulting samples through the
// learning core, persisting every outcome.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unisco/ticketlearn/pkg/config"
	"github.com/unisco/ticketlearn/pkg/learn"
	"github.com/unisco/ticketlearn/pkg/llm"
	"github.com/unisco/ticketlearn/pkg/logging"
	"github.com/unisco/ticketlearn/pkg/runner"
	"github.com/unisco/ticketlearn/pkg/sample"
	"github.com/unisco/ticketlearn/pkg/store"
	"github.com/unisco/ticketlearn/pkg/thread"
	"github.com/unisco/ticketlearn/pkg/ticket"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to YAML config file")
		source        = flag.String("source", "ticket", "conversation source: ticket or database")
		staffID       = flag.String("staff-id", "", "staff id whose tickets are fetched")
		staffEmail    = flag.String("staff-email", "", "staff email treated as ground-truth author")
		staffName     = flag.String("staff-name", "", "staff display name treated as ground-truth author")
		maxTickets    = flag.Int("max-tickets", 0, "stop after this many tickets")
		maxConcurrent = flag.Int("max-concurrent", 0, "concurrent ticket pipelines")
		batchSize     = flag.Int("batch-size", 0, "tickets fetched per page")
		dbPath        = flag.String("db", "", "sqlite database path")
		limit         = flag.Int("limit", 50, "conversations to replay in database mode")
		offset        = flag.Int("offset", 0, "conversations to skip in database mode")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ticketlearn: %v\n", err)
		os.Exit(1)
	}

	// Flags beat both the file and the environment.
	applyFlag(&cfg.Staff.ID, *staffID)
	applyFlag(&cfg.Staff.Email, *staffEmail)
	applyFlag(&cfg.Staff.Name, *staffName)
	applyFlag(&cfg.Store.Path, *dbPath)
	applyIntFlag(&cfg.Run.MaxTickets, *maxTickets)
	applyIntFlag(&cfg.Run.Concurrency, *maxConcurrent)
	applyIntFlag(&cfg.Run.BatchSize, *batchSize)

	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(cfg.LogLevel),
		Outputs:  []logging.Output{logging.NewConsoleOutput(true)},
	}))
	logger := logging.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg, *source, *limit, *offset)
	if err != nil {
		logger.Error(ctx, "run failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("processed %d tickets in %d batches: %d succeeded, %d failed, %d strategies learned\n",
		summary.Processed, summary.Batches, summary.Succeeded, summary.Failed, summary.Artifacts)
	if summary.Failed > 0 {
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg config.Config, source string, limit, offset int) (runner.Summary, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return runner.Summary{}, err
	}
	defer st.Close()

	completer, err := llm.NewAnthropicCompleter(cfg.LLM.APIKey, cfg.LLM.Model,
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithCallTimeout(time.Duration(cfg.LLM.TimeoutSec)*time.Second))
	if err != nil {
		return runner.Summary{}, err
	}

	client, err := ticket.NewClient(cfg.API.Key,
		ticket.WithBaseURL(cfg.API.BaseURL),
		ticket.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second))
	if err != nil {
		return runner.Summary{}, err
	}

	builder := thread.NewBuilder(thread.Identity{
		Email: cfg.Staff.Email,
		Name:  cfg.Staff.Name,
	})
	formatter := sample.NewFormatter(nil, llm.NewTopicExtractor(completer))

	coreFactory := func() learn.Core {
		return learn.NewCompletionCore(completer, learn.EmailReplyRubric(), nil)
	}

	orch := runner.New(client, builder, formatter, coreFactory, st, runner.Options{
		MaxTickets:  cfg.Run.MaxTickets,
		BatchSize:   cfg.Run.BatchSize,
		Concurrency: cfg.Run.Concurrency,
		Epochs:      cfg.Run.Epochs,
		Filter: ticket.ListFilter{
			DisplayStatusIDs: []int{ticket.DisplayStatusResolved},
			StaffIDs:         []string{cfg.Staff.ID},
		},
	})

	switch source {
	case "database":
		return orch.RunFromStore(ctx, st, limit, offset)
	case "ticket":
		return orch.Run(ctx)
	default:
		return runner.Summary{}, fmt.Errorf("unknown source %q (want ticket or database)", source)
	}
}

func applyFlag(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyIntFlag(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
