package logging

import "context"

type contextKey string

const (
	ticketIDKey contextKey = "ticket_id"
	runIDKey    contextKey = "run_id"
)

// WithTicketID attaches a ticket identifier to the context so every log
// entry emitted while processing that ticket can be attributed to it.
func WithTicketID(ctx context.Context, ticketID string) context.Context {
	return context.WithValue(ctx, ticketIDKey, ticketID)
}

// GetTicketID returns the ticket identifier carried by the context.
func GetTicketID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ticketIDKey).(string)
	return id, ok
}

// WithRunID attaches a batch-run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID returns the batch-run identifier carried by the context.
func GetRunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok
}
