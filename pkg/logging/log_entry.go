package logging

// LogEntry represents a structured log record.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Pipeline-specific fields
	TicketID string // Ticket being processed when the entry was emitted
	RunID    string // Batch run the entry belongs to

	// General structured data
	Fields map[string]interface{}
}
