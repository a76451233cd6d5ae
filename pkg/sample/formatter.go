// Package sample renders reconstructed conversation threads into the
// question/context/ground-truth triples consumed by the learning core.
package sample

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/thread"
	"github.com/unisco/ticketlearn/pkg/ticket"
)

const (
	// Rule visually separates history blocks.
	Rule = "------------------------------------------------------------"

	// EmptyHistoryPlaceholder distinguishes "no prior conversation" from
	// history accidentally omitted by a bug.
	EmptyHistoryPlaceholder = "(no prior conversation)"

	questionTemplate = "%s — who needs to be contacted, which systems need to be checked, and which actions need to be performed?"

	fallbackTopic = "Support ticket follow-up"
)

// Sample is the immutable training triple handed to the learning core.
type Sample struct {
	Question    string `json:"question"`
	Context     string `json:"context"`
	GroundTruth string `json:"ground_truth"`
}

// ContextPayload is the structured content serialized into Sample.Context.
type ContextPayload struct {
	History string `json:"history"`
}

// TopicExtractor produces a short topic for a rendered conversation.
// The production implementation delegates to the text-completion service.
type TopicExtractor interface {
	ExtractTopic(ctx context.Context, conversation string) (string, error)
}

// Formatter renders threads into Samples.
type Formatter struct {
	converter Converter
	topics    TopicExtractor
}

// NewFormatter creates a Formatter. The converter handles message markup;
// the extractor supplies the question topic.
func NewFormatter(converter Converter, topics TopicExtractor) *Formatter {
	if converter == nil {
		converter = PlainConverter{}
	}
	return &Formatter{converter: converter, topics: topics}
}

// FormatMessage renders one message into the standard textual block.
func (f *Formatter) FormatMessage(msg ticket.Message, title string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sender: %s", msg.UserName)
	if msg.UserEmail != "" {
		fmt.Fprintf(&b, " <%s>", msg.UserEmail)
	}
	fmt.Fprintf(&b, "\nTime: %s\n", msg.CreateTime)

	if len(msg.Recipients.From) > 0 {
		fmt.Fprintf(&b, "From: %s\n", msg.Recipients.From.Join())
	}
	if len(msg.Recipients.To) > 0 {
		fmt.Fprintf(&b, "To: %s\n", msg.Recipients.To.Join())
	}
	if len(msg.Recipients.CC) > 0 {
		fmt.Fprintf(&b, "CC: %s\n", msg.Recipients.CC.Join())
	}

	if title != "" {
		fmt.Fprintf(&b, "Subject: %s\n", title)
	}

	fmt.Fprintf(&b, "\n%s\n", f.converter.Convert(msg.Content))
	return b.String()
}

// FormatHistory renders the history blocks in chronological order,
// separated by a visible rule. Empty history yields the explicit
// placeholder, never an empty string.
func (f *Formatter) FormatHistory(history []ticket.Message, title string) string {
	if len(history) == 0 {
		return EmptyHistoryPlaceholder
	}

	var b strings.Builder
	for _, msg := range history {
		b.WriteString(f.FormatMessage(msg, title))
		b.WriteString("\n" + Rule + "\n")
	}
	return b.String()
}

// FormatGroundTruth renders the resolution message, or the fixed resolved
// notice for the sentinel case.
func (f *Formatter) FormatGroundTruth(gt ticket.Message, title string) string {
	if gt.Resolved {
		var b strings.Builder
		fmt.Fprintf(&b, "Sender: %s <%s>\n", gt.UserName, gt.UserEmail)
		fmt.Fprintf(&b, "Time: %s\n", gt.CreateTime)
		if title != "" {
			fmt.Fprintf(&b, "Subject: %s\n", title)
		}
		fmt.Fprintf(&b, "\n%s\n", thread.ResolvedNotice)
		return b.String()
	}
	return f.FormatMessage(gt, title)
}

// Build renders a reconstructed thread into a Sample. Question and
// GroundTruth are always non-empty.
func (f *Formatter) Build(ctx context.Context, res thread.Result, tkt ticket.Ticket) (Sample, error) {
	if res.GroundTruth == nil {
		return Sample{}, errors.New(errors.InvalidInput, "thread has no ground truth")
	}

	groundTruth := f.FormatGroundTruth(*res.GroundTruth, tkt.Title)
	history := f.FormatHistory(res.History, tkt.Title)

	topic, err := f.extractTopic(ctx, groundTruth, history)
	if err != nil {
		return Sample{}, err
	}
	if topic == "" {
		if topic = tkt.Title; topic == "" {
			topic = fallbackTopic
		}
	}

	payload, err := json.Marshal(ContextPayload{History: history})
	if err != nil {
		return Sample{}, errors.Wrap(err, errors.InvalidInput, "encode sample context")
	}

	return Sample{
		Question:    fmt.Sprintf(questionTemplate, topic),
		Context:     string(payload),
		GroundTruth: groundTruth,
	}, nil
}

// Decode restores a Sample from its serialized form, as persisted by
// earlier runs. Question and GroundTruth must both be present.
func Decode(data string) (Sample, error) {
	var s Sample
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Sample{}, errors.Wrap(err, errors.InvalidInput, "decode stored sample")
	}
	if s.Question == "" || s.GroundTruth == "" {
		return Sample{}, errors.New(errors.InvalidInput, "stored sample is incomplete")
	}
	return s, nil
}

// extractTopic feeds the ground truth followed by the history to the
// extractor; topic extraction sees the complete conversation.
func (f *Formatter) extractTopic(ctx context.Context, groundTruth, history string) (string, error) {
	if f.topics == nil {
		return "", nil
	}

	conversation := groundTruth + "\n" + strings.Repeat("=", 60) + "\nConversation history:\n" + history
	topic, err := f.topics.ExtractTopic(ctx, conversation)
	if err != nil {
		return "", errors.Wrap(err, errors.EvaluationFailed, "extract topic")
	}
	return strings.TrimSpace(topic), nil
}
