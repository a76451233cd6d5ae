// Package thread reconstructs a ticket's reply graph into an ordered
// conversation and identifies the ground-truth resolution message.
package thread

import (
	"sort"
	"strings"

	"github.com/unisco/ticketlearn/pkg/ticket"
)

// ResolvedNotice is the body of the synthetic ground truth used when no
// staff-authored reply exists in a ticket.
const ResolvedNotice = "This ticket required no staff reply and was marked resolved."

// Identity names the staff member whose replies count as ground truth.
type Identity struct {
	Email string
	Name  string
}

// Result is the outcome of reconstructing one ticket's conversation.
type Result struct {
	// Thread holds every surviving message in chronological order.
	Thread []ticket.Message

	// GroundTruth is the staff reply selected as the authoritative
	// resolution, or the resolved sentinel. Nil only when the filtered
	// message set is empty.
	GroundTruth *ticket.Message

	// History is the thread minus the ground truth message, or the full
	// thread when the sentinel was synthesized.
	History []ticket.Message

	// Resolved reports that the sentinel was used.
	Resolved bool
}

// Builder turns flat message lists into conversation threads.
type Builder struct {
	staff      Identity
	automation []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithAutomationAccounts overrides the author identities filtered out
// before graph construction. Matching is case-insensitive on both the
// author name and email.
func WithAutomationAccounts(accounts ...string) Option {
	return func(b *Builder) {
		b.automation = accounts
	}
}

// NewBuilder creates a Builder for the given staff identity.
func NewBuilder(staff Identity, opts ...Option) *Builder {
	b := &Builder{
		staff:      staff,
		automation: []string{"atlas"},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reconstructs the conversation thread from a flat message list.
// It is pure and deterministic: shuffling the input never changes the
// output. Messy data degrades to defined fallbacks, never to an error.
func (b *Builder) Build(messages []ticket.Message) Result {
	filtered := b.filterAutomation(messages)
	if len(filtered) == 0 {
		return Result{}
	}

	index := make(map[string]int, len(filtered))
	for i, msg := range filtered {
		index[msg.ID.String()] = i
	}

	// Reverse adjacency: reply target id -> indexes of messages targeting it.
	replies := make(map[string][]int)
	for i, msg := range filtered {
		if !msg.ReplyMessageID.IsZero() {
			target := msg.ReplyMessageID.String()
			replies[target] = append(replies[target], i)
		}
	}

	roots := detectRoots(filtered, index)

	thread := assemble(filtered, roots, replies)

	// The reply graph decided membership and grouping only; presentation
	// order is chronological.
	sort.SliceStable(thread, func(i, j int) bool {
		if thread[i].CreateTime != thread[j].CreateTime {
			return thread[i].CreateTime < thread[j].CreateTime
		}
		return thread[i].ID < thread[j].ID
	})

	gt, resolved := b.selectGroundTruth(thread)

	var history []ticket.Message
	if resolved {
		history = thread
	} else {
		history = make([]ticket.Message, 0, len(thread)-1)
		for _, msg := range thread {
			if msg.ID != gt.ID {
				history = append(history, msg)
			}
		}
	}

	return Result{
		Thread:      thread,
		GroundTruth: gt,
		History:     history,
		Resolved:    resolved,
	}
}

func (b *Builder) filterAutomation(messages []ticket.Message) []ticket.Message {
	filtered := make([]ticket.Message, 0, len(messages))
	for _, msg := range messages {
		if b.isAutomation(msg) {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}

func (b *Builder) isAutomation(msg ticket.Message) bool {
	for _, account := range b.automation {
		if strings.EqualFold(msg.UserName, account) || strings.EqualFold(msg.UserEmail, account) {
			return true
		}
	}
	return false
}

// detectRoots returns indexes of messages with no reply target or with a
// target outside the current set. Falls back to the chronologically
// earliest message when the set is cyclic or fully cross-referencing.
func detectRoots(messages []ticket.Message, index map[string]int) []int {
	var roots []int
	for i, msg := range messages {
		if msg.ReplyMessageID.IsZero() {
			roots = append(roots, i)
			continue
		}
		if _, ok := index[msg.ReplyMessageID.String()]; !ok {
			roots = append(roots, i)
		}
	}
	if len(roots) > 0 {
		return roots
	}

	earliest := 0
	for i := 1; i < len(messages); i++ {
		if messages[i].CreateTime < messages[earliest].CreateTime {
			earliest = i
		}
	}
	return []int{earliest}
}

// assemble expands each root depth-first over the reverse adjacency map
// with an explicit stack and visited set. Reply graphs come from
// inconsistent external data, so cycles and duplicate ids must not
// recurse forever or place a message twice. Messages unreachable from
// any root are appended as their own singleton threads.
func assemble(messages []ticket.Message, roots []int, replies map[string][]int) []ticket.Message {
	thread := make([]ticket.Message, 0, len(messages))
	visited := make(map[string]bool, len(messages))

	for _, root := range roots {
		stack := []int{root}
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			id := messages[i].ID.String()
			if visited[id] {
				continue
			}
			visited[id] = true
			thread = append(thread, messages[i])

			// Push children in reverse so they pop in input order.
			children := replies[id]
			for c := len(children) - 1; c >= 0; c-- {
				stack = append(stack, children[c])
			}
		}
	}

	for _, msg := range messages {
		if !visited[msg.ID.String()] {
			visited[msg.ID.String()] = true
			thread = append(thread, msg)
		}
	}

	return thread
}

// selectGroundTruth scans the chronological thread newest to oldest for
// the first staff-authored message. When none exists it synthesizes the
// resolved sentinel, timestamped at the last thread message's time.
func (b *Builder) selectGroundTruth(thread []ticket.Message) (*ticket.Message, bool) {
	for i := len(thread) - 1; i >= 0; i-- {
		if b.isStaffMessage(thread[i]) {
			msg := thread[i]
			return &msg, false
		}
	}

	sentinel := ticket.Message{
		UserName:  b.staff.Name,
		UserEmail: b.staff.Email,
		Content:   ResolvedNotice,
		Resolved:  true,
	}
	if len(thread) > 0 {
		last := thread[len(thread)-1]
		sentinel.TicketID = last.TicketID
		sentinel.CreateTime = last.CreateTime
	}
	return &sentinel, true
}

func (b *Builder) isStaffMessage(msg ticket.Message) bool {
	if strings.EqualFold(msg.UserEmail, b.staff.Email) {
		return true
	}
	if strings.EqualFold(msg.UserName, b.staff.Name) {
		return true
	}

	// Some messages only carry the staff identity in the From header.
	from := strings.ToLower(msg.Recipients.From.Join())
	if from == "" {
		return false
	}
	if b.staff.Email != "" && strings.Contains(from, strings.ToLower(b.staff.Email)) {
		return true
	}
	if b.staff.Name != "" && strings.Contains(from, strings.ToLower(b.staff.Name)) {
		return true
	}
	return false
}
