package thread

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisco/ticketlearn/pkg/ticket"
)

var staff = Identity{Email: "staff@y.com", Name: "Celine Escorido"}

func msg(id, replyTo, email, t string) ticket.Message {
	return ticket.Message{
		ID:             ticket.ID(id),
		TicketID:       "tk1",
		UserName:       "user-" + id,
		UserEmail:      email,
		ReplyMessageID: ticket.ID(replyTo),
		CreateTime:     t,
		Content:        "<p>body " + id + "</p>",
	}
}

func ids(messages []ticket.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID.String()
	}
	return out
}

func TestBuildEmptyInput(t *testing.T) {
	res := NewBuilder(staff).Build(nil)
	assert.Empty(t, res.Thread)
	assert.Nil(t, res.GroundTruth)
	assert.False(t, res.Resolved)
}

func TestBuildAllRoots(t *testing.T) {
	// No reply targets at all: every message is its own root and the
	// thread is just the input sorted by timestamp.
	input := []ticket.Message{
		msg("3", "", "c@x.com", "2024-01-03T00:00"),
		msg("1", "", "a@x.com", "2024-01-01T00:00"),
		msg("2", "", "b@x.com", "2024-01-02T00:00"),
	}
	res := NewBuilder(staff).Build(input)
	assert.Equal(t, []string{"1", "2", "3"}, ids(res.Thread))
}

func TestBuildSingleChain(t *testing.T) {
	chain := []ticket.Message{
		msg("A", "", "a@x.com", "2024-01-01T00:00"),
		msg("B", "A", "b@x.com", "2024-01-02T00:00"),
		msg("C", "B", "c@x.com", "2024-01-03T00:00"),
	}

	for _, order := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}} {
		input := make([]ticket.Message, 0, 3)
		for _, i := range order {
			input = append(input, chain[i])
		}
		res := NewBuilder(staff).Build(input)
		assert.Equal(t, []string{"A", "B", "C"}, ids(res.Thread), "input order %v", order)
	}
}

func TestBuildGroundTruthSelection(t *testing.T) {
	t.Run("most recent staff message wins", func(t *testing.T) {
		input := []ticket.Message{
			msg("1", "", "cust@x.com", "2024-01-01T00:00"),
			msg("2", "1", "staff@y.com", "2024-01-02T00:00"),
			msg("3", "2", "cust@x.com", "2024-01-03T00:00"),
			msg("4", "3", "staff@y.com", "2024-01-04T00:00"),
		}
		res := NewBuilder(staff).Build(input)
		require.NotNil(t, res.GroundTruth)
		assert.Equal(t, ticket.ID("4"), res.GroundTruth.ID)
		assert.False(t, res.Resolved)
		assert.ElementsMatch(t, []string{"1", "2", "3"}, ids(res.History))
	})

	t.Run("staff matched by name", func(t *testing.T) {
		input := []ticket.Message{msg("1", "", "cust@x.com", "2024-01-01T00:00")}
		input[0].UserName = "celine escorido"
		res := NewBuilder(staff).Build(input)
		require.NotNil(t, res.GroundTruth)
		assert.Equal(t, ticket.ID("1"), res.GroundTruth.ID)
	})

	t.Run("staff matched inside from header", func(t *testing.T) {
		m := msg("1", "", "forwarder@x.com", "2024-01-01T00:00")
		m.Recipients.From = ticket.StringList{"Support <STAFF@Y.COM>"}
		res := NewBuilder(staff).Build([]ticket.Message{m})
		require.NotNil(t, res.GroundTruth)
		assert.Equal(t, ticket.ID("1"), res.GroundTruth.ID)
		assert.False(t, res.Resolved)
	})

	t.Run("no staff reply synthesizes sentinel", func(t *testing.T) {
		input := []ticket.Message{
			msg("1", "", "cust@x.com", "2024-01-01T00:00"),
			msg("2", "1", "other@x.com", "2024-01-02T00:00"),
		}
		res := NewBuilder(staff).Build(input)
		require.NotNil(t, res.GroundTruth)
		assert.True(t, res.Resolved)
		assert.True(t, res.GroundTruth.Resolved)
		assert.Equal(t, ResolvedNotice, res.GroundTruth.Content)
		assert.Equal(t, "2024-01-02T00:00", res.GroundTruth.CreateTime)
		// Sentinel removes nothing: history is the full thread.
		assert.Equal(t, ids(res.Thread), ids(res.History))
	})
}

func TestBuildConcreteScenario(t *testing.T) {
	input := []ticket.Message{
		msg("1", "", "cust@x.com", "2024-01-01T00:00"),
		msg("2", "1", "staff@y.com", "2024-01-02T00:00"),
	}
	res := NewBuilder(staff).Build(input)
	require.NotNil(t, res.GroundTruth)
	assert.Equal(t, ticket.ID("2"), res.GroundTruth.ID)
	assert.Equal(t, []string{"1"}, ids(res.History))
}

func TestBuildAutomationFilter(t *testing.T) {
	t.Run("automation authors dropped before graph construction", func(t *testing.T) {
		auto := msg("99", "", "noreply@x.com", "2024-01-05T00:00")
		auto.UserName = "Atlas"
		input := []ticket.Message{
			msg("1", "", "cust@x.com", "2024-01-01T00:00"),
			auto,
		}
		res := NewBuilder(staff).Build(input)
		assert.Equal(t, []string{"1"}, ids(res.Thread))
	})

	t.Run("everything filtered yields empty result", func(t *testing.T) {
		auto := msg("1", "", "atlas", "2024-01-01T00:00")
		res := NewBuilder(staff).Build([]ticket.Message{auto})
		assert.Empty(t, res.Thread)
		assert.Nil(t, res.GroundTruth)
	})
}

func TestBuildBrokenAndCyclicGraphs(t *testing.T) {
	t.Run("dangling reply target becomes root", func(t *testing.T) {
		input := []ticket.Message{
			msg("5", "404", "cust@x.com", "2024-01-01T00:00"),
			msg("6", "5", "other@x.com", "2024-01-02T00:00"),
		}
		res := NewBuilder(staff).Build(input)
		assert.Equal(t, []string{"5", "6"}, ids(res.Thread))
	})

	t.Run("cycle falls back to earliest root and terminates", func(t *testing.T) {
		input := []ticket.Message{
			msg("1", "2", "a@x.com", "2024-01-02T00:00"),
			msg("2", "1", "b@x.com", "2024-01-01T00:00"),
		}
		res := NewBuilder(staff).Build(input)
		assert.ElementsMatch(t, []string{"1", "2"}, ids(res.Thread))
		assert.Len(t, res.Thread, 2)
	})

	t.Run("isolated subgraph appended exactly once", func(t *testing.T) {
		// 1 <- 2 plus an unreachable pair 3 <-> 4
		input := []ticket.Message{
			msg("1", "", "a@x.com", "2024-01-01T00:00"),
			msg("2", "1", "b@x.com", "2024-01-02T00:00"),
			msg("3", "4", "c@x.com", "2024-01-03T00:00"),
			msg("4", "3", "d@x.com", "2024-01-04T00:00"),
		}
		res := NewBuilder(staff).Build(input)
		assert.Equal(t, []string{"1", "2", "3", "4"}, ids(res.Thread))
	})

	t.Run("duplicate ids placed once", func(t *testing.T) {
		input := []ticket.Message{
			msg("1", "", "a@x.com", "2024-01-01T00:00"),
			msg("1", "", "a@x.com", "2024-01-01T00:00"),
		}
		res := NewBuilder(staff).Build(input)
		assert.Len(t, res.Thread, 1)
	})
}

func TestBuildDeterminism(t *testing.T) {
	base := []ticket.Message{
		msg("1", "", "cust@x.com", "2024-01-01T00:00"),
		msg("2", "1", "staff@y.com", "2024-01-02T00:00"),
		msg("3", "1", "other@x.com", "2024-01-03T00:00"),
		msg("4", "3", "cust@x.com", "2024-01-04T00:00"),
		msg("5", "404", "cust@x.com", "2024-01-05T00:00"),
	}

	reference := NewBuilder(staff).Build(base)
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		shuffled := make([]ticket.Message, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		res := NewBuilder(staff).Build(shuffled)
		assert.Equal(t, ids(reference.Thread), ids(res.Thread))
		assert.Equal(t, reference.GroundTruth.ID, res.GroundTruth.ID)
		assert.Equal(t, ids(reference.History), ids(res.History))
	}
}
