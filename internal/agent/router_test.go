package agent

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteWithToolCalls(t *testing.T) {
	msg := Message{Role: RoleAssistant, ToolCalls: []ToolCall{
		{ID: "1", Name: "query_srag_database", Arguments: json.RawMessage(`{"query":"x"}`)},
	}}
	assert.Equal(t, StateToolExecution, Route(msg))
}

func TestRouteWithoutToolCalls(t *testing.T) {
	msg := Message{Role: RoleAssistant, Content: "done"}
	assert.Equal(t, StateSynthesis, Route(msg))
}

// Route must be a pure function of tool-call presence alone: no message
// content, count or name may change the decision.
func TestRouteProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"query_srag_database", "search_news_context", "bogus", ""}

	for i := 0; i < 500; i++ {
		n := rng.Intn(4) // 0..3 requested calls
		msg := Message{Role: RoleAssistant, Content: randString(rng)}
		for j := 0; j < n; j++ {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:        randString(rng),
				Name:      names[rng.Intn(len(names))],
				Arguments: json.RawMessage(`{}`),
			})
		}

		want := StateSynthesis
		if n > 0 {
			want = StateToolExecution
		}
		assert.Equal(t, want, Route(msg), "iteration %d with %d calls", i, n)
	}
}

func randString(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz "
	b := make([]byte, rng.Intn(20))
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
