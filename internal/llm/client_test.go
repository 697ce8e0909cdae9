package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vigilab/sragwatch/internal/agent"
)

// completionServer fakes the chat completions endpoint, capturing the
// request and answering with a fixed body.
func completionServer(t *testing.T, response string, capture *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const textReply = `{
	"id": "c1", "object": "chat.completion", "model": "gpt-4o-mini",
	"choices": [{"index": 0, "finish_reason": "stop",
		"message": {"role": "assistant", "content": "final answer"}}]
}`

const toolCallReply = `{
	"id": "c2", "object": "chat.completion", "model": "gpt-4o-mini",
	"choices": [{"index": 0, "finish_reason": "tool_calls",
		"message": {"role": "assistant", "content": "",
			"tool_calls": [{"id": "call-1", "type": "function",
				"function": {"name": "query_srag_database", "arguments": "{\"query\":\"cases\"}"}}]}}]
}`

func TestChatRoundTrip(t *testing.T) {
	var got map[string]any
	srv := completionServer(t, textReply, &got)
	c := NewClient("test-key", "gpt-4o-mini", zap.NewNop(), option.WithBaseURL(srv.URL))

	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: "you are terse"},
		agent.HumanMessage("hello"),
	}
	out, err := c.Chat(context.Background(), msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, agent.RoleAssistant, out.Role)
	assert.Equal(t, "final answer", out.Content)
	assert.Empty(t, out.ToolCalls)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.Equal(t, float64(0), got["temperature"])
	sent, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, sent, 2)
	first := sent[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	second := sent[1].(map[string]any)
	assert.Equal(t, "user", second["role"])
	assert.Equal(t, "hello", second["content"])
	_, hasTools := got["tools"]
	assert.False(t, hasTools)
}

func TestChatBindsTools(t *testing.T) {
	var got map[string]any
	srv := completionServer(t, toolCallReply, &got)
	c := NewClient("test-key", "gpt-4o-mini", zap.NewNop(), option.WithBaseURL(srv.URL))

	tools := []agent.ToolSpec{{
		Name:        "query_srag_database",
		Description: "query the database",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
	}}
	out, err := c.Chat(context.Background(), []agent.Message{agent.HumanMessage("count cases")}, tools)
	require.NoError(t, err)

	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "call-1", out.ToolCalls[0].ID)
	assert.Equal(t, "query_srag_database", out.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"cases"}`, string(out.ToolCalls[0].Arguments))

	sentTools, ok := got["tools"].([]any)
	require.True(t, ok)
	require.Len(t, sentTools, 1)
	fn := sentTools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "query_srag_database", fn["name"])
}

func TestChatSendsToolResults(t *testing.T) {
	var got map[string]any
	srv := completionServer(t, textReply, &got)
	c := NewClient("test-key", "gpt-4o-mini", zap.NewNop(), option.WithBaseURL(srv.URL))

	msgs := []agent.Message{
		agent.HumanMessage("count cases"),
		{
			Role: agent.RoleAssistant,
			ToolCalls: []agent.ToolCall{{
				ID: "call-1", Name: "query_srag_database",
				Arguments: json.RawMessage(`{"query":"cases"}`),
			}},
		},
		agent.ToolMessage(agent.ToolCall{ID: "call-1", Name: "query_srag_database"}, "30 cases"),
	}
	_, err := c.Chat(context.Background(), msgs, nil)
	require.NoError(t, err)

	sent := got["messages"].([]any)
	require.Len(t, sent, 3)

	assistant := sent[1].(map[string]any)
	assert.Equal(t, "assistant", assistant["role"])
	calls := assistant["tool_calls"].([]any)
	require.Len(t, calls, 1)
	assert.Equal(t, "call-1", calls[0].(map[string]any)["id"])

	toolMsg := sent[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call-1", toolMsg["tool_call_id"])
	assert.Equal(t, "30 cases", toolMsg["content"])
}

func TestChatMissingToolCallIDGetsGenerated(t *testing.T) {
	const reply = `{
		"id": "c3", "object": "chat.completion", "model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "tool_calls",
			"message": {"role": "assistant",
				"tool_calls": [{"id": "", "type": "function",
					"function": {"name": "search_news_context", "arguments": "{\"query\":\"srag\"}"}}]}}]
	}`
	srv := completionServer(t, reply, nil)
	c := NewClient("test-key", "gpt-4o-mini", zap.NewNop(), option.WithBaseURL(srv.URL))

	out, err := c.Chat(context.Background(), []agent.Message{agent.HumanMessage("x")}, nil)
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.NotEmpty(t, out.ToolCalls[0].ID)
}

func TestChatNoChoices(t *testing.T) {
	srv := completionServer(t, `{"id":"c4","object":"chat.completion","choices":[]}`, nil)
	c := NewClient("test-key", "gpt-4o-mini", zap.NewNop(), option.WithBaseURL(srv.URL))

	_, err := c.Chat(context.Background(), []agent.Message{agent.HumanMessage("x")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestChatHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("test-key", "gpt-4o-mini", zap.NewNop(),
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, err := c.Chat(context.Background(), []agent.Message{agent.HumanMessage("x")}, nil)
	assert.Error(t, err)
}
