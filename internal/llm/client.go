// Package llm adapts the OpenAI chat completions API to the conversation
// model used by the orchestration loop.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/vigilab/sragwatch/internal/agent"
)

// Client is a thin, deterministic-by-configuration chat client: temperature
// is pinned to zero for orchestration stability.
type Client struct {
	api    openai.Client
	model  string
	logger *zap.Logger
}

// NewClient builds a chat client for the given model. Extra request options
// (base URL overrides for tests, custom HTTP clients) are passed through.
func NewClient(apiKey, model string, logger *zap.Logger, opts ...option.RequestOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		api:    openai.NewClient(all...),
		model:  model,
		logger: logger,
	}
}

// Chat sends the conversation and returns the model's next assistant turn.
// When tools is non-empty their descriptors are bound so the model can
// request invocations; it never executes anything through this call.
func (c *Client) Chat(ctx context.Context, msgs []agent.Message, tools []agent.ToolSpec) (agent.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    toOpenAIMessages(msgs),
		Temperature: openai.Float(0),
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return agent.Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.Message{}, fmt.Errorf("chat completion returned no choices")
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(msgs []agent.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case agent.RoleHuman:
			out = append(out, openai.UserMessage(m.Content))
		case agent.RoleAssistant:
			out = append(out, assistantParam(m))
		case agent.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func assistantParam(m agent.Message) openai.ChatCompletionMessageParamUnion {
	p := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		p.Content.OfString = openai.String(m.Content)
	}
	for _, tc := range m.ToolCalls {
		p.ToolCalls = append(p.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &p}
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) agent.Message {
	out := agent.Message{Role: agent.RoleAssistant, Content: m.Content}
	for _, tc := range m.ToolCalls {
		id := tc.ID
		if id == "" {
			// Some providers omit call IDs; correlation still requires one.
			id = uuid.New().String()
		}
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}

func toOpenAITools(tools []agent.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}
