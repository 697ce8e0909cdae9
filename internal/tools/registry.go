// Package tools holds the capabilities the reasoning model may request:
// the temporally-guarded structured-query tool and the hybrid news
// retrieval tool, behind a static name-keyed registry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vigilab/sragwatch/internal/agent"
)

// Tool is the fixed call contract: arguments in, text out, errors surfaced
// to the caller (which converts them to text for the model).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is a static set of tools keyed by name, registered once at
// startup and immutable for the run.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools.
func NewRegistry(tools ...Tool) *Registry {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &Registry{tools: m}
}

// Specs returns the descriptors exposed to the model, in stable name order.
func (r *Registry) Specs() []agent.ToolSpec {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]agent.ToolSpec, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		specs = append(specs, agent.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}

// Invoke dispatches to the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Invoke(ctx, args)
}

// queryArgs is the single-argument schema shared by both tools.
type queryArgs struct {
	Query string `json:"query"`
}

func decodeQuery(args json.RawMessage) (string, error) {
	var qa queryArgs
	if err := json.Unmarshal(args, &qa); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if qa.Query == "" {
		return "", fmt.Errorf("missing required argument %q", "query")
	}
	return qa.Query, nil
}

func queryParameters(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": desc,
			},
		},
		"required": []string{"query"},
	}
}
