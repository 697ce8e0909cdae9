package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vigilab/sragwatch/internal/metrics"
	"github.com/vigilab/sragwatch/internal/tracing"
)

// ToolInvoker is the registry surface the executor dispatches against.
type ToolInvoker interface {
	Specs() []ToolSpec
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// executeToolCalls runs every call requested by the latest assistant turn
// and returns one tool message per call, in request order. Tool failures,
// unknown names and timeouts are converted into textual results so the
// reasoning loop can always continue and adapt on the next pass.
func (o *Orchestrator) executeToolCalls(ctx context.Context, calls []ToolCall) []Message {
	results := make([]Message, len(calls))

	// Independent calls within one turn may run concurrently; the request
	// order of the results slice keeps the conversation deterministic.
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = ToolMessage(call, o.invokeOne(gctx, call))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) invokeOne(ctx context.Context, call ToolCall) string {
	ctx, span := tracing.StartSpan(ctx, "tool."+call.Name)
	defer span.End()

	if o.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.toolTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := o.tools.Invoke(ctx, call.Name, call.Arguments)
	metrics.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolInvocations.WithLabelValues(call.Name, "error").Inc()
		o.logger.Warn("Tool invocation failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
		return fmt.Sprintf("tool %q failed: %v", call.Name, err)
	}
	metrics.ToolInvocations.WithLabelValues(call.Name, "ok").Inc()
	return out
}
