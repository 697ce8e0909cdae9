package agent

import (
	"context"
	"time"

	"github.com/vigilab/sragwatch/internal/metrics"
	"github.com/vigilab/sragwatch/internal/tracing"
)

// synthesize produces the final report from the full conversation. The
// report persona and template are prepended as a human instruction so they
// take priority, and the model is invoked with tools disabled.
func (o *Orchestrator) synthesize(ctx context.Context, conv *Conversation) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestration.synthesize")
	defer span.End()

	if o.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.modelTimeout)
		defer cancel()
	}

	msgs := make([]Message, 0, conv.Len()+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: reportSystemPrompt})
	msgs = append(msgs, conv.Messages()...)

	start := time.Now()
	msg, err := o.model.Chat(ctx, msgs, nil)
	metrics.ModelCallDuration.WithLabelValues("synthesis").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelCalls.WithLabelValues("synthesis", "error").Inc()
		return "", err
	}
	metrics.ModelCalls.WithLabelValues("synthesis", "ok").Inc()
	return msg.Content, nil
}
