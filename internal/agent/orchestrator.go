package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vigilab/sragwatch/internal/metrics"
	"github.com/vigilab/sragwatch/internal/tracing"
)

// ErrNoConvergence is returned when the reasoning/tool-execution cycle
// exceeds the configured iteration cap without the model signalling it is
// done. The run is aborted; synthesis is never attempted.
var ErrNoConvergence = errors.New("agent did not converge within the iteration limit")

// ChatModel is the LLM surface the orchestrator depends on. One call, one
// new assistant message; when tools is non-empty the model may request
// invocations but never executes anything itself.
type ChatModel interface {
	Chat(ctx context.Context, msgs []Message, tools []ToolSpec) (Message, error)
}

// Options tune one orchestrator instance.
type Options struct {
	// MaxIterations caps the reasoning<->tool-execution cycle. Zero means
	// the default of 10.
	MaxIterations int
	// ModelTimeout bounds each individual model call. Zero disables it.
	ModelTimeout time.Duration
	// ToolTimeout bounds each individual tool invocation. Zero disables it.
	ToolTimeout time.Duration
}

// Orchestrator wires the reasoning node, the router, the tool-execution
// node and the report synthesis node into a cyclic state machine and drives
// it to termination.
type Orchestrator struct {
	model         ChatModel
	tools         ToolInvoker
	logger        *zap.Logger
	maxIterations int
	modelTimeout  time.Duration
	toolTimeout   time.Duration
}

// New builds an orchestrator over a model and a tool registry.
func New(model ChatModel, tools ToolInvoker, logger *zap.Logger, opts Options) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		model:         model,
		tools:         tools,
		logger:        logger,
		maxIterations: opts.MaxIterations,
		modelTimeout:  opts.ModelTimeout,
		toolTimeout:   opts.ToolTimeout,
	}
}

// Run executes one orchestration run anchored to referenceDate and returns
// the final report text. The conversation is created fresh, grows strictly
// monotonically, and is discarded when the run ends.
func (o *Orchestrator) Run(ctx context.Context, referenceDate string) (string, error) {
	runID := uuid.New().String()
	logger := o.logger.With(zap.String("run_id", runID), zap.String("reference_date", referenceDate))

	ctx, span := tracing.StartSpan(ctx, "orchestration.run")
	defer span.End()

	metrics.RunsStarted.Inc()
	start := time.Now()

	report, err := o.run(ctx, referenceDate, logger)
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RunsCompleted.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.RunsCompleted.WithLabelValues("ok").Inc()
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, referenceDate string, logger *zap.Logger) (string, error) {
	conv := &Conversation{}
	conv.Append(HumanMessage(TaskPrompt(referenceDate)))

	state := StateReasoning
	iterations := 0

	for {
		switch state {
		case StateReasoning:
			iterations++
			if iterations > o.maxIterations {
				logger.Error("Iteration cap exceeded, aborting run",
					zap.Int("max_iterations", o.maxIterations))
				metrics.LoopIterations.Observe(float64(iterations - 1))
				return "", fmt.Errorf("%w after %d iterations", ErrNoConvergence, o.maxIterations)
			}
			msg, err := o.reason(ctx, conv)
			if err != nil {
				return "", fmt.Errorf("reasoning step: %w", err)
			}
			conv.Append(msg)
			state = Route(msg)
			logger.Debug("Routed assistant turn",
				zap.Int("iteration", iterations),
				zap.Int("tool_calls", len(msg.ToolCalls)),
				zap.Stringer("next_state", state),
			)

		case StateToolExecution:
			last, _ := conv.Last()
			results := o.executeToolCalls(ctx, last.ToolCalls)
			conv.Append(results...)
			state = StateReasoning

		case StateSynthesis:
			metrics.LoopIterations.Observe(float64(iterations))
			report, err := o.synthesize(ctx, conv)
			if err != nil {
				// Synthesis failure is fatal for the run: the caller gets a
				// failed run, never a partial report.
				return "", fmt.Errorf("report synthesis: %w", err)
			}
			logger.Info("Run completed", zap.Int("iterations", iterations), zap.Int("messages", conv.Len()))
			return report, nil
		}
	}
}

// reason asks the model for the next assistant turn with the registered
// tool descriptors bound.
func (o *Orchestrator) reason(ctx context.Context, conv *Conversation) (Message, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestration.reason")
	defer span.End()

	if o.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.modelTimeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := o.model.Chat(ctx, conv.Messages(), o.tools.Specs())
	metrics.ModelCallDuration.WithLabelValues("reasoning").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelCalls.WithLabelValues("reasoning", "error").Inc()
		return Message{}, err
	}
	metrics.ModelCalls.WithLabelValues("reasoning", "ok").Inc()
	return msg, nil
}
