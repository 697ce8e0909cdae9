package agent

// State enumerates the orchestration states.
type State int

const (
	StateReasoning State = iota
	StateToolExecution
	StateSynthesis
	StateDone
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateReasoning:
		return "reasoning"
	case StateToolExecution:
		return "tool_execution"
	case StateSynthesis:
		return "synthesis"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Route decides the next state from the latest assistant message alone:
// any requested tool call goes to execution, none goes to synthesis. No
// other signal is consulted, so the policy stays fully model-driven.
func Route(last Message) State {
	if len(last.ToolCalls) > 0 {
		return StateToolExecution
	}
	return StateSynthesis
}
