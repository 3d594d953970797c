package agent

import "context"

// Tool represents a function that the conversational model can invoke.
// There is one tool per catalog action.
type Tool struct {
	// Name is the action name (e.g., "wag_tail").
	Name string `json:"name"`

	// Description explains what the action does, helping the model decide
	// when to use it.
	Description string `json:"description"`

	// Parameters is the JSON schema of the action's arguments.
	Parameters map[string]any `json:"parameters"`

	// Handler runs the action and returns the result JSON.
	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// ToolCall represents an invocation of a tool by the model.
type ToolCall struct {
	// ID is the unique identifier for this tool call.
	// Used to match results back to the correct call.
	ID string `json:"id"`

	// Name is the tool being invoked.
	Name string `json:"name"`

	// Arguments contains the parsed arguments from the model.
	Arguments map[string]any `json:"arguments"`
}

// ToolResult represents the result of a tool invocation.
type ToolResult struct {
	// CallID matches the ToolCall.ID this result corresponds to.
	CallID string `json:"call_id"`

	// Result is the action result JSON sent back to the model.
	Result string `json:"result"`

	// Error is set only if the result could not be produced at all. A
	// failed action is a successful call with success=false in Result.
	Error error `json:"-"`
}
