package agent

import "fmt"

// ValidationError reports missing or malformed required input, such as a
// message without a user id or an initialization without a blueprint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// RoutingError reports that no agent is registered for a requested
// capability or task type.
type RoutingError struct {
	TaskType string
}

func (e *RoutingError) Error() string {
	return "No agent available for task type: " + e.TaskType
}

// InvariantError reports a should-never-happen state, such as a blueprint
// requested before any requirements were gathered.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Detail
}
