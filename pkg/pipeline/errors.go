package pipeline

import "fmt"

// UnknownNodeError indicates the graph references a node name or type the
// orchestrator does not know. This is a configuration bug and is fatal.
type UnknownNodeError struct {
	Node string
}

// Error implements the error interface.
func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown graph node %q", e.Node)
}

// NoMatchingEdgeError indicates no outgoing edge condition held at a node.
// This is a configuration bug and is fatal.
type NoMatchingEdgeError struct {
	Node string
}

// Error implements the error interface.
func (e *NoMatchingEdgeError) Error() string {
	return fmt.Sprintf("no outgoing edge matched at node %q", e.Node)
}

// PreconditionError indicates a node ran before the state it requires
// existed (e.g. reviewing before writing). It signals a caller or graph
// configuration bug, not a recoverable condition.
type PreconditionError struct {
	Node    string
	Missing string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("node %q requires %s which is not present", e.Node, e.Missing)
}

// StepLimitError indicates the traversal exceeded the configured maximum
// step count without reaching a terminal node, which protects against
// graph cycles and misconfiguration.
type StepLimitError struct {
	MaxSteps int
}

// Error implements the error interface.
func (e *StepLimitError) Error() string {
	return fmt.Sprintf("pipeline exceeded %d steps without reaching a terminal node", e.MaxSteps)
}

// MissingDraftError indicates the write stage finished without producing
// all fixed channels. Fatal for that stage.
type MissingDraftError struct {
	Channel string
}

// Error implements the error interface.
func (e *MissingDraftError) Error() string {
	return fmt.Sprintf("write stage produced no draft for channel %q", e.Channel)
}
