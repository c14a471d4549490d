// Package graph provides the supervisor-routed graph execution engine.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRoutingContract matches any *ContractError via errors.Is.
var ErrRoutingContract = errors.New("routing contract violation")

// ErrRecursionLimit matches any *RecursionLimitError via errors.Is.
var ErrRecursionLimit = errors.New("recursion limit exceeded")

// EngineError represents a structural failure of graph construction or execution.
type EngineError struct {
	Message string
	Code    string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// ContractError reports a supervisor decision that named a target outside
// its legal set. The run is aborted; continuing would transition to an
// undefined state.
type ContractError struct {
	Node    string
	Target  string
	Allowed []string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("ROUTING_CONTRACT: node %s chose %q, allowed: %s",
		e.Node, e.Target, strings.Join(e.Allowed, ", "))
}

// Is reports whether target is ErrRoutingContract.
func (e *ContractError) Is(target error) bool {
	return target == ErrRoutingContract
}

// RecursionLimitError reports that a run hit its iteration cap before
// reaching FINISH or WAIT_FOR_INPUT. The engine still returns the state
// accumulated up to that point.
type RecursionLimitError struct {
	Limit int
	Node  string
}

// Error implements the error interface.
func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("RECURSION_LIMIT: run exceeded %d iterations (next node %s)", e.Limit, e.Node)
}

// Is reports whether target is ErrRecursionLimit.
func (e *RecursionLimitError) Is(target error) bool {
	return target == ErrRecursionLimit
}

// Category returns the taxonomy name of a run-level error, for callers that
// report failures without inspecting concrete types.
func Category(err error) string {
	var ee *EngineError
	var ne *NodeError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoutingContract):
		return "routing_contract_violation"
	case errors.Is(err, ErrRecursionLimit):
		return "recursion_limit_exceeded"
	case errors.As(err, &ne):
		return "node_execution_error"
	case errors.As(err, &ee):
		return strings.ToLower(ee.Code)
	default:
		return "error"
	}
}

func isStructural(err error) bool {
	var ee *EngineError
	return errors.Is(err, ErrRoutingContract) ||
		errors.Is(err, ErrRecursionLimit) ||
		errors.As(err, &ee)
}
