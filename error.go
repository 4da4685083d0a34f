package cgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSkip can be returned (or wrapped) by a node function to drop the
// current message instead of failing the node. The skip is recorded in
// the node metrics and the log.
var ErrSkip = errors.New("cgraph: skip message")

// ErrGraphStarted is returned when nodes are added to or start is
// requested from an already started graph.
var ErrGraphStarted = errors.New("cgraph: graph already started")

// ErrEmptyGraph is returned when a graph without nodes is started.
var ErrEmptyGraph = errors.New("cgraph: graph has no nodes")

// WiringError is returned by Graph.Start when the graph is not runnable:
// unbound ports, invalid worker counts or broadcast inputs shared by
// multiple workers. No node is started when it is returned.
type WiringError struct {
	Errors []error
}

func (e *WiringError) Error() string {
	s := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		s = append(s, err.Error())
	}
	return fmt.Sprintf("cgraph: wiring failed: %s", strings.Join(s, "; "))
}

// Unwrap makes every wiring failure reachable with errors.Is/As.
func (e *WiringError) Unwrap() []error {
	return e.Errors
}

// NodeError is a failure of a single node recorded during the run.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// RunErrors wraps failures recorded across all nodes during a run.
// Multiple independent nodes may fail before the graph drains, so the
// whole set is kept.
type RunErrors []error

func (e RunErrors) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return strings.Join(s, ",")
}

// Unwrap makes recorded failures reachable with errors.Is/As.
func (e RunErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if the error list is empty.
func (e RunErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
