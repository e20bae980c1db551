package redis

import "fmt"

// ParseError reports a malformed CLUSTER NODES row
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse node line '%s': %s", e.Line, e.Reason)
}

// PreconditionError reports a seed node failing one of the cluster creation preconditions
type PreconditionError struct {
	Addr      string
	Condition string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("node %s: %s", e.Addr, e.Condition)
}

// ServerError reports a remote call that returned a failure reply
type ServerError struct {
	Addr    string
	Message string
	Cause   error
}

func (e *ServerError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: unable to connect to node %s", e.Message, e.Addr)
	}
	return fmt.Sprintf("%s: unexpected error on node %s: %v", e.Message, e.Addr, e.Cause)
}

// Unwrap returns the underlying reply error, if any
func (e *ServerError) Unwrap() error {
	return e.Cause
}

// NoSlotsError reports a reshard requested while the source nodes hold no stable slot
type NoSlotsError struct {
	Sources []string
}

func (e *NoSlotsError) Error() string {
	return fmt.Sprintf("no stable slot to migrate from source nodes %v", e.Sources)
}
