package types

import "fmt"

// InvalidCursorError reports a checkpoint string that cannot be parsed back
// into a traversal cursor. Fatal for the call that supplied it.
type InvalidCursorError struct {
	Checkpoint string
	Reason     string
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid checkpoint %q: %s", e.Checkpoint, e.Reason)
}

// InvalidArgumentError reports a caller bug such as a negative batch-size
// hint or a delete checkpoint without a timestamp.
type InvalidArgumentError struct {
	Argument string
	Value    any
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Argument, e.Value)
}

// QueryExecutionError wraps a backend failure (connectivity, syntax,
// permission) raised while executing a query. The host's retry policy
// decides what to do with it; the engine never swallows it.
type QueryExecutionError struct {
	View string
	Err  error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query against %s failed: %s", e.View, e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// CandidateRegressionError reports a time warp: the candidate query returned
// rows at or before the established checkpoint, or implausibly far ahead of
// it. It indicates clock skew or a query regression on the server and is not
// something the engine can self-correct, so it fails the call loudly.
type CandidateRegressionError struct {
	Detail string
}

func (e *CandidateRegressionError) Error() string {
	return fmt.Sprintf("candidate ordering regression: %s", e.Detail)
}
