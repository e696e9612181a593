// Package runtime implements the orchestration state machine: the
// confidence gate, the clarification loop, the backend dispatcher with
// bounded retry, and the engine that drives a turn from classification to a
// terminal state while recording the decision trail.
package runtime
