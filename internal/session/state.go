// Package session owns one broker's browsing session: the orchestration state
// machine, the latest results and the quote pack.
package session

import "errors"

// State is the orchestration state of a session.
type State string

const (
	Idle               State = "Idle"
	Analyzing          State = "Analyzing"
	AwaitingClarifiers State = "AwaitingClarifiers"
	Recommending       State = "Recommending"
	Ready              State = "Ready"
	Failed             State = "Failed"
)

// acceptsRun reports whether a new cycle may start from s.
func (s State) acceptsRun() bool {
	return s == Idle || s == Ready || s == Failed
}

func (s State) inFlight() bool {
	return s == Analyzing || s == Recommending
}

var (
	ErrBusy                = errors.New("a recommendation cycle is already in flight")
	ErrNoPendingClarifiers = errors.New("no clarifiers are waiting for answers")
	ErrUnknownProduct      = errors.New("product is not in the current results")
	ErrSessionNotFound     = errors.New("session not found")
)

// OutcomeKind classifies the result of a run or a clarifier submission.
type OutcomeKind string

const (
	ClarifiersPending    OutcomeKind = "clarifiers_pending"
	RecommendationsReady OutcomeKind = "recommendations_ready"
	CycleFailed          OutcomeKind = "failed"
)
