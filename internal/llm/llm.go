// Package llm wraps one or more language-model backends behind a uniform
// completion contract with ordered fallback.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client is one backend-specific text-completion transport.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Candidate pairs a configured model identifier with its transport. Rank is
// the fallback priority position; the candidate list is fixed at startup and
// never mutated during a session.
type Candidate struct {
	ID                string
	Rank              int
	SupportsStreaming bool
	Client            Client
}

// Completion carries the generated text and which candidate produced it, so
// downstream components can report provenance.
type Completion struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// CandidateFailure records why one candidate was skipped during fallback.
type CandidateFailure struct {
	Model  string `json:"model"`
	Reason string `json:"reason"`
}

// ExhaustedError is returned when every configured candidate failed. It
// carries the ordered per-candidate failure reasons.
type ExhaustedError struct {
	Failures []CandidateFailure
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %s", failure.Model, failure.Reason))
	}
	return "all model candidates exhausted: " + strings.Join(reasons, "; ")
}
