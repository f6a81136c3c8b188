package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlscout/sqlscout/internal/observability"
)

// Gateway tries candidates strictly in configured priority order. A failing
// candidate gets exactly one attempt before the gateway advances; there is no
// backoff or retry against the same candidate. Each call is stateless with
// respect to prior calls.
type Gateway struct {
	candidates []Candidate
	logger     *slog.Logger
}

func NewGateway(candidates []Candidate, logger *slog.Logger) (*Gateway, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("at least one candidate is required")
	}
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	for i := range ordered {
		if strings.TrimSpace(ordered[i].ID) == "" {
			return nil, fmt.Errorf("candidate %d: id is required", i)
		}
		if ordered[i].Client == nil {
			return nil, fmt.Errorf("candidate %q: client is required", ordered[i].ID)
		}
		ordered[i].Rank = i
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{candidates: ordered, logger: logger}, nil
}

// Candidates returns the configured fallback order.
func (g *Gateway) Candidates() []Candidate {
	ordered := make([]Candidate, len(g.candidates))
	copy(ordered, g.candidates)
	return ordered
}

func (g *Gateway) Complete(ctx context.Context, prompt string) (Completion, error) {
	failures := make([]CandidateFailure, 0, len(g.candidates))
	for _, candidate := range g.candidates {
		text, err := candidate.Client.Complete(ctx, prompt)
		if err == nil && strings.TrimSpace(text) == "" {
			err = fmt.Errorf("model returned empty completion")
		}
		if err != nil {
			observability.ObserveModelCall(candidate.ID, "error")
			g.logger.WarnContext(ctx, "model candidate failed",
				slog.String("model", candidate.ID),
				slog.Int("rank", candidate.Rank),
				slog.Any("error", err),
			)
			failures = append(failures, CandidateFailure{Model: candidate.ID, Reason: err.Error()})
			if candidate.Rank < len(g.candidates)-1 {
				observability.IncrementModelFallback()
			}
			continue
		}
		observability.ObserveModelCall(candidate.ID, "ok")
		return Completion{Text: text, Model: candidate.ID}, nil
	}
	return Completion{}, &ExhaustedError{Failures: failures}
}
