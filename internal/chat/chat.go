// Package chat owns the conversation loop. It sequences a user turn through
// answering and optional chart selection, records the outcome on an
// append-only bounded history, and serializes turns so a conversation never
// processes two questions at once.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlscout/sqlscout/internal/agent"
	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/sqlguard"
	"github.com/sqlscout/sqlscout/internal/viz"
)

// State is the lifecycle position of a turn.
type State string

const (
	StateReceived    State = "received"
	StateAnswering   State = "answering"
	StateVisualizing State = "visualizing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// ErrKind classifies a failed turn for clients and metrics.
type ErrKind string

const (
	ErrKindNone        ErrKind = ""
	ErrKindExhausted   ErrKind = "models_exhausted"
	ErrKindUnsupported ErrKind = "unsupported_statement"
	ErrKindExecution   ErrKind = "execution_failed"
	ErrKindInternal    ErrKind = "internal"
)

// Turn is one completed exchange. Assistant turns carry the executed SQL and
// its result; failed turns carry the error kind and message instead.
type Turn struct {
	ID        int              `json:"id"`
	Role      string           `json:"role"`
	Text      string           `json:"text"`
	SQL       string           `json:"sql,omitempty"`
	Model     string           `json:"model,omitempty"`
	Corrected bool             `json:"corrected,omitempty"`
	Result    *database.Result `json:"result,omitempty"`
	Chart     *viz.ChartSpec   `json:"chart,omitempty"`
	Err       string           `json:"error,omitempty"`
	ErrKind   ErrKind          `json:"error_kind,omitempty"`
	State     State            `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
}

// Answerer produces an answer for a question given prior conversation turns.
type Answerer interface {
	Answer(ctx context.Context, question string, history []agent.HistoryEntry) (agent.Answer, error)
}

// ChartSelector picks a chart spec for a request/result pair.
type ChartSelector interface {
	Select(ctx context.Context, requestText string, result database.Result) viz.ChartSpec
}

// Config wires a Conversation.
type Config struct {
	Answerer     Answerer
	Selector     ChartSelector
	Logger       *slog.Logger
	HistoryLimit int
	ContextTurns int
}

// Conversation orchestrates turns for one conversation. Turn processing is
// strictly sequential; History and Clear are safe alongside an active turn.
type Conversation struct {
	answerer     Answerer
	selector     ChartSelector
	logger       *slog.Logger
	historyLimit int
	contextTurns int

	mu      sync.Mutex
	history []Turn
	nextID  int
}

// NewConversation validates cfg and builds a conversation with empty history.
func NewConversation(cfg Config) (*Conversation, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("chat: answerer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = 6
	}
	return &Conversation{
		answerer:     cfg.Answerer,
		selector:     cfg.Selector,
		logger:       cfg.Logger,
		historyLimit: cfg.HistoryLimit,
		contextTurns: cfg.ContextTurns,
		nextID:       1,
	}, nil
}

// HandleTurn processes one user question to completion and returns the
// recorded assistant turn. Failures are recorded on the turn, not returned.
func (c *Conversation) HandleTurn(ctx context.Context, userText string) Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now().UTC()
	window := c.contextWindowLocked()
	c.appendLocked(Turn{Role: "user", Text: userText, State: StateCompleted, CreatedAt: started})

	c.logger.InfoContext(ctx, "turn received", slog.String("state", string(StateAnswering)))
	answer, err := c.answerer.Answer(ctx, userText, window)
	if err != nil {
		turn := Turn{
			Role:      "assistant",
			Err:       err.Error(),
			ErrKind:   classifyError(err),
			State:     StateFailed,
			CreatedAt: time.Now().UTC(),
		}
		c.logger.WarnContext(ctx, "turn failed",
			slog.String("kind", string(turn.ErrKind)),
			slog.String("error", turn.Err),
		)
		observability.ObserveTurn(string(StateFailed))
		return c.appendLocked(turn)
	}

	turn := Turn{
		Role:      "assistant",
		Text:      answer.Text,
		SQL:       answer.SQL,
		Model:     answer.Model,
		Corrected: answer.Corrected,
		State:     StateCompleted,
		CreatedAt: time.Now().UTC(),
	}
	if !answer.NonQuery {
		result := answer.Result
		turn.Result = &result
		if c.selector != nil {
			c.logger.DebugContext(ctx, "turn state", slog.String("state", string(StateVisualizing)))
			spec := c.selector.Select(ctx, userText, result)
			if spec.Kind != viz.KindNone {
				turn.Chart = &spec
			}
		}
	}

	c.logger.InfoContext(ctx, "turn completed",
		slog.String("model", turn.Model),
		slog.Bool("corrected", turn.Corrected),
		slog.Duration("elapsed", time.Since(started)),
	)
	observability.ObserveTurn(string(StateCompleted))
	return c.appendLocked(turn)
}

// History returns a copy of the recorded turns, oldest first.
func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Clear drops all recorded turns and returns how many were removed.
func (c *Conversation) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.history)
	c.history = nil
	return removed
}

// Turn returns the recorded turn with the given ID.
func (c *Conversation) Turn(id int) (Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, turn := range c.history {
		if turn.ID == id {
			return turn, nil
		}
	}
	return Turn{}, fmt.Errorf("chat: no turn with id %d", id)
}

func (c *Conversation) appendLocked(turn Turn) Turn {
	turn.ID = c.nextID
	c.nextID++
	c.history = append(c.history, turn)
	if len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}
	return turn
}

// contextWindowLocked renders the newest completed turns as prompt context,
// skipping failed turns.
func (c *Conversation) contextWindowLocked() []agent.HistoryEntry {
	entries := make([]agent.HistoryEntry, 0, c.contextTurns)
	for i := len(c.history) - 1; i >= 0 && len(entries) < c.contextTurns; i-- {
		turn := c.history[i]
		if turn.State != StateCompleted {
			continue
		}
		entries = append(entries, agent.HistoryEntry{Role: turn.Role, Text: turn.Text, SQL: turn.SQL})
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

func classifyError(err error) ErrKind {
	var exhausted *llm.ExhaustedError
	if errors.As(err, &exhausted) {
		return ErrKindExhausted
	}
	var unsupported *sqlguard.UnsupportedError
	if errors.As(err, &unsupported) {
		return ErrKindUnsupported
	}
	var execErr *database.ExecutionError
	if errors.As(err, &execErr) {
		return ErrKindExecution
	}
	return ErrKindInternal
}
