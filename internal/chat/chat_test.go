package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/sqlscout/sqlscout/internal/agent"
	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/sqlguard"
	"github.com/sqlscout/sqlscout/internal/viz"
)

type fakeAnswerer struct {
	answers []agent.Answer
	errs    []error
	windows [][]agent.HistoryEntry
	calls   int
}

func (f *fakeAnswerer) Answer(_ context.Context, _ string, history []agent.HistoryEntry) (agent.Answer, error) {
	f.windows = append(f.windows, history)
	index := f.calls
	f.calls++
	if index < len(f.errs) && f.errs[index] != nil {
		return agent.Answer{}, f.errs[index]
	}
	if index < len(f.answers) {
		return f.answers[index], nil
	}
	return agent.Answer{}, fmt.Errorf("unexpected answer call %d", index)
}

type fakeSelector struct {
	spec viz.ChartSpec
}

func (f *fakeSelector) Select(context.Context, string, database.Result) viz.ChartSpec {
	return f.spec
}

func newConversation(t *testing.T, answerer Answerer, selector ChartSelector, historyLimit int) *Conversation {
	t.Helper()
	conv, err := NewConversation(Config{
		Answerer:     answerer,
		Selector:     selector,
		Logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
		HistoryLimit: historyLimit,
		ContextTurns: 4,
	})
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	return conv
}

func sampleAnswer(sqlText string) agent.Answer {
	return agent.Answer{
		SQL:   sqlText,
		Model: "model-a",
		Text:  "here are the results",
		Result: database.Result{
			Columns: []string{"region", "total"},
			Rows:    [][]any{{"north", int64(12)}},
		},
	}
}

func TestHandleTurnRecordsCompletedExchange(t *testing.T) {
	answerer := &fakeAnswerer{answers: []agent.Answer{sampleAnswer("SELECT region, total FROM sales")}}
	conv := newConversation(t, answerer, &fakeSelector{spec: viz.ChartSpec{Kind: viz.KindNone}}, 10)

	turn := conv.HandleTurn(context.Background(), "sales by region")
	if turn.State != StateCompleted {
		t.Fatalf("State = %q", turn.State)
	}
	if turn.SQL != "SELECT region, total FROM sales" {
		t.Fatalf("SQL = %q", turn.SQL)
	}
	if turn.Result == nil || turn.Result.RowCount() != 1 {
		t.Fatalf("Result = %+v", turn.Result)
	}
	if turn.Chart != nil {
		t.Fatalf("Chart = %+v, want nil when kind is none", turn.Chart)
	}

	history := conv.History()
	if len(history) != 2 {
		t.Fatalf("len(History()) = %d, want user + assistant", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("roles = %q, %q", history[0].Role, history[1].Role)
	}
}

func TestHandleTurnAttachesChart(t *testing.T) {
	answerer := &fakeAnswerer{answers: []agent.Answer{sampleAnswer("SELECT region, total FROM sales")}}
	spec := viz.ChartSpec{Kind: viz.KindBar, X: []string{"region"}, Y: []string{"total"}}
	conv := newConversation(t, answerer, &fakeSelector{spec: spec}, 10)

	turn := conv.HandleTurn(context.Background(), "bar chart of sales by region")
	if turn.Chart == nil || turn.Chart.Kind != viz.KindBar {
		t.Fatalf("Chart = %+v", turn.Chart)
	}
}

func TestHandleTurnRecordsFailureKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrKind
	}{
		{&llm.ExhaustedError{Failures: []llm.CandidateFailure{{Model: "m", Reason: "down"}}}, ErrKindExhausted},
		{&sqlguard.UnsupportedError{Statement: "DROP TABLE x", Reason: "statement kind DROP"}, ErrKindUnsupported},
		{&database.ExecutionError{Query: "SELECT x", Err: errors.New("bad column")}, ErrKindExecution},
		{errors.New("boom"), ErrKindInternal},
	}
	for _, tc := range cases {
		answerer := &fakeAnswerer{errs: []error{tc.err}}
		conv := newConversation(t, answerer, nil, 10)

		turn := conv.HandleTurn(context.Background(), "question")
		if turn.State != StateFailed {
			t.Fatalf("State = %q for %v", turn.State, tc.err)
		}
		if turn.ErrKind != tc.kind {
			t.Fatalf("ErrKind = %q, want %q", turn.ErrKind, tc.kind)
		}
		if turn.Err == "" {
			t.Fatal("failed turn missing error message")
		}
	}
}

func TestHistoryIsBoundedOldestFirstTruncated(t *testing.T) {
	answerer := &fakeAnswerer{}
	for range 6 {
		answerer.answers = append(answerer.answers, sampleAnswer("SELECT 1"))
	}
	conv := newConversation(t, answerer, nil, 4)

	for i := range 6 {
		conv.HandleTurn(context.Background(), fmt.Sprintf("question %d", i))
	}

	history := conv.History()
	if len(history) != 4 {
		t.Fatalf("len(History()) = %d, want cap 4", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].ID <= history[i-1].ID {
			t.Fatalf("history out of order: %d after %d", history[i].ID, history[i-1].ID)
		}
	}
	if history[0].Text == "question 0" {
		t.Fatal("oldest turns should be truncated")
	}
}

func TestContextWindowSkipsFailedTurns(t *testing.T) {
	answerer := &fakeAnswerer{
		answers: []agent.Answer{sampleAnswer("SELECT region FROM sales"), {}, sampleAnswer("SELECT 1")},
		errs:    []error{nil, errors.New("boom"), nil},
	}
	conv := newConversation(t, answerer, nil, 10)

	conv.HandleTurn(context.Background(), "first question")
	conv.HandleTurn(context.Background(), "failing question")
	conv.HandleTurn(context.Background(), "third question")

	window := answerer.windows[2]
	for _, entry := range window {
		if entry.Text == "" {
			t.Fatal("window contains empty entry")
		}
	}
	for _, entry := range window {
		if entry.Role == "assistant" && entry.SQL == "" && entry.Text == "" {
			t.Fatal("failed assistant turn leaked into the window")
		}
	}
	foundFirst := false
	for _, entry := range window {
		if entry.SQL == "SELECT region FROM sales" {
			foundFirst = true
		}
	}
	if !foundFirst {
		t.Fatal("prior completed SQL missing from window")
	}
}

func TestClearEmptiesHistory(t *testing.T) {
	answerer := &fakeAnswerer{answers: []agent.Answer{sampleAnswer("SELECT 1")}}
	conv := newConversation(t, answerer, nil, 10)

	conv.HandleTurn(context.Background(), "question")
	if removed := conv.Clear(); removed != 2 {
		t.Fatalf("Clear() = %d, want 2", removed)
	}
	if len(conv.History()) != 0 {
		t.Fatal("history not empty after Clear")
	}
}

func TestTurnLookup(t *testing.T) {
	answerer := &fakeAnswerer{answers: []agent.Answer{sampleAnswer("SELECT 1")}}
	conv := newConversation(t, answerer, nil, 10)

	recorded := conv.HandleTurn(context.Background(), "question")
	turn, err := conv.Turn(recorded.ID)
	if err != nil {
		t.Fatalf("Turn(%d) error = %v", recorded.ID, err)
	}
	if turn.SQL != "SELECT 1" {
		t.Fatalf("SQL = %q", turn.SQL)
	}
	if _, err := conv.Turn(999); err == nil {
		t.Fatal("expected error for unknown turn id")
	}
}
