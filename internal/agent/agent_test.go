package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/sqlguard"
)

type fakeGateway struct {
	prompts     []string
	completions []llm.Completion
	errs        []error
	calls       int
}

func (f *fakeGateway) Complete(_ context.Context, prompt string) (llm.Completion, error) {
	f.prompts = append(f.prompts, prompt)
	index := f.calls
	f.calls++
	if index < len(f.errs) && f.errs[index] != nil {
		return llm.Completion{}, f.errs[index]
	}
	if index < len(f.completions) {
		return f.completions[index], nil
	}
	return llm.Completion{}, fmt.Errorf("unexpected gateway call %d", index)
}

type fakeExecutor struct {
	executed []string
	results  []database.Result
	errs     []error
	calls    int
}

func (f *fakeExecutor) Execute(_ context.Context, sqlText string) (database.Result, error) {
	f.executed = append(f.executed, sqlText)
	index := f.calls
	f.calls++
	if index < len(f.errs) && f.errs[index] != nil {
		return database.Result{}, f.errs[index]
	}
	if index < len(f.results) {
		return f.results[index], nil
	}
	return database.Result{Columns: []string{"ok"}}, nil
}

func (f *fakeExecutor) Sample(context.Context, string, int) (database.Result, error) {
	return database.Result{}, errors.New("no samples in tests")
}

type fakeSchema struct {
	schema database.Schema
	err    error
}

func (f *fakeSchema) Snapshot(context.Context) (database.Schema, error) {
	return f.schema, f.err
}

func customersSchema() database.Schema {
	return database.Schema{Tables: []database.Table{
		{Name: "customers", Columns: []database.Column{
			{Name: "id", Type: "BIGINT"},
			{Name: "name", Type: "VARCHAR", Nullable: true},
			{Name: "region", Type: "VARCHAR", Nullable: true},
		}},
	}}
}

func newTestAgent(t *testing.T, gateway *fakeGateway, executor *fakeExecutor) *Agent {
	t.Helper()
	a, err := New(Config{
		Gateway:  gateway,
		Executor: executor,
		Schema:   &fakeSchema{schema: customersSchema()},
		Logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestAnswerExecutesGeneratedSelect(t *testing.T) {
	gateway := &fakeGateway{completions: []llm.Completion{
		{Text: "```sql\nSELECT * FROM customers LIMIT 5\n```", Model: "model-a"},
	}}
	fiveRows := database.Result{
		Columns: []string{"id", "name", "region"},
		Rows: [][]any{
			{int64(1), "Ada", "north"},
			{int64(2), "Lin", "south"},
			{int64(3), "Sam", "east"},
			{int64(4), "Kim", "west"},
			{int64(5), "Joe", "north"},
		},
	}
	executor := &fakeExecutor{results: []database.Result{fiveRows}}
	a := newTestAgent(t, gateway, executor)

	answer, err := a.Answer(context.Background(), "show me the first 5 customers", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.SQL != "SELECT * FROM customers LIMIT 5" {
		t.Fatalf("SQL = %q", answer.SQL)
	}
	if answer.Model != "model-a" {
		t.Fatalf("Model = %q", answer.Model)
	}
	if answer.Result.RowCount() != 5 {
		t.Fatalf("RowCount() = %d", answer.Result.RowCount())
	}
	if answer.NonQuery || answer.Corrected {
		t.Fatalf("answer flags = %+v", answer)
	}
}

func TestAnswerRejectsMutationsBeforeExecution(t *testing.T) {
	for _, statement := range []string{
		"INSERT INTO customers VALUES (1)",
		"UPDATE customers SET name = 'x'",
		"DELETE FROM customers",
		"DROP TABLE customers",
		"ALTER TABLE customers ADD COLUMN x INT",
	} {
		gateway := &fakeGateway{completions: []llm.Completion{{Text: statement, Model: "model-a"}}}
		executor := &fakeExecutor{}
		a := newTestAgent(t, gateway, executor)

		_, err := a.Answer(context.Background(), "break things", nil)
		if err == nil {
			t.Fatalf("Answer() with %q expected rejection", statement)
		}
		var unsupported *sqlguard.UnsupportedError
		if !errors.As(err, &unsupported) {
			t.Fatalf("error = %T, want *sqlguard.UnsupportedError", err)
		}
		if len(executor.executed) != 0 {
			t.Fatalf("statement %q reached execution", statement)
		}
	}
}

func TestAnswerCorrectiveRetryRecordsCorrectedSQL(t *testing.T) {
	gateway := &fakeGateway{completions: []llm.Completion{
		{Text: "SELECT nme FROM customers", Model: "model-a"},
		{Text: "SELECT name FROM customers", Model: "model-a"},
	}}
	executor := &fakeExecutor{
		errs: []error{&database.ExecutionError{Query: "SELECT nme FROM customers", Err: errors.New(`no such column: "nme"`)}, nil},
		results: []database.Result{
			{},
			{Columns: []string{"name"}, Rows: [][]any{{"Ada"}}},
		},
	}
	a := newTestAgent(t, gateway, executor)

	answer, err := a.Answer(context.Background(), "customer names", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !answer.Corrected {
		t.Fatal("expected corrected answer")
	}
	if answer.SQL != "SELECT name FROM customers" {
		t.Fatalf("SQL = %q, want the corrected statement", answer.SQL)
	}
	if len(gateway.prompts) != 2 {
		t.Fatalf("gateway calls = %d, want 2", len(gateway.prompts))
	}
	if !strings.Contains(gateway.prompts[1], `no such column: "nme"`) {
		t.Fatal("retry prompt should contain the database error")
	}
	if !strings.Contains(gateway.prompts[1], "SELECT nme FROM customers") {
		t.Fatal("retry prompt should contain the failed statement")
	}
}

func TestAnswerSecondExecutionErrorSurfaces(t *testing.T) {
	gateway := &fakeGateway{completions: []llm.Completion{
		{Text: "SELECT nme FROM customers", Model: "model-a"},
		{Text: "SELECT nmme FROM customers", Model: "model-a"},
	}}
	executor := &fakeExecutor{errs: []error{
		&database.ExecutionError{Query: "SELECT nme FROM customers", Err: errors.New("bad column")},
		&database.ExecutionError{Query: "SELECT nmme FROM customers", Err: errors.New("still bad")},
	}}
	a := newTestAgent(t, gateway, executor)

	_, err := a.Answer(context.Background(), "customer names", nil)
	if err == nil {
		t.Fatal("expected error after second failed execution")
	}
	var execErr *database.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %T, want *database.ExecutionError", err)
	}
	if gateway.calls != 2 {
		t.Fatalf("gateway calls = %d, want exactly one corrective re-ask", gateway.calls)
	}
}

func TestAnswerPropagatesExhaustion(t *testing.T) {
	exhausted := &llm.ExhaustedError{Failures: []llm.CandidateFailure{{Model: "model-a", Reason: "timeout"}}}
	gateway := &fakeGateway{errs: []error{exhausted}}
	a := newTestAgent(t, gateway, &fakeExecutor{})

	_, err := a.Answer(context.Background(), "anything", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var target *llm.ExhaustedError
	if !errors.As(err, &target) {
		t.Fatalf("error = %T, want *llm.ExhaustedError", err)
	}
}

func TestSchemaQuestionShortCircuits(t *testing.T) {
	gateway := &fakeGateway{}
	executor := &fakeExecutor{}
	a := newTestAgent(t, gateway, executor)

	answer, err := a.Answer(context.Background(), "What tables exist?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !answer.NonQuery {
		t.Fatal("expected non-query answer")
	}
	if !strings.Contains(answer.Text, "customers") {
		t.Fatalf("Text = %q", answer.Text)
	}
	if gateway.calls != 0 {
		t.Fatal("schema question must not call the model")
	}
	if len(executor.executed) != 0 {
		t.Fatal("schema question must not execute SQL")
	}
}

func TestAnswerIncludesHistoryWindow(t *testing.T) {
	gateway := &fakeGateway{completions: []llm.Completion{{Text: "SELECT 1", Model: "model-a"}}}
	executor := &fakeExecutor{results: []database.Result{{Columns: []string{"one"}, Rows: [][]any{{int64(1)}}}}}
	a := newTestAgent(t, gateway, executor)

	history := []HistoryEntry{
		{Role: "user", Text: "total sales by region"},
		{Role: "assistant", Text: "here you go", SQL: "SELECT region, SUM(total) FROM orders GROUP BY region"},
	}
	if _, err := a.Answer(context.Background(), "and last quarter?", history); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !strings.Contains(gateway.prompts[0], "total sales by region") {
		t.Fatal("prompt should contain prior user turn")
	}
	if !strings.Contains(gateway.prompts[0], "GROUP BY region") {
		t.Fatal("prompt should contain prior generated SQL")
	}
}

func TestStripMarkdownSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```": "SELECT 1",
		"```\nSELECT 2\n```":    "SELECT 2",
		"  SELECT 3  ":          "SELECT 3",
	}
	for input, want := range cases {
		if got := StripMarkdownSQL(input); got != want {
			t.Fatalf("StripMarkdownSQL(%q) = %q, want %q", input, got, want)
		}
	}
}
