// Package agent turns a natural-language question into a validated read-only
// SQL statement, executes it, and returns structured results.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/sqlguard"
)

// Completer is the model gateway contract the agent depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (llm.Completion, error)
}

// QueryExecutor runs validated statements and samples tables for grounding.
type QueryExecutor interface {
	Execute(ctx context.Context, sqlText string) (database.Result, error)
	Sample(ctx context.Context, tableName string, limit int) (database.Result, error)
}

// SchemaSource provides the current schema snapshot of the active database.
type SchemaSource interface {
	Snapshot(ctx context.Context) (database.Schema, error)
}

// HistoryEntry is the bounded slice of prior conversation the agent grounds
// follow-up questions on.
type HistoryEntry struct {
	Role string
	Text string
	SQL  string
}

// Answer is the agent's result for one question. Either NonQuery is true and
// Text holds a free-form answer, or SQL/Model/Result describe an executed
// query. Corrected marks answers produced by the single corrective re-ask.
type Answer struct {
	SQL       string
	Model     string
	Result    database.Result
	Text      string
	NonQuery  bool
	Corrected bool
}

type Config struct {
	Gateway      Completer
	Executor     QueryExecutor
	Schema       SchemaSource
	SampleRows   int
	SampleTables int
	ContextTurns int
	Logger       *slog.Logger
}

type Agent struct {
	gateway      Completer
	executor     QueryExecutor
	schema       SchemaSource
	sampleRows   int
	sampleTables int
	contextTurns int
	logger       *slog.Logger
}

func New(cfg Config) (*Agent, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema source is required")
	}
	sampleRows := cfg.SampleRows
	if sampleRows <= 0 {
		sampleRows = 3
	}
	sampleTables := cfg.SampleTables
	if sampleTables <= 0 {
		sampleTables = 3
	}
	contextTurns := cfg.ContextTurns
	if contextTurns <= 0 {
		contextTurns = 6
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		gateway:      cfg.Gateway,
		executor:     cfg.Executor,
		schema:       cfg.Schema,
		sampleRows:   sampleRows,
		sampleTables: sampleTables,
		contextTurns: contextTurns,
		logger:       logger,
	}, nil
}

// Answer resolves one question. Schema-only questions short-circuit without a
// model or database call; everything else goes model -> guard -> execute,
// with exactly one corrective re-ask after a database-level error.
func (a *Agent) Answer(ctx context.Context, question string, history []HistoryEntry) (Answer, error) {
	schema, err := a.schema.Snapshot(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("load schema: %w", err)
	}

	if answer, ok := schemaAnswer(question, schema); ok {
		return answer, nil
	}

	window := trimHistory(history, a.contextTurns)
	samples := a.collectSamples(ctx, schema)

	prompt := buildPrompt(schema, samples, window, question, nil)
	answer, execErr := a.generateAndExecute(ctx, prompt)
	if execErr == nil {
		return answer, nil
	}

	var dbErr *database.ExecutionError
	if !errors.As(execErr, &dbErr) {
		return Answer{}, execErr
	}

	// One corrective re-ask with the database error appended as context.
	a.logger.WarnContext(ctx, "query failed, re-asking model once",
		slog.String("sql", dbErr.Query),
		slog.Any("error", dbErr.Err),
	)
	retryPrompt := buildPrompt(schema, samples, window, question, dbErr)
	answer, execErr = a.generateAndExecute(ctx, retryPrompt)
	if execErr != nil {
		return Answer{}, execErr
	}
	answer.Corrected = true
	return answer, nil
}

func (a *Agent) generateAndExecute(ctx context.Context, prompt string) (Answer, error) {
	completion, err := a.gateway.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}

	sqlText := StripMarkdownSQL(completion.Text)
	if err := sqlguard.EnsureReadOnly(sqlText); err != nil {
		observability.IncrementGuardRejection()
		return Answer{}, err
	}

	result, err := a.executor.Execute(ctx, sqlText)
	if err != nil {
		return Answer{}, err
	}
	observability.ObserveQuery(result.Duration, result.RowCount())

	return Answer{SQL: sqlText, Model: completion.Model, Result: result}, nil
}

func (a *Agent) collectSamples(ctx context.Context, schema database.Schema) map[string]database.Result {
	samples := make(map[string]database.Result, a.sampleTables)
	for i, table := range schema.Tables {
		if i >= a.sampleTables {
			break
		}
		result, err := a.executor.Sample(ctx, table.Name, a.sampleRows)
		if err != nil {
			// Grounding is best effort; the schema alone still works.
			continue
		}
		samples[table.Name] = result
	}
	return samples
}

func trimHistory(history []HistoryEntry, limit int) []HistoryEntry {
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// schemaAnswer handles questions answerable from the schema descriptor alone.
func schemaAnswer(question string, schema database.Schema) (Answer, bool) {
	normalized := strings.ToLower(strings.TrimSpace(question))
	if !strings.Contains(normalized, "table") {
		return Answer{}, false
	}
	asksForTables := false
	for _, prefix := range []string{"what table", "which table", "list table", "list the table", "show table", "show the table", "what tables"} {
		if strings.HasPrefix(normalized, prefix) {
			asksForTables = true
			break
		}
	}
	if !asksForTables {
		return Answer{}, false
	}

	names := schema.TableNames()
	if len(names) == 0 {
		return Answer{Text: "The database contains no tables.", NonQuery: true}, true
	}
	return Answer{
		Text:     fmt.Sprintf("The database contains %d tables: %s.", len(names), strings.Join(names, ", ")),
		NonQuery: true,
	}, true
}

// StripMarkdownSQL removes a surrounding markdown code fence from model
// output.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
