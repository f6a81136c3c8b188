package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Executor runs already-validated read-only statements against the active
// connection with a bounded row count and timeout. It performs no safety
// classification itself; callers must do that before handing a statement in.
type Executor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

func NewExecutor(db *sql.DB, maxRows int, timeout time.Duration) *Executor {
	if maxRows <= 0 {
		maxRows = 500
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Executor{db: db, maxRows: maxRows, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return Result{}, &ExecutionError{Query: sqlText, Err: fmt.Errorf("sql is required")}
	}

	bounded := fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, e.maxRows)

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(queryCtx, bounded)
	if err != nil {
		return Result{}, &ExecutionError{Query: sqlText, Err: err}
	}
	defer func() { _ = rows.Close() }()

	result, err := collectRows(rows)
	if err != nil {
		return Result{}, &ExecutionError{Query: sqlText, Err: err}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Sample returns up to limit rows of a table for prompt grounding.
func (e *Executor) Sample(ctx context.Context, tableName string, limit int) (Result, error) {
	if limit <= 0 {
		limit = 3
	}
	return e.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(tableName), limit))
}

func collectRows(rows *sql.Rows) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read columns: %w", err)
	}
	types := make([]string, len(columns))
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, columnType := range columnTypes {
			types[i] = columnType.DatabaseTypeName()
		}
	}

	collected := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		collected = append(collected, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{Columns: columns, Types: types, Rows: collected}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
