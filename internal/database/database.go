package database

import (
	"fmt"
	"time"
)

// Column is one introspected column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Table is an introspected table with its columns in ordinal order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema is a snapshot of the active database's tables. It is rebuilt per
// connection and must be discarded when the active database changes.
type Schema struct {
	Tables []Table `json:"tables"`
}

func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (s Schema) HasTable(name string) bool {
	for _, table := range s.Tables {
		if table.Name == name {
			return true
		}
	}
	return false
}

// Result is a row-major query result. Every row has exactly len(Columns)
// values; zero rows is a valid result.
type Result struct {
	Columns  []string      `json:"columns"`
	Types    []string      `json:"types"`
	Rows     [][]any       `json:"rows"`
	Duration time.Duration `json:"-"`
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

func (r Result) Empty() bool {
	return len(r.Rows) == 0 || len(r.Columns) == 0
}

func (r Result) HasColumn(name string) bool {
	for _, column := range r.Columns {
		if column == name {
			return true
		}
	}
	return false
}

// ExecutionError wraps a database-level failure of a validated statement.
type ExecutionError struct {
	Query string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
