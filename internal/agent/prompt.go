package agent

import (
	"fmt"
	"strings"

	"github.com/sqlscout/sqlscout/internal/database"
)

// buildPrompt renders the grounding context for SQL generation: the schema,
// a few sample rows per table, a bounded window of recent turns, and, on the
// corrective retry, the failed statement with its database error.
func buildPrompt(schema database.Schema, samples map[string]database.Result, history []HistoryEntry, question string, prior *database.ExecutionError) string {
	var b strings.Builder

	b.WriteString("You are an expert SQL query generator. Generate a single SQL query answering the user's question against the schema below.\n\n")
	b.WriteString(renderSchema(schema))

	if len(samples) > 0 {
		b.WriteString("\nSample data:\n")
		for _, table := range schema.Tables {
			sample, ok := samples[table.Name]
			if !ok || sample.Empty() {
				continue
			}
			b.WriteString(renderSample(table.Name, sample))
		}
	}

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, entry := range history {
			b.WriteString(fmt.Sprintf("%s: %s\n", entry.Role, entry.Text))
			if entry.SQL != "" {
				b.WriteString(fmt.Sprintf("  (sql: %s)\n", entry.SQL))
			}
		}
	}

	b.WriteString("\nUser question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n")

	if prior != nil {
		b.WriteString("\nYour previous attempt failed.\n")
		b.WriteString("Failed SQL: " + prior.Query + "\n")
		b.WriteString("Database error: " + prior.Err.Error() + "\n")
		b.WriteString("Generate a corrected query.\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Generate ONLY a valid SQL query, no explanations, no markdown.\n")
	b.WriteString("- Only SELECT queries are allowed; never modify data.\n")
	b.WriteString("- Use only the listed tables and columns.\n")
	b.WriteString("- Include JOINs when needed and aliases for readability.\n")
	b.WriteString("- Add a LIMIT clause for potentially large result sets.\n")

	return b.String()
}

func renderSchema(schema database.Schema) string {
	var b strings.Builder
	b.WriteString("Database schema:\n")
	for _, table := range schema.Tables {
		b.WriteString(fmt.Sprintf("\nTable: %s\n", table.Name))
		for _, column := range table.Columns {
			nullable := "not null"
			if column.Nullable {
				nullable = "nullable"
			}
			b.WriteString(fmt.Sprintf("  - %s (%s, %s)\n", column.Name, column.Type, nullable))
		}
	}
	return b.String()
}

func renderSample(tableName string, sample database.Result) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n%s:\n", tableName))
	b.WriteString("  " + strings.Join(sample.Columns, " | ") + "\n")
	for _, row := range sample.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = fmt.Sprintf("%v", value)
		}
		b.WriteString("  " + strings.Join(cells, " | ") + "\n")
	}
	return b.String()
}
