package database

import (
	"context"
	"database/sql"
	"fmt"
)

const introspectQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

func schemaNameForDriver(driver string) string {
	if driver == DriverPostgres {
		return "public"
	}
	return "main"
}

// Introspector re-reads the live schema on every Snapshot so a reconnect or
// DDL change is always reflected in the next turn.
type Introspector struct {
	db     *sql.DB
	driver string
}

func NewIntrospector(db *sql.DB, driver string) *Introspector {
	return &Introspector{db: db, driver: driver}
}

func (i *Introspector) Snapshot(ctx context.Context) (Schema, error) {
	return Introspect(ctx, i.db, i.driver)
}

// Introspect reads the table/column metadata of the connected database.
// Both supported engines expose information_schema; only the default schema
// name differs between them.
func Introspect(ctx context.Context, db *sql.DB, driver string) (Schema, error) {
	rows, err := db.QueryContext(ctx, introspectQuery, schemaNameForDriver(driver))
	if err != nil {
		return Schema{}, fmt.Errorf("query information_schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schema Schema
	var current *Table
	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return Schema{}, fmt.Errorf("scan column row: %w", err)
		}
		if current == nil || current.Name != tableName {
			schema.Tables = append(schema.Tables, Table{Name: tableName})
			current = &schema.Tables[len(schema.Tables)-1]
		}
		current.Columns = append(current.Columns, Column{
			Name:     columnName,
			Type:     dataType,
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("iterate column rows: %w", err)
	}
	return schema, nil
}
