package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlscout/sqlscout/internal/database"
)

func encodeCSV(result database.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(result.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeParquet writes every column as an optional UTF8 field. Result column
// sets are dynamic per query, so the schema is built at encode time and all
// values are stringified.
func encodeParquet(result database.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	group := parquet.Group{}
	for _, column := range result.Columns {
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	for _, row := range result.Rows {
		record := make(map[string]any, len(result.Columns))
		for i, column := range result.Columns {
			if i >= len(row) || row[i] == nil {
				continue
			}
			record[column] = formatValue(row[i])
		}
		if _, err := writer.Write([]map[string]any{record}); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
