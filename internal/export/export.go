// Package export encodes query results as files and uploads them to the
// object store. Exports are a side effect of a completed turn and never
// change conversation state.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/storage"
)

// Format names a supported export encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a client-supplied format string.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

func (f Format) contentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.apache.parquet"
}

// Info describes a stored export.
type Info struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	Format Format `json:"format"`
	Rows   int    `json:"rows"`
}

// Exporter writes encoded results to an ObjectStore under a configured key
// prefix.
type Exporter struct {
	store  storage.ObjectStore
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewExporter(store storage.ObjectStore, prefix string, logger *slog.Logger) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("export: object store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, prefix: prefix, logger: logger, now: time.Now}, nil
}

// Export encodes result in the given format and uploads it keyed by turn.
func (e *Exporter) Export(ctx context.Context, turnID int, result database.Result, format Format) (Info, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = encodeCSV(result)
	case FormatParquet:
		data, err = encodeParquet(result)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		observability.ObserveExport(string(format), "error")
		return Info{}, fmt.Errorf("encode result: %w", err)
	}

	key, err := storage.ExportKey(e.prefix, turnID, e.now(), string(format))
	if err != nil {
		observability.ObserveExport(string(format), "error")
		return Info{}, err
	}

	info, err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: format.contentType()})
	if err != nil {
		observability.ObserveExport(string(format), "error")
		return Info{}, fmt.Errorf("upload export: %w", err)
	}

	e.logger.InfoContext(ctx, "result exported",
		slog.String("key", info.Key),
		slog.Int64("size", info.Size),
		slog.String("format", string(format)),
	)
	observability.ObserveExport(string(format), "ok")
	return Info{Key: info.Key, Size: info.Size, Format: format, Rows: result.RowCount()}, nil
}
