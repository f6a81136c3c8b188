// Package viz decides whether and how a query result should be charted.
// Chart selection is strictly opt-in: without an explicit cue in the request
// text the selector always answers with Kind none.
package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlscout/sqlscout/internal/database"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
)

// Kind names a supported chart shape.
type Kind string

const (
	KindNone      Kind = "none"
	KindBar       Kind = "bar"
	KindPie       Kind = "pie"
	KindLine      Kind = "line"
	KindScatter   Kind = "scatter"
	KindHistogram Kind = "histogram"
)

// ChartSpec describes the chart a client should render for a result. Every
// referenced column is guaranteed to exist in the result it was selected for.
type ChartSpec struct {
	Kind  Kind     `json:"kind"`
	X     []string `json:"x,omitempty"`
	Y     []string `json:"y,omitempty"`
	Title string   `json:"title,omitempty"`
}

// Completer is the advisory model dependency. The same gateway that generates
// SQL serves chart advice; a nil completer disables the advisory step.
type Completer interface {
	Complete(ctx context.Context, prompt string) (llm.Completion, error)
}

// Selector picks a chart spec for a request/result pair. It never fails a
// turn: every advisory problem degrades to a deterministic heuristic.
type Selector struct {
	gateway   Completer
	logger    *slog.Logger
	maxPoints int
}

// NewSelector builds a selector. Pass a nil gateway to run heuristic-only;
// maxPoints <= 0 disables the point cap.
func NewSelector(gateway Completer, maxPoints int, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{gateway: gateway, logger: logger, maxPoints: maxPoints}
}

var cueWords = []string{"chart", "graph", "plot", "visualize", "visualise", "histogram", "diagram"}

var kindWords = []struct {
	word string
	kind Kind
}{
	{"histogram", KindHistogram},
	{"scatter", KindScatter},
	{"pie", KindPie},
	{"line", KindLine},
	{"trend", KindLine},
	{"bar", KindBar},
}

// Select returns the chart spec for the given request text and result. A spec
// with Kind none means the client should render a plain table.
func (s *Selector) Select(ctx context.Context, requestText string, result database.Result) ChartSpec {
	if !wantsChart(requestText) {
		return ChartSpec{Kind: KindNone}
	}
	if result.Empty() || len(result.Columns) == 0 {
		return ChartSpec{Kind: KindNone}
	}
	// Past the cap a chart stops being readable; clients get the table.
	if s.maxPoints > 0 && result.RowCount() > s.maxPoints {
		return ChartSpec{Kind: KindNone}
	}

	if s.gateway != nil {
		if spec, ok := s.advise(ctx, requestText, result); ok {
			observability.ObserveChartSelected(string(spec.Kind))
			return spec
		}
	}

	spec := heuristicSpec(requestText, result)
	observability.ObserveChartSelected(string(spec.Kind))
	return spec
}

func wantsChart(requestText string) bool {
	lowered := strings.ToLower(requestText)
	for _, word := range cueWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

func requestedKind(requestText string) Kind {
	lowered := strings.ToLower(requestText)
	for _, entry := range kindWords {
		if strings.Contains(lowered, entry.word) {
			return entry.kind
		}
	}
	return KindBar
}

type advice struct {
	Kind  string   `json:"kind"`
	X     []string `json:"x"`
	Y     []string `json:"y"`
	Title string   `json:"title"`
}

func (s *Selector) advise(ctx context.Context, requestText string, result database.Result) (ChartSpec, bool) {
	completion, err := s.gateway.Complete(ctx, buildAdvicePrompt(requestText, result))
	if err != nil {
		s.logger.WarnContext(ctx, "chart advice unavailable", slog.String("error", err.Error()))
		return ChartSpec{}, false
	}

	var suggestion advice
	if err := json.Unmarshal([]byte(stripFences(completion.Text)), &suggestion); err != nil {
		s.logger.WarnContext(ctx, "chart advice not valid JSON", slog.String("error", err.Error()))
		return ChartSpec{}, false
	}

	spec := ChartSpec{Kind: Kind(strings.ToLower(suggestion.Kind)), X: suggestion.X, Y: suggestion.Y, Title: suggestion.Title}
	if !validSpec(spec, result) {
		s.logger.WarnContext(ctx, "chart advice rejected", slog.String("kind", suggestion.Kind))
		return ChartSpec{}, false
	}
	return spec, true
}

func buildAdvicePrompt(requestText string, result database.Result) string {
	var b strings.Builder
	b.WriteString("Choose a chart for a SQL result set.\n\nColumns:\n")
	for i, column := range result.Columns {
		columnType := ""
		if i < len(result.Types) {
			columnType = result.Types[i]
		}
		fmt.Fprintf(&b, "- %s (%s)\n", column, columnType)
	}
	fmt.Fprintf(&b, "\nUser request: %s\n\n", requestText)
	b.WriteString("Respond with ONLY a JSON object, no prose, of the form\n")
	b.WriteString(`{"kind": "bar"|"pie"|"line"|"scatter"|"histogram", "x": ["col"], "y": ["col"], "title": "..."}` + "\n")
	b.WriteString("Every column you reference must be one of the columns above.\n")
	return b.String()
}

func validSpec(spec ChartSpec, result database.Result) bool {
	switch spec.Kind {
	case KindBar, KindPie, KindLine, KindScatter, KindHistogram:
	default:
		return false
	}
	if len(spec.Y) == 0 {
		return false
	}
	for _, column := range append(append([]string{}, spec.X...), spec.Y...) {
		if !result.HasColumn(column) {
			return false
		}
	}
	return true
}

// heuristicSpec is the deterministic fallback: first non-numeric column on
// the x axis, first numeric column on the y axis, kind from the request text.
func heuristicSpec(requestText string, result database.Result) ChartSpec {
	numericIndex := -1
	categoricalIndex := -1
	for i := range result.Columns {
		if isNumericColumn(result, i) {
			if numericIndex < 0 {
				numericIndex = i
			}
		} else if categoricalIndex < 0 {
			categoricalIndex = i
		}
	}
	if numericIndex < 0 {
		return ChartSpec{Kind: KindNone}
	}

	kind := requestedKind(requestText)
	spec := ChartSpec{Kind: kind, Y: []string{result.Columns[numericIndex]}}
	if kind != KindHistogram {
		if categoricalIndex < 0 {
			return ChartSpec{Kind: KindNone}
		}
		spec.X = []string{result.Columns[categoricalIndex]}
	}
	return spec
}

var numericTypeFragments = []string{"INT", "DOUBLE", "FLOAT", "DECIMAL", "NUMERIC", "REAL"}

func isNumericColumn(result database.Result, index int) bool {
	if index < len(result.Types) {
		upper := strings.ToUpper(result.Types[index])
		for _, fragment := range numericTypeFragments {
			if strings.Contains(upper, fragment) {
				return true
			}
		}
		if upper != "" {
			return false
		}
	}
	if len(result.Rows) == 0 || index >= len(result.Rows[0]) {
		return false
	}
	switch result.Rows[0][index].(type) {
	case int, int32, int64, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
