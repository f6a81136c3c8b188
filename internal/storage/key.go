package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var prefixPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]{0,127}$`)

// ExportKey builds the object key for an exported result. Keys are grouped by
// turn so repeated exports of the same answer never overwrite each other.
func ExportKey(prefix string, turnID int, at time.Time, extension string) (string, error) {
	if prefix != "" && !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("invalid export prefix: %q", prefix)
	}
	if turnID <= 0 {
		return "", fmt.Errorf("turn id must be > 0")
	}
	if extension == "" {
		return "", fmt.Errorf("file extension is required")
	}

	ts := at.UTC()
	return path.Join(
		prefix,
		fmt.Sprintf("turn-%d", turnID),
		fmt.Sprintf("%s.%s", ts.Format("20060102T150405Z"), extension),
	), nil
}
