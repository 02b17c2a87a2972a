package schema

import (
	"strings"
	"time"

	"bemekit/internal/errs"
)

// TimestampLayouts lists the layouts current_time has been written in, newest
// first. Layouts without a zone are read as UTC.
var TimestampLayouts = []string{
	time.RFC3339Nano,
	time.ANSIC,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses s under the first matching layout.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errs.New(errs.CodeSchemaMismatch, "parse timestamp", "%q matches no known layout", s)
}

// normalizeTimestamps rewrites every generation's current_time to RFC3339Nano.
func normalizeTimestamps(path string, tree map[string]any) error {
	gens, _ := tree["generations"].([]any)
	for i, g := range gens {
		gen, ok := g.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := gen["current_time"].(string)
		if !ok {
			return errs.New(errs.CodeSchemaMismatch, "normalize timestamps", "report %d has no current_time string", i).WithPath(path)
		}
		t, err := ParseTimestamp(raw)
		if err != nil {
			return errs.New(errs.CodeSchemaMismatch, "normalize timestamps", "report %d: current_time %q matches no known layout", i, raw).WithPath(path)
		}
		gen["current_time"] = t.Format(time.RFC3339Nano)
	}
	return nil
}
