// Package telemetry turns logged PID runs into validated time series.
package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

// Column names as they appear in a telemetry header line.
const (
	ColTime     = "ms"
	ColInput    = "input"
	ColOutput   = "output"
	ColSetpoint = "setpoint"
	ColError    = "error"
	ColKp       = "Kp"
	ColKi       = "Ki"
	ColKd       = "Kd"
)

// ErrUnknownSchema is returned for a schema name that is not recognized.
var ErrUnknownSchema = errors.New("unknown telemetry schema")

// ColumnSchema is an ordered list of required columns.
type ColumnSchema struct {
	name    string
	columns []string
}

var (
	// SchemaLegacy is the 7-column layout without the error column.
	SchemaLegacy = ColumnSchema{
		name:    "legacy",
		columns: []string{ColTime, ColInput, ColOutput, ColSetpoint, ColKp, ColKi, ColKd},
	}
	// SchemaCanonical is the current 8-column layout.
	SchemaCanonical = ColumnSchema{
		name:    "canonical",
		columns: []string{ColTime, ColInput, ColOutput, ColSetpoint, ColError, ColKp, ColKi, ColKd},
	}
)

// Name returns the schema's short name.
func (s ColumnSchema) Name() string { return s.name }

// ColumnCount returns how many leading fields a data line must carry.
func (s ColumnSchema) ColumnCount() int { return len(s.columns) }

// Columns returns a copy of the column order.
func (s ColumnSchema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// HasErrorColumn reports whether records parsed with this schema carry Error.
func (s ColumnSchema) HasErrorColumn() bool {
	for _, c := range s.columns {
		if c == ColError {
			return true
		}
	}
	return false
}

// Header returns the header line for the schema.
func (s ColumnSchema) Header() string {
	return strings.Join(s.columns, ",")
}

// SchemaByName selects a schema explicitly.
func SchemaByName(name string) (ColumnSchema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "legacy", "7":
		return SchemaLegacy, nil
	case "canonical", "current", "8":
		return SchemaCanonical, nil
	default:
		return ColumnSchema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
}

// DetectSchema picks a schema from the header line of raw. Without a
// recognizable header it returns the canonical schema; the field count of
// data lines is never used to guess.
func DetectSchema(raw string) ColumnSchema {
	first, ok := firstLine(raw)
	if !ok {
		return SchemaCanonical
	}
	fields := splitFields(first)
	if fields[0] != ColTime {
		return SchemaCanonical
	}
	if len(fields) > 4 && fields[4] != ColError && len(fields) >= SchemaLegacy.ColumnCount() {
		return SchemaLegacy
	}
	return SchemaCanonical
}

// Select resolves a caller-supplied schema name. An empty name or "auto"
// falls back to header detection.
func Select(name, raw string) (ColumnSchema, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return DetectSchema(raw), nil
	default:
		return SchemaByName(name)
	}
}

// byteOrderMark is written ahead of the header by some spreadsheet exports.
const byteOrderMark = "\ufeff"

func firstLine(raw string) (string, bool) {
	raw = strings.TrimPrefix(raw, byteOrderMark)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
	return "", false
}

func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
