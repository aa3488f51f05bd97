package telemetry

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/pidtune/internal/domain"
)

// ErrNoValidRows is returned when no data line could be accepted.
var ErrNoValidRows = errors.New("no valid telemetry rows")

// Record is one sample of a control run.
type Record struct {
	TimeMs   float64  `json:"ms"`
	Input    float64  `json:"input"`
	Output   float64  `json:"output"`
	Setpoint float64  `json:"setpoint"`
	Error    *float64 `json:"error,omitempty"`
	Kp       float64  `json:"Kp"`
	Ki       float64  `json:"Ki"`
	Kd       float64  `json:"Kd"`
}

// Gains returns the gains in effect at this sample.
func (r Record) Gains() domain.GainTriple {
	return domain.GainTriple{Kp: r.Kp, Ki: r.Ki, Kd: r.Kd}
}

// ErrorValue returns the logged error, or setpoint-input when the schema
// did not carry one.
func (r Record) ErrorValue() float64 {
	if r.Error != nil {
		return *r.Error
	}
	return r.Setpoint - r.Input
}

func (r *Record) set(column string, v float64) {
	switch column {
	case ColTime:
		r.TimeMs = v
	case ColInput:
		r.Input = v
	case ColOutput:
		r.Output = v
	case ColSetpoint:
		r.Setpoint = v
	case ColError:
		r.Error = &v
	case ColKp:
		r.Kp = v
	case ColKi:
		r.Ki = v
	case ColKd:
		r.Kd = v
	}
}

// Result is the outcome of a parse.
type Result struct {
	Records []Record `json:"records"`
	// Skipped counts data lines that were dropped: too few fields or a
	// required field that is not a finite number. Blank lines are not counted.
	Skipped int `json:"skipped"`
	// SkippedLines holds the 1-based line numbers of skipped lines.
	SkippedLines []int `json:"skipped_lines,omitempty"`
}

// Last returns the chronologically last record.
func (r Result) Last() (Record, bool) {
	if len(r.Records) == 0 {
		return Record{}, false
	}
	return r.Records[len(r.Records)-1], true
}

// Parse reads comma separated telemetry. The first non-blank line is dropped
// as a header when its first field equals the schema's first column name.
// Records keep file order. When nothing is accepted it returns
// ErrNoValidRows together with the skip diagnostics.
func Parse(raw string, schema ColumnSchema) (Result, error) {
	if schema.ColumnCount() == 0 {
		return Result{}, ErrUnknownSchema
	}

	var res Result
	seenFirst := false
	raw = strings.TrimPrefix(raw, byteOrderMark)
	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitFields(line)
		if !seenFirst {
			seenFirst = true
			if fields[0] == schema.columns[0] {
				continue
			}
		}

		rec, ok := schema.decode(fields)
		if !ok {
			res.Skipped++
			res.SkippedLines = append(res.SkippedLines, i+1)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return res, ErrNoValidRows
	}
	return res, nil
}

// decode maps the leading fields onto a record. Fields past the schema's
// column count are ignored.
func (s ColumnSchema) decode(fields []string) (Record, bool) {
	if len(fields) < len(s.columns) {
		return Record{}, false
	}
	var rec Record
	for i, column := range s.columns {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, false
		}
		rec.set(column, v)
	}
	return rec, true
}
