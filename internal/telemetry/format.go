package telemetry

import (
	"strconv"
	"strings"
)

// Format writes records as CSV in the schema's column order, header first.
// Values use the shortest representation that parses back to the same
// float64, so Parse(Format(rs, s), s) yields rs for records valid under s.
func Format(records []Record, schema ColumnSchema) string {
	var b strings.Builder
	b.WriteString(schema.Header())
	b.WriteByte('\n')
	for _, rec := range records {
		for i, column := range schema.columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(rec.value(column), 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (r Record) value(column string) float64 {
	switch column {
	case ColTime:
		return r.TimeMs
	case ColInput:
		return r.Input
	case ColOutput:
		return r.Output
	case ColSetpoint:
		return r.Setpoint
	case ColError:
		return r.ErrorValue()
	case ColKp:
		return r.Kp
	case ColKi:
		return r.Ki
	case ColKd:
		return r.Kd
	}
	return 0
}
