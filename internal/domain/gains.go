package domain

import "fmt"

// GainTriple holds the three PID coefficients. Values are opaque to the
// service: they come from the user, from telemetry or from the advisor.
type GainTriple struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// PartialGains is the wire form of a seed triple where any value may be
// missing. Only a complete triple counts as a seed.
type PartialGains struct {
	Kp *float64 `json:"kp,omitempty"`
	Ki *float64 `json:"ki,omitempty"`
	Kd *float64 `json:"kd,omitempty"`
}

// Complete returns the triple when all three values are present, nil otherwise.
func (p *PartialGains) Complete() *GainTriple {
	if p == nil || p.Kp == nil || p.Ki == nil || p.Kd == nil {
		return nil
	}
	return &GainTriple{Kp: *p.Kp, Ki: *p.Ki, Kd: *p.Kd}
}

// String renders the gains the way the tuning dashboard shows them.
func (g GainTriple) String() string {
	return fmt.Sprintf("Kp=%.2f Ki=%.4f Kd=%.2f", g.Kp, g.Ki, g.Kd)
}
