package risk

import "time"

// Limits is configuration, not state. Weights are fractions of equity
// (MaxSingle 0.1 = 10% of equity in one name; MaxGross 2.0 = 200%
// gross exposure).
type Limits struct {
	MaxDrawdown    float64       `json:"max_drawdown" yaml:"max_drawdown"`
	MaxGross       float64       `json:"max_gross" yaml:"max_gross"`
	MaxSingle      float64       `json:"max_single" yaml:"max_single"`
	CorrelationCap float64       `json:"correlation_cap" yaml:"correlation_cap"`
	Staleness      time.Duration `json:"staleness" yaml:"staleness"`

	// Optional per-bucket gross caps, keyed by sector/region name.
	SectorCaps map[string]float64 `json:"sector_caps,omitempty" yaml:"sector_caps,omitempty"`
	RegionCaps map[string]float64 `json:"region_caps,omitempty" yaml:"region_caps,omitempty"`
}

// Breach codes, in gate evaluation order.
const (
	CodeKill    = "KILL"
	CodeNoPrice = "NO_PRICE"
	CodeStale   = "STALE"
	CodeMDD     = "MDD"
	CodeGross   = "GROSS"
	CodeSingle  = "SINGLE"
	CodeBucket  = "BUCKET"
	CodeCorr    = "CORR"
)

// Breach is a value, never an error: the gate reports rule violations
// through it and the caller decides what to do.
type Breach struct {
	Code    string
	Message string
	Data    map[string]float64
	Time    time.Time
}
