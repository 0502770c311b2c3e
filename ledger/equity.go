package ledger

import "time"

// EquityPoint is one sample of the equity curve. Drawdown is
// NAV minus the running high-water mark, so it is always <= 0.
type EquityPoint struct {
	Time     time.Time
	NAV      float64
	Drawdown float64
}

// EquityRing keeps the most recent cap equity points.
type EquityRing struct {
	buf   []EquityPoint
	head  int
	count int
}

func NewEquityRing(cap int) *EquityRing {
	if cap <= 0 {
		cap = 1
	}
	return &EquityRing{buf: make([]EquityPoint, cap)}
}

func (r *EquityRing) Push(p EquityPoint) {
	r.buf[r.head] = p
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *EquityRing) Len() int { return r.count }

// Points returns the retained history oldest-first.
func (r *EquityRing) Points() []EquityPoint {
	out := make([]EquityPoint, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
