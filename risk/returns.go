package risk

import "math"

// DefaultWindow is the rolling return buffer length per symbol.
const DefaultWindow = 256

// minOverlap is the smallest overlapping sample count a pair needs
// before its correlation contributes to the universe average.
const minOverlap = 8

// returnRing holds the most recent window of simple returns.
type returnRing struct {
	buf   []float64
	head  int
	count int
	last  float64 // last price, for the next return
}

func newReturnRing(window int) *returnRing {
	if window <= 0 {
		window = DefaultWindow
	}
	return &returnRing{buf: make([]float64, window)}
}

// observe appends the return implied by a new price. The first price
// only seeds the buffer.
func (r *returnRing) observe(px float64) {
	if r.last > 0 {
		r.push(px/r.last - 1)
	}
	r.last = px
}

func (r *returnRing) push(x float64) {
	r.buf[r.head] = x
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// tail returns the most recent n returns, oldest first.
func (r *returnRing) tail(n int) []float64 {
	if n > r.count {
		n = r.count
	}
	out := make([]float64, 0, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// pearson computes the correlation of two equal-length samples.
// Returns 0 when either side has no variance.
func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
