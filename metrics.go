package rxpromise

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects streaming statistics for the settlement of every
// Promise it is attached to, via WithMetrics: counts per terminal state,
// and settlement-latency quantiles estimated with the P-Square algorithm
// (Jain & Chlamtac, 1985), so attaching it never requires retaining every
// observed latency.
type Metrics struct {
	mu        sync.Mutex
	fulfilled uint64
	rejected  uint64
	cancelled uint64
	quantiles []*quantileEstimator
}

// NewMetrics constructs a Metrics collector tracking the p50/p95/p99
// settlement-latency quantiles (time from Promise creation to terminal
// state).
func NewMetrics() *Metrics {
	return &Metrics{quantiles: []*quantileEstimator{
		newQuantileEstimator(0.50),
		newQuantileEstimator(0.95),
		newQuantileEstimator(0.99),
	}}
}

func (m *Metrics) observe(state State, latency time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch state {
	case Fulfilled:
		m.fulfilled++
	case Rejected:
		m.rejected++
	case Cancelled:
		m.cancelled++
	}
	for _, q := range m.quantiles {
		q.Observe(float64(latency))
	}
}

// Counts returns the number of promises observed to settle into each
// terminal state.
func (m *Metrics) Counts() (fulfilled, rejected, cancelled uint64) {
	if m == nil {
		return 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fulfilled, m.rejected, m.cancelled
}

// SettlementLatency returns the estimated p50/p95/p99 settlement latency
// observed so far.
func (m *Metrics) SettlementLatency() (p50, p95, p99 time.Duration) {
	if m == nil {
		return 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.quantiles[0].Value()),
		time.Duration(m.quantiles[1].Value()),
		time.Duration(m.quantiles[2].Value())
}

// quantileMarker is one of the five P-Square markers tracked per target
// quantile: its current height (estimated value), its integer position in
// the observed ordering, the idealized (fractional) position it should
// occupy, and the per-observation increment to that idealized position.
type quantileMarker struct {
	height      float64
	pos         int
	idealPos    float64
	idealStride float64
}

// quantileEstimator is a single-pass, O(1)-per-observation estimator for
// one target quantile, following Jain & Chlamtac's P-Square algorithm: the
// distribution's shape is tracked by adjusting five markers' heights
// using a piecewise-parabolic (falling back to linear) interpolation,
// rather than by retaining observations.
//
// Not safe for concurrent use; callers serialize access (Metrics does so
// via its own mutex).
type quantileEstimator struct {
	target  float64
	markers [5]quantileMarker
	seed    []float64 // buffers the first 5 observations, before markers are seeded
}

func newQuantileEstimator(target float64) *quantileEstimator {
	switch {
	case target < 0:
		target = 0
	case target > 1:
		target = 1
	}
	e := &quantileEstimator{target: target, seed: make([]float64, 0, 5)}
	strides := [5]float64{0, target / 2, target, (1 + target) / 2, 1}
	for i := range e.markers {
		e.markers[i].idealStride = strides[i]
	}
	return e
}

// Observe folds one new sample into the estimate.
func (e *quantileEstimator) Observe(x float64) {
	if len(e.seed) < 5 {
		e.seed = append(e.seed, x)
		if len(e.seed) == 5 {
			e.seedMarkers()
		}
		return
	}

	cell := e.locateCell(x)
	for i := cell + 1; i < 5; i++ {
		e.markers[i].pos++
	}
	for i := range e.markers {
		e.markers[i].idealPos += e.markers[i].idealStride
	}
	e.settleInteriorMarkers()
}

// seedMarkers initializes the five markers from the first five
// observations, once enough have arrived to do so.
func (e *quantileEstimator) seedMarkers() {
	sort.Float64s(e.seed)
	for i, v := range e.seed {
		e.markers[i].height = v
		e.markers[i].pos = i
	}
	idealStart := [5]float64{0, 2 * e.target, 4 * e.target, 2 + 2*e.target, 4}
	for i := range e.markers {
		e.markers[i].idealPos = idealStart[i]
	}
}

// locateCell finds the marker interval [height[k], height[k+1]) containing
// x, extending the outer markers if x falls outside the current range.
func (e *quantileEstimator) locateCell(x float64) int {
	switch {
	case x < e.markers[0].height:
		e.markers[0].height = x
		return 0
	case x >= e.markers[4].height:
		e.markers[4].height = x
		return 3
	default:
		for k := 0; k < 4; k++ {
			if e.markers[k].height <= x && x < e.markers[k+1].height {
				return k
			}
		}
	}
	return 3
}

// settleInteriorMarkers nudges markers 1-3 toward their ideal positions by
// one step each, when they have drifted far enough, preferring a parabolic
// estimate and falling back to linear interpolation when the parabolic
// result would violate marker ordering.
func (e *quantileEstimator) settleInteriorMarkers() {
	for i := 1; i < 4; i++ {
		drift := e.markers[i].idealPos - float64(e.markers[i].pos)
		aheadGap := e.markers[i+1].pos - e.markers[i].pos
		behindGap := e.markers[i-1].pos - e.markers[i].pos

		var step int
		switch {
		case drift >= 1 && aheadGap > 1:
			step = 1
		case drift <= -1 && behindGap < -1:
			step = -1
		default:
			continue
		}

		height := e.parabolicEstimate(i, step)
		if !(e.markers[i-1].height < height && height < e.markers[i+1].height) {
			height = e.linearEstimate(i, step)
		}
		e.markers[i].height = height
		e.markers[i].pos += step
	}
}

func (e *quantileEstimator) parabolicEstimate(i, step int) float64 {
	d := float64(step)
	pos, prevPos, nextPos := float64(e.markers[i].pos), float64(e.markers[i-1].pos), float64(e.markers[i+1].pos)
	height, prevHeight, nextHeight := e.markers[i].height, e.markers[i-1].height, e.markers[i+1].height

	growUp := (pos - prevPos + d) * (nextHeight - height) / (nextPos - pos)
	growDown := (nextPos - pos - d) * (height - prevHeight) / (pos - prevPos)
	return height + d/(nextPos-prevPos)*(growUp+growDown)
}

func (e *quantileEstimator) linearEstimate(i, step int) float64 {
	if step > 0 {
		return e.markers[i].height + (e.markers[i+1].height-e.markers[i].height)/float64(e.markers[i+1].pos-e.markers[i].pos)
	}
	return e.markers[i].height - (e.markers[i].height-e.markers[i-1].height)/float64(e.markers[i].pos-e.markers[i-1].pos)
}

// Value returns the current estimate of the target quantile.
func (e *quantileEstimator) Value() float64 {
	if len(e.seed) < 5 {
		if len(e.seed) == 0 {
			return 0
		}
		sorted := append([]float64(nil), e.seed...)
		sort.Float64s(sorted)
		idx := int(float64(len(sorted)-1) * e.target)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return e.markers[2].height
}
