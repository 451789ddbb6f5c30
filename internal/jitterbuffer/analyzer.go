package jitterbuffer

import "math"

// ttdSample is one transit-time-difference observation relative to the
// analyzer's moving base.
type ttdSample struct {
	value float64
}

// JitterAnalyzer converts a stream of (rtpTimestamp, arrivalMs) observations
// into a recommended buffer depth. It holds no mutex of its own: the
// JitterBuffer calls it only while already holding its own lock.
type JitterAnalyzer struct {
	haveBase   bool
	baseTS     uint32
	baseArrive uint32

	samples    []float64
	sampleCap  int
	minDepth   uint32
	maxDepth   uint32

	incThresholdMs uint32
	decThresholdMs uint32
	stepSize       uint32
	zValue         float64

	lastDecreaseMs int64
	haveDecreased  bool
	lateInWindow   bool
}

// NewJitterAnalyzer returns an analyzer with the given depth bounds and
// default jitter-control knobs.
func NewJitterAnalyzer(minDepth, maxDepth uint32) *JitterAnalyzer {
	a := &JitterAnalyzer{
		minDepth:       minDepth,
		maxDepth:       maxDepth,
		incThresholdMs: 20,
		decThresholdMs: 2000,
		stepSize:       1,
		zValue:         2.0,
	}
	a.sampleCap = sampleCapacity(maxDepth)
	return a
}

func sampleCapacity(maxDepth uint32) int {
	cap := int(maxDepth) * 2
	if cap < 64 {
		cap = 64
	}
	return cap
}

// SetBounds clamps all subsequent NextDepth outputs to [min, max].
func (a *JitterAnalyzer) SetBounds(min, max uint32) {
	a.minDepth = min
	a.maxDepth = max
	a.sampleCap = sampleCapacity(max)
	a.trimSamples()
}

// SetOptions updates the hysteresis knobs used by NextDepth.
func (a *JitterAnalyzer) SetOptions(incThresholdMs, decThresholdMs, stepSize uint32, zValue float64) {
	a.incThresholdMs = incThresholdMs
	a.decThresholdMs = decThresholdMs
	a.stepSize = stepSize
	a.zValue = zValue
}

// Reset empties the sample window and clears the moving base.
func (a *JitterAnalyzer) Reset() {
	a.haveBase = false
	a.baseTS = 0
	a.baseArrive = 0
	a.samples = a.samples[:0]
	a.lastDecreaseMs = 0
	a.haveDecreased = false
	a.lateInWindow = false
}

// Observe records one transit-time-difference sample and returns its value
// in milliseconds. rtpTsToMs assumes an 8kHz audio clock (160 samples / 20ms
// frame), matching the nominal rate spec.md documents for audio frames.
func (a *JitterAnalyzer) Observe(ts uint32, arrivalMs uint32) int32 {
	if !a.haveBase {
		a.baseTS = ts
		a.baseArrive = arrivalMs
		a.haveBase = true
	} else if rtpTsToMs(ts)-rtpTsToMs(a.baseTS) > int64(arrivalMs)-int64(a.baseArrive) {
		// The new packet's clock distance exceeds its arrival distance:
		// the base itself is already late. Chase the more punctual packet.
		a.baseTS = ts
		a.baseArrive = arrivalMs
	}

	ttd := (int64(arrivalMs) - int64(a.baseArrive)) - (rtpTsToMs(ts) - rtpTsToMs(a.baseTS))

	a.samples = append(a.samples, float64(ttd))
	a.trimSamples()

	return int32(ttd)
}

func (a *JitterAnalyzer) trimSamples() {
	if len(a.samples) > a.sampleCap {
		a.samples = a.samples[len(a.samples)-a.sampleCap:]
	}
}

// rtpTsToMs converts an 8kHz RTP timestamp to a millisecond value. Only
// differences of this function's output are meaningful; wrap-around is
// handled by the caller choosing a recent base.
func rtpTsToMs(ts uint32) int64 {
	return int64(ts) / 8
}

// NoteLateArrival records that a frame was discarded for arriving after
// playoutTs had already passed it. Any late arrival within the
// decrease-debounce window suppresses the next scheduled decrease.
func (a *JitterAnalyzer) NoteLateArrival(nowMs int64) {
	a.lateInWindow = true
}

// NextDepth computes the recommended depth given the current depth and wall
// clock, applying the hysteresis rule from spec.md §4.2.
func (a *JitterAnalyzer) NextDepth(current uint32, nowMs int64) uint32 {
	recommended := a.recommend()

	incFrames := a.incThresholdMs / frameInterval
	decFrames := a.decThresholdMs / frameInterval

	if recommended > current+incFrames {
		next := current + a.stepSize
		if next > a.maxDepth {
			next = a.maxDepth
		}
		a.lateInWindow = false
		return clampDepth(next, a.minDepth, a.maxDepth)
	}

	if recommended < saturatingSub(current, decFrames) {
		elapsedOK := !a.haveDecreased || nowMs-a.lastDecreaseMs >= int64(a.decThresholdMs)
		if elapsedOK && !a.lateInWindow {
			next := saturatingSub(current, a.stepSize)
			if next < a.minDepth {
				next = a.minDepth
			}
			a.lastDecreaseMs = nowMs
			a.haveDecreased = true
			return clampDepth(next, a.minDepth, a.maxDepth)
		}
	}

	a.lateInWindow = false
	return clampDepth(current, a.minDepth, a.maxDepth)
}

func (a *JitterAnalyzer) recommend() uint32 {
	if len(a.samples) == 0 {
		return a.minDepth
	}

	mean := 0.0
	for _, s := range a.samples {
		mean += s
	}
	mean /= float64(len(a.samples))

	variance := 0.0
	for _, s := range a.samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(a.samples))
	stddev := math.Sqrt(variance)

	stat := mean + a.zValue*stddev
	if stat <= 0 {
		return a.minDepth
	}

	frames := uint32(math.Ceil(stat / float64(frameInterval)))
	return clampDepth(frames, a.minDepth, a.maxDepth)
}

func clampDepth(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func saturatingSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}
