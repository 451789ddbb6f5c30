package jitterbuffer

import "sync"

// GetResult is returned by JitterBuffer.Get on every call, whether or not a
// frame was actually delivered.
type GetResult struct {
	Delivered    bool
	Subtype      Subtype
	Payload      []byte
	RTPTimestamp uint32
	Mark         bool
	SeqNum       uint16
	DataType     DataType
}

// JitterBuffer is the audio receive jitter buffer state machine: it accepts
// Add from the network thread and serves Get to the playout thread every
// 20ms, absorbing jitter, deduplicating, reordering, and handling DTX and
// SSRC refresh along the way. A single mutex protects the FrameStore and
// every mutable field below. No blocking I/O happens while it is held;
// telemetry is handed to the sink's non-blocking Publish under the lock.
type JitterBuffer struct {
	mu sync.Mutex

	store    *FrameStore
	analyzer *JitterAnalyzer
	sink     TelemetrySink

	cfg Config

	currentDepth uint32
	nextDepth    uint32

	pendingDelayAdjustment int32

	waiting             bool
	firstFrameDelivered bool

	playoutTs       uint32
	lastDeliveredSeq uint16

	dtxActive               bool
	consecutiveSidDelivered uint32

	startTimeMs int64
	lastTickMs  int64

	cannotGetCount    uint32
	deleteCount       uint32
	missedUpdateCount uint32
	checkUpdateCount  uint32
	enforceUpdate     bool

	preservedSid *Frame

	ssrc uint32

	depthHistory []uint32
}

// New constructs a JitterBuffer with the given configuration and telemetry
// sink. A nil sink discards every event.
func New(cfg Config, sink TelemetrySink) *JitterBuffer {
	cfg.normalize()
	if sink == nil {
		sink = discardingSink{}
	}

	b := &JitterBuffer{
		store:    NewFrameStore(),
		analyzer: NewJitterAnalyzer(cfg.MinDepth, cfg.MaxDepth),
		sink:     sink,
		cfg:      cfg,
	}
	b.analyzer.SetOptions(cfg.IncThresholdMs, cfg.DecThresholdMs, cfg.StepSize, cfg.ZValue)
	b.currentDepth = cfg.InitDepth
	b.nextDepth = cfg.InitDepth
	b.resetLocked(0)
	return b
}

// SetBufferSize clamps pending depths to the new [min, max] range.
func (b *JitterBuffer) SetBufferSize(init, min, max uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if min > 0 {
		b.cfg.MinDepth = min
	}
	if max > 0 {
		b.cfg.MaxDepth = max
	}
	if b.cfg.MinDepth > b.cfg.MaxDepth {
		b.cfg.MinDepth, b.cfg.MaxDepth = b.cfg.MaxDepth, b.cfg.MinDepth
	}
	if init > 0 {
		b.cfg.InitDepth = clampDepth(init, b.cfg.MinDepth, b.cfg.MaxDepth)
		b.currentDepth = b.cfg.InitDepth
		b.nextDepth = b.cfg.InitDepth
	} else {
		b.currentDepth = clampDepth(b.currentDepth, b.cfg.MinDepth, b.cfg.MaxDepth)
		b.nextDepth = clampDepth(b.nextDepth, b.cfg.MinDepth, b.cfg.MaxDepth)
	}
	b.analyzer.SetBounds(b.cfg.MinDepth, b.cfg.MaxDepth)
}

// SetJitterOptions updates the analyzer's hysteresis knobs.
func (b *JitterBuffer) SetJitterOptions(incThresholdMs, decThresholdMs, stepSize uint32, zValue float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cfg.IncThresholdMs = incThresholdMs
	b.cfg.DecThresholdMs = decThresholdMs
	b.cfg.StepSize = stepSize
	b.cfg.ZValue = zValue
	b.analyzer.SetOptions(incThresholdMs, decThresholdMs, stepSize, zValue)
}

// SetIgnoreSidForJitter toggles whether SID frames feed the jitter analyzer.
func (b *JitterBuffer) SetIgnoreSidForJitter(ignore bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.IgnoreSidForJitter = ignore
}

// Count returns the number of frames currently pending in FrameStore.
func (b *JitterBuffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Count()
}

// Reset reinitializes runtime state without emptying FrameStore. nowMs is
// the caller's current monotonic millisecond reading, stored as the new
// fill-wait reference point the same way Add's catastrophic-reset and Get's
// SSRC-refresh reset do.
func (b *JitterBuffer) Reset(nowMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked(nowMs)
}

func (b *JitterBuffer) resetLocked(nowMs int64) {
	b.lastDeliveredSeq = 0
	b.playoutTs = 0
	b.firstFrameDelivered = false
	b.waiting = true
	b.nextDepth = b.currentDepth
	b.dtxActive = false
	b.consecutiveSidDelivered = 0
	b.deleteCount = 0
	b.cannotGetCount = 0
	b.checkUpdateCount = 0
	b.enforceUpdate = false
	b.preservedSid = nil
	b.startTimeMs = nowMs
}

// ClearBuffer empties FrameStore, emitting DISCARDED telemetry for every
// non-SID frame dropped.
func (b *JitterBuffer) ClearBuffer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearBufferLocked()
}

func (b *JitterBuffer) clearBufferLocked() {
	b.store.Clear(func(f Frame) {
		if f.DataType != DataTypeSID {
			b.publishRxStatus(f.SeqNum, RxStatusDiscarded, b.lastTickMs)
		}
	})
}

func (b *JitterBuffer) publish(ev Event) {
	b.sink.Publish(ev)
}

func (b *JitterBuffer) publishRxStatus(seq uint16, status RxStatus, capturedAtMs int64) {
	b.publish(Event{Kind: EventRxRtpStatus, Seq: seq, Status: status, CapturedAtMs: capturedAtMs})
}

// Add ingests one de-packetized frame from the producer. arrivalTimeMs is
// the externally captured monotonic millisecond clock reading for this
// frame and overrides f.ArrivalTimeMs.
func (b *JitterBuffer) Add(f Frame, arrivalTimeMs uint32) {
	f.ArrivalTimeMs = arrivalTimeMs

	b.mu.Lock()
	defer b.mu.Unlock()

	if f.IsRefreshMarker() {
		b.ssrc = f.SSRC
		b.analyzer.Reset()
		b.analyzer.SetBounds(b.cfg.MinDepth, b.cfg.MaxDepth)
		b.store.Append(f)
		return
	}

	if b.cannotGetCount > b.cfg.MaxDepth {
		b.clearBufferLocked()
		b.resetLocked(int64(arrivalTimeMs))
	}

	var jitter int32
	if !(b.cfg.IgnoreSidForJitter && f.DataType == DataTypeSID) {
		jitter = b.analyzer.Observe(f.RTPTimestamp, f.ArrivalTimeMs)
	}

	b.publish(Event{
		Kind:        EventPacketInfo,
		SSRC:        b.ssrc,
		Seq:         f.SeqNum,
		RTPDataType: f.DataType,
		Jitter:      jitter,
		ArrivalMs:   f.ArrivalTimeMs,
	})

	if len(f.Payload) == 0 {
		return
	}

	if b.store.Contains(f.SeqNum) {
		b.publishRxStatus(f.SeqNum, RxStatusDuplicated, int64(arrivalTimeMs))
		return
	}

	if last, ok := b.store.PeekLast(); !ok || seqAfter(f.SeqNum, last.SeqNum) {
		b.store.Append(f)
	} else {
		b.store.InsertSorted(f)
	}
}

// Get is called by the playout thread once per 20ms tick. It never blocks.
func (b *JitterBuffer) Get(nowMs int64) GetResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastTickMs = nowMs
	forcePlay := false
	b.checkUpdateCount++

	// Step A — SSRC refresh.
	if head, ok := b.store.PeekFirst(); ok && head.IsRefreshMarker() {
		wasWaiting := b.waiting
		b.resetLocked(nowMs)
		b.store.PopFirst()
		if next, ok := b.store.PeekFirst(); ok && !wasWaiting {
			b.playoutTs = next.RTPTimestamp
			b.waiting = false
		}
	}

	// Step B — periodic depth update.
	headNonSid := false
	if head, ok := b.store.PeekFirst(); ok && head.DataType != DataTypeSID {
		headNonSid = true
	}
	if !b.waiting && ((b.dtxActive && headNonSid) ||
		b.checkUpdateCount*frameInterval > jitterBufferUpdateInterval) {
		next := b.analyzer.NextDepth(b.currentDepth, nowMs)
		delta := int32(next) - int32(b.currentDepth)
		if delta == 0 {
			b.missedUpdateCount++
		}
		b.currentDepth = next
		b.nextDepth = next
		b.pendingDelayAdjustment += delta
		b.checkUpdateCount = 0
	}

	// Step C — bounded depth history.
	b.depthHistory = append(b.depthHistory, b.currentDepth)
	if len(b.depthHistory) > maxStoredBufferSize {
		b.depthHistory = b.depthHistory[len(b.depthHistory)-maxStoredBufferSize:]
	}

	// Step D — delay-inflate during DTX.
	if !b.waiting && b.dtxActive && b.pendingDelayAdjustment > 0 {
		b.pendingDelayAdjustment--
		return GetResult{}
	}

	// Step E — delay-deflate during DTX.
	deflating := false
	if head, ok := b.store.PeekFirst(); ok && !b.waiting && head.DataType == DataTypeSID && b.pendingDelayAdjustment < 0 {
		b.pendingDelayAdjustment++
		b.playoutTs += samplesPerFrame
		deflating = true
	}
	_ = deflating

	// Step F — reset-threshold catch-up.
	if b.cannotGetCount*frameInterval > resetThreshold {
		b.enforceUpdate = true
		b.waiting = false
		b.cannotGetCount = 0
	}

	// Step G — empty queue.
	if b.store.Count() == 0 {
		if !b.waiting {
			b.playoutTs += samplesPerFrame
		}
		return GetResult{}
	}

	// Step H — initial fill wait.
	if b.waiting {
		if nowMs-b.startTimeMs < int64(b.currentDepth)*frameInterval {
			return GetResult{}
		}
		b.resync(b.currentDepth+1, nowMs)
		b.waiting = false
	}

	// Step I — duplicate at head.
	if head, ok := b.store.PeekFirst(); ok && b.firstFrameDelivered && head.SeqNum == b.lastDeliveredSeq {
		b.publishRxStatus(head.SeqNum, RxStatusDuplicated, nowMs)
		b.store.PopFirst()
		b.deleteCount++
	}

	// Step J — safety trim.
	if nowMs-b.startTimeMs < 3000 {
		b.resync(b.cfg.MaxDepth, nowMs)
	} else {
		b.resync(maxQueueSize, nowMs)
	}

	// Step K — fine timestamp snap.
	if head, ok := b.store.PeekFirst(); ok {
		diff := int64(head.RTPTimestamp) - int64(b.playoutTs)
		if diff != 0 && diff > -int64(allowableError) && diff < int64(allowableError) {
			b.playoutTs = head.RTPTimestamp
		}
	}

	// Step L — late-arrival discard loop (with supplemented delete-run resync).
	for {
		head, ok := b.store.PeekFirst()
		if !ok {
			break
		}
		if b.resyncOnDeleteRun() {
			break
		}
		if tsGEQWrap(head.RTPTimestamp, b.playoutTs) {
			break
		}

		b.dtxActive = head.DataType == DataTypeSID
		if seqGEQ(head.SeqNum, b.lastDeliveredSeq) {
			b.lastDeliveredSeq = head.SeqNum
		}

		if head.DataType == DataTypeSID {
			f := head
			b.preservedSid = &f
		} else {
			b.publishRxStatus(head.SeqNum, RxStatusLate, nowMs)
			b.deleteCount++
		}
		b.analyzer.NoteLateArrival(nowMs)
		b.store.PopFirst()
	}

	// Supplemented — consecutive-SID-delivery depth auto-shrink (AOSP
	// AudioJitterBuffer's mSIDCount gate; see SPEC_FULL.md §4).
	if b.dtxActive && b.consecutiveSidDelivered > consecutiveSidShrinkThreshold &&
		uint32(b.store.Count()) > b.currentDepth {
		if head, ok := b.store.PeekFirst(); ok && head.DataType == DataTypeSID {
			if seqGEQ(head.SeqNum, b.lastDeliveredSeq) {
				b.lastDeliveredSeq = head.SeqNum
			}
			b.consecutiveSidDelivered++
			b.dtxActive = true
			b.publishRxStatus(head.SeqNum, RxStatusDiscarded, nowMs)
			b.deleteCount++
			b.store.PopFirst()
			forcePlay = true
		}
	}

	// Step M — huge-jump force.
	if head, ok := b.store.PeekFirst(); ok {
		if int64(head.RTPTimestamp)-int64(b.playoutTs) > int64(tsRoundGuard) {
			forcePlay = true
		}
	}

	// Step N — enforceUpdate aftermath.
	if b.enforceUpdate {
		for uint32(b.store.Count()) > b.currentDepth+1 {
			head, ok := b.store.PeekFirst()
			if !ok {
				break
			}
			b.dtxActive = head.DataType == DataTypeSID
			if seqGEQ(head.SeqNum, b.lastDeliveredSeq) {
				b.lastDeliveredSeq = head.SeqNum
			}
			if head.DataType != DataTypeSID {
				b.publishRxStatus(head.SeqNum, RxStatusDiscarded, nowMs)
			}
			b.store.PopFirst()
			forcePlay = true
		}
		b.enforceUpdate = false

		if b.store.Count() < 2 || uint32(b.store.Count()) < saturatingSub(b.currentDepth, b.cfg.MinDepth) {
			return GetResult{}
		}
	}

	// Step O — deliver.
	head, ok := b.store.PeekFirst()
	if ok && (head.RTPTimestamp == b.playoutTs || forcePlay ||
		(head.RTPTimestamp < tsRoundGuard && b.playoutTs > 0xFFFF)) {

		if head.DataType == DataTypeSID {
			b.consecutiveSidDelivered++
			b.dtxActive = true
		} else {
			b.consecutiveSidDelivered = 0
			b.dtxActive = false
		}

		if b.firstFrameDelivered {
			gap := seqGap(head.SeqNum, b.lastDeliveredSeq)
			if gap > 1 && gap < seqOutlierThreshold {
				b.publish(Event{
					Kind:            EventLossGap,
					FirstMissingSeq: b.lastDeliveredSeq + 1,
					MissingCount:    gap - 1,
				})
			}
		}

		b.playoutTs = head.RTPTimestamp + samplesPerFrame
		b.firstFrameDelivered = true
		b.lastDeliveredSeq = head.SeqNum
		b.cannotGetCount = 0

		b.publishRxStatus(head.SeqNum, RxStatusNormal, nowMs)
		b.publish(Event{
			Kind:      EventJitterBufferSize,
			CurrentMs: b.currentDepth * frameInterval,
			MaxMs:     b.cfg.MaxDepth * frameInterval,
		})

		b.store.PopFirst()
		return GetResult{
			Delivered:    true,
			Subtype:      head.Subtype,
			Payload:      head.Payload,
			RTPTimestamp: head.RTPTimestamp,
			Mark:         head.Mark,
			SeqNum:       head.SeqNum,
			DataType:     head.DataType,
		}
	}

	// Step P — no deliverable head.
	if !b.dtxActive {
		b.cannotGetCount++
	}

	if b.preservedSid != nil {
		sid := *b.preservedSid
		b.preservedSid = nil
		playoutTs := b.playoutTs
		b.playoutTs += samplesPerFrame
		return GetResult{
			Delivered:    true,
			Subtype:      sid.Subtype,
			Payload:      sid.Payload,
			RTPTimestamp: playoutTs,
			Mark:         sid.Mark,
			SeqNum:       sid.SeqNum,
			DataType:     sid.DataType,
		}
	}

	b.playoutTs += samplesPerFrame
	return GetResult{}
}

// resync discards frames beyond spareFrames from the head, emitting
// DISCARDED telemetry for each non-SID frame popped, then resyncs playoutTs
// to the new head.
func (b *JitterBuffer) resync(spareFrames uint32, nowMs int64) {
	popped := false
	for uint32(b.store.Count()) > spareFrames {
		f, ok := b.store.PopFirst()
		if !ok {
			break
		}
		if f.DataType != DataTypeSID {
			b.publishRxStatus(f.SeqNum, RxStatusDiscarded, nowMs)
		}
		if !b.waiting {
			b.lastDeliveredSeq = f.SeqNum
		}
		popped = true
	}
	if popped || b.waiting {
		if head, ok := b.store.PeekFirst(); ok {
			b.playoutTs = head.RTPTimestamp
		}
	}
}

// resyncOnDeleteRun implements the original AudioJitterBuffer's mid-scan
// resync: a long run of late-arrival deletes past minDepth, with the queue
// drained below currentDepth+1, rebases playoutTs off the current head
// instead of continuing to discard one frame at a time.
func (b *JitterBuffer) resyncOnDeleteRun() bool {
	if b.deleteCount <= b.cfg.MinDepth {
		return false
	}
	count := uint32(b.store.Count())
	if count >= b.currentDepth+1 {
		return false
	}
	head, ok := b.store.PeekFirst()
	if !ok {
		return false
	}

	half := (b.currentDepth + defaultMinDepth) / 2
	if count >= half {
		b.playoutTs = head.RTPTimestamp
	} else {
		b.playoutTs = head.RTPTimestamp - (half-count)*samplesPerFrame
	}
	b.deleteCount = 0
	return true
}
