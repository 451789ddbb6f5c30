package jitterbuffer

import "testing"

type collectingSink struct {
	events []Event
}

func (c *collectingSink) Publish(ev Event) {
	c.events = append(c.events, ev)
}

func (c *collectingSink) of(kind EventKind) []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestBuffer() (*JitterBuffer, *collectingSink) {
	sink := &collectingSink{}
	return New(DefaultConfig(), sink), sink
}

// TestSteadyStateDelivery mirrors scenario S1: a clean in-order feed, each
// frame added at its own 20ms arrival tick just before that tick's Get,
// delivers every frame in sequence once the initial fill completes, with no
// drops.
func TestSteadyStateDelivery(t *testing.T) {
	b, sink := newTestBuffer()

	const n = 20
	var delivered []uint16
	for tick := 0; tick < n+4; tick++ {
		if tick < n {
			seq := uint16(100 + tick)
			ts := uint32((tick + 1) * 160)
			arrival := uint32(tick * 20)
			b.Add(Frame{SeqNum: seq, RTPTimestamp: ts, Payload: []byte{1}}, arrival)
		}
		res := b.Get(int64(tick) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
		}
	}

	if len(delivered) != n {
		t.Fatalf("expected %d deliveries, got %d: %v", n, len(delivered), delivered)
	}
	for i, seq := range delivered {
		want := uint16(100 + i)
		if seq != want {
			t.Fatalf("delivery %d: expected seq %d, got %d", i, want, seq)
		}
	}
	if gaps := sink.of(EventLossGap); len(gaps) != 0 {
		t.Fatalf("expected no loss gaps, got %v", gaps)
	}
}

// TestReorderDelivery mirrors scenario S2: frames arriving out of order are
// resequenced before delivery.
func TestReorderDelivery(t *testing.T) {
	b, _ := newTestBuffer()

	type arrival struct {
		seq uint16
		ts  uint32
		at  uint32
	}
	feed := []arrival{
		{100, 160, 0},
		{101, 320, 20},
		{103, 640, 40},
		{102, 480, 60},
		{104, 800, 80},
	}
	for _, f := range feed {
		b.Add(Frame{SeqNum: f.seq, RTPTimestamp: f.ts, Payload: []byte{1}}, f.at)
	}

	var delivered []uint16
	for tick := 0; tick < 12; tick++ {
		res := b.Get(int64(tick) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
		}
	}

	want := []uint16{100, 101, 102, 103, 104}
	if len(delivered) != len(want) {
		t.Fatalf("expected deliveries %v, got %v", want, delivered)
	}
	for i := range want {
		if delivered[i] != want[i] {
			t.Fatalf("expected deliveries %v, got %v", want, delivered)
		}
	}
}

// TestDuplicateDropped mirrors scenario S3: a retransmitted duplicate is
// dropped with DUPLICATED telemetry and never delivered twice.
func TestDuplicateDropped(t *testing.T) {
	b, sink := newTestBuffer()

	b.Add(Frame{SeqNum: 100, RTPTimestamp: 160, Payload: []byte{1}}, 0)
	b.Add(Frame{SeqNum: 100, RTPTimestamp: 160, Payload: []byte{1}}, 10)
	b.Add(Frame{SeqNum: 101, RTPTimestamp: 320, Payload: []byte{1}}, 20)

	var delivered []uint16
	for tick := 0; tick < 8; tick++ {
		res := b.Get(int64(tick) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
		}
	}

	if len(delivered) != 2 || delivered[0] != 100 || delivered[1] != 101 {
		t.Fatalf("expected deliveries [100 101], got %v", delivered)
	}

	dups := sink.of(EventRxRtpStatus)
	found := false
	for _, ev := range dups {
		if ev.Status == RxStatusDuplicated && ev.Seq == 100 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DUPLICATED event for seq 100")
	}
}

// TestSSRCRefreshResetsSequencing mirrors scenario S6: an in-band SSRC
// refresh resets lastDeliveredSeq and suppresses a loss-gap across the jump.
func TestSSRCRefreshResetsSequencing(t *testing.T) {
	b, sink := newTestBuffer()

	b.Add(Frame{SeqNum: 100, RTPTimestamp: 160, Payload: []byte{1}}, 0)
	b.Add(Frame{SeqNum: 101, RTPTimestamp: 320, Payload: []byte{1}}, 20)

	var delivered []uint16
	tick := 0
	for ; tick < 8; tick++ {
		res := b.Get(int64(tick) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
			if len(delivered) == 2 {
				tick++
				break
			}
		}
	}
	if len(delivered) != 2 {
		t.Fatalf("expected SSRC A deliveries before refresh, got %v", delivered)
	}

	b.Add(Frame{Subtype: SubtypeRefreshed, SSRC: 0xB}, uint32(tick)*20)
	b.Add(Frame{SeqNum: 500, RTPTimestamp: 800, Payload: []byte{1}}, uint32(tick)*20)
	b.Add(Frame{SeqNum: 501, RTPTimestamp: 960, Payload: []byte{1}}, uint32(tick+1)*20)

	sink.events = nil

	for i := 0; i < 8; i++ {
		res := b.Get(int64(tick+i) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
		}
		if len(delivered) >= 4 {
			break
		}
	}

	if len(delivered) != 4 || delivered[2] != 500 || delivered[3] != 501 {
		t.Fatalf("expected deliveries [100 101 500 501], got %v", delivered)
	}
	for _, ev := range sink.of(EventLossGap) {
		t.Fatalf("expected no loss gap across SSRC refresh, got %+v", ev)
	}
}

// TestLateArrivalDiscardAndLossGap mirrors scenario S4: 100 and 102 arrive
// on time but 101 shows up only after 102 has already been played out.
// Expect 100 delivered, 102 delivered with a LossGap covering the missing
// 101, and the late 101 dropped as LATE without being delivered.
func TestLateArrivalDiscardAndLossGap(t *testing.T) {
	b, sink := newTestBuffer()

	b.Add(Frame{SeqNum: 100, RTPTimestamp: 160, Payload: []byte{1}}, 0)
	b.Add(Frame{SeqNum: 102, RTPTimestamp: 480, Payload: []byte{1}}, 20)

	var delivered []uint16
	for tick := 0; tick < 5; tick++ {
		res := b.Get(int64(tick) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
		}
	}
	if len(delivered) != 1 || delivered[0] != 100 {
		t.Fatalf("expected only seq 100 delivered through t=80ms, got %v", delivered)
	}

	// t=100ms: 102 is in the store but its timestamp hasn't come up yet;
	// playout moves past 101's timestamp (320) with nothing to play.
	if res := b.Get(100); res.Delivered {
		t.Fatalf("expected no delivery at t=100ms, got seq %d", res.SeqNum)
	}

	res := b.Get(120)
	if !res.Delivered || res.SeqNum != 102 {
		t.Fatalf("expected delivery of seq 102 at t=120ms, got delivered=%v seq=%d", res.Delivered, res.SeqNum)
	}

	// 101 finally arrives, after playoutTs has moved past its timestamp and
	// 102 has already been played out.
	b.Add(Frame{SeqNum: 101, RTPTimestamp: 320, Payload: []byte{1}}, 120)

	if res := b.Get(140); res.Delivered {
		t.Fatalf("expected late seq 101 not to be delivered, got seq %d", res.SeqNum)
	}

	foundLate := false
	for _, ev := range sink.of(EventRxRtpStatus) {
		if ev.Status == RxStatusLate && ev.Seq == 101 {
			foundLate = true
		}
	}
	if !foundLate {
		t.Fatalf("expected a LATE event for seq 101")
	}

	gaps := sink.of(EventLossGap)
	if len(gaps) != 1 || gaps[0].FirstMissingSeq != 101 || gaps[0].MissingCount != 1 {
		t.Fatalf("expected LossGap{first=101,count=1}, got %+v", gaps)
	}
}

// TestDTXDelayInflate mirrors scenario S5: with pendingDelayAdjustment
// forced positive during DTX, the next Get returns delivered=false without
// advancing playoutTs, and the following Get resumes normal delivery.
func TestDTXDelayInflate(t *testing.T) {
	b, _ := newTestBuffer()

	const n = 6
	var delivered []uint16
	tick := 0
	for ; tick < n+4; tick++ {
		if tick < n {
			seq := uint16(100 + tick)
			ts := uint32((tick + 1) * 160)
			arrival := uint32(tick * 20)
			b.Add(Frame{SeqNum: seq, RTPTimestamp: ts, Payload: []byte{1}}, arrival)
		}
		res := b.Get(int64(tick) * 20)
		if res.Delivered {
			delivered = append(delivered, res.SeqNum)
		}
		if len(delivered) == n {
			tick++
			break
		}
	}
	if len(delivered) != n {
		t.Fatalf("expected steady-state delivery of %d frames before forcing DTX, got %v", n, delivered)
	}

	playoutBefore := b.playoutTs
	b.dtxActive = true
	b.pendingDelayAdjustment = 1

	res := b.Get(int64(tick) * 20)
	if res.Delivered {
		t.Fatalf("expected no delivery on the DTX delay-inflate tick, got seq %d", res.SeqNum)
	}
	if b.playoutTs != playoutBefore {
		t.Fatalf("expected playoutTs unchanged by the inflate tick, before=%d after=%d", playoutBefore, b.playoutTs)
	}
	if b.pendingDelayAdjustment != 0 {
		t.Fatalf("expected pendingDelayAdjustment decremented to 0, got %d", b.pendingDelayAdjustment)
	}

	nextSeq := uint16(100 + n)
	nextTs := uint32((n + 1) * 160)
	b.Add(Frame{SeqNum: nextSeq, RTPTimestamp: nextTs, Payload: []byte{1}}, uint32(tick)*20)
	b.dtxActive = false

	res = b.Get(int64(tick+1) * 20)
	if !res.Delivered || res.SeqNum != nextSeq {
		t.Fatalf("expected resumed delivery of seq %d, got delivered=%v seq=%d", nextSeq, res.Delivered, res.SeqNum)
	}
}

// TestClearBufferDiscardsNonSID verifies ClearBuffer empties the store and
// only reports DISCARDED telemetry for non-SID frames.
func TestClearBufferDiscardsNonSID(t *testing.T) {
	b, sink := newTestBuffer()
	b.Add(Frame{SeqNum: 1, RTPTimestamp: 160, Payload: []byte{1}}, 0)
	b.Add(Frame{SeqNum: 2, RTPTimestamp: 320, Payload: []byte{1}, DataType: DataTypeSID}, 0)

	b.ClearBuffer()

	if b.Count() != 0 {
		t.Fatalf("expected empty buffer after ClearBuffer, count=%d", b.Count())
	}

	var discardedNonSid, discardedSid int
	for _, ev := range sink.of(EventRxRtpStatus) {
		if ev.Status != RxStatusDiscarded {
			continue
		}
		if ev.Seq == 1 {
			discardedNonSid++
		}
		if ev.Seq == 2 {
			discardedSid++
		}
	}
	if discardedNonSid != 1 {
		t.Fatalf("expected one DISCARDED event for non-SID frame, got %d", discardedNonSid)
	}
	if discardedSid != 0 {
		t.Fatalf("expected no DISCARDED event for SID frame, got %d", discardedSid)
	}
}

// TestDepthStaysWithinConfiguredBounds covers invariant 3: accepted
// deliveries always report a depth within [minDepth, maxDepth].
func TestDepthStaysWithinConfiguredBounds(t *testing.T) {
	b, sink := newTestBuffer()

	for i := 0; i < 40; i++ {
		seq := uint16(100 + i)
		ts := uint32((i + 1) * 160)
		arrival := uint32(i*20) + uint32(i*3) // mild jitter growth
		b.Add(Frame{SeqNum: seq, RTPTimestamp: ts, Payload: []byte{1}}, arrival)
	}

	for tick := 0; tick < 60; tick++ {
		b.Get(int64(tick) * 20)
	}

	cfg := DefaultConfig()
	for _, ev := range sink.of(EventJitterBufferSize) {
		depthFrames := ev.CurrentMs / frameInterval
		if depthFrames < cfg.MinDepth || depthFrames > cfg.MaxDepth {
			t.Fatalf("depth %d frames outside [%d,%d]", depthFrames, cfg.MinDepth, cfg.MaxDepth)
		}
	}
}

// TestResetMatchesFreshConstruction covers invariant 6: after ClearBuffer
// and Reset, runtime state mirrors a freshly constructed buffer aside from
// configured sizes.
func TestResetMatchesFreshConstruction(t *testing.T) {
	b, _ := newTestBuffer()
	b.Add(Frame{SeqNum: 1, RTPTimestamp: 160, Payload: []byte{1}}, 0)
	b.Get(0)

	b.ClearBuffer()
	b.Reset(500)

	if b.store.Count() != 0 {
		t.Fatalf("expected empty store after reset")
	}
	if !b.waiting {
		t.Fatalf("expected waiting=true after reset")
	}
	if b.firstFrameDelivered {
		t.Fatalf("expected firstFrameDelivered=false after reset")
	}
	if b.lastDeliveredSeq != 0 || b.playoutTs != 0 {
		t.Fatalf("expected zeroed sequencing state after reset")
	}
	if b.startTimeMs != 500 {
		t.Fatalf("expected Reset to advance startTimeMs to the caller's current time, got %d", b.startTimeMs)
	}
}
