package internal

import (
	"testing"

	"karl/internal/jitterbuffer"
)

func TestRTCPXRAccumulatorTracksRxStatusCounts(t *testing.T) {
	a := &rtcpXRAccumulator{reports: make(map[uint32]*RTCPXRJitterBufferReport)}

	a.observe(jitterbuffer.Event{Kind: jitterbuffer.EventRxRtpStatus, SSRC: 7, Status: jitterbuffer.RxStatusNormal})
	a.observe(jitterbuffer.Event{Kind: jitterbuffer.EventRxRtpStatus, SSRC: 7, Status: jitterbuffer.RxStatusNormal})
	a.observe(jitterbuffer.Event{Kind: jitterbuffer.EventRxRtpStatus, SSRC: 7, Status: jitterbuffer.RxStatusDiscarded})

	report, ok := a.snapshotAndReset(7)
	if !ok {
		t.Fatalf("snapshotAndReset(7) returned ok=false")
	}
	if report.PacketsNormal != 2 {
		t.Errorf("PacketsNormal = %d, want 2", report.PacketsNormal)
	}
	if report.PacketsDiscard != 1 {
		t.Errorf("PacketsDiscard = %d, want 1", report.PacketsDiscard)
	}

	// A second snapshot without new observations reports zero, proving the
	// counters reset.
	report2, ok := a.snapshotAndReset(7)
	if !ok {
		t.Fatalf("snapshotAndReset(7) second call returned ok=false")
	}
	if report2.PacketsNormal != 0 || report2.PacketsDiscard != 0 {
		t.Errorf("expected reset counters, got normal=%d discard=%d", report2.PacketsNormal, report2.PacketsDiscard)
	}
}

func TestRTCPXRAccumulatorTracksDepth(t *testing.T) {
	a := &rtcpXRAccumulator{reports: make(map[uint32]*RTCPXRJitterBufferReport)}

	a.observe(jitterbuffer.Event{Kind: jitterbuffer.EventJitterBufferSize, SSRC: 9, CurrentMs: 60, MaxMs: 180})
	a.observe(jitterbuffer.Event{Kind: jitterbuffer.EventJitterBufferSize, SSRC: 9, CurrentMs: 40, MaxMs: 180})

	report, ok := a.snapshotAndReset(9)
	if !ok {
		t.Fatalf("snapshotAndReset(9) returned ok=false")
	}
	if report.JBNominalMs != 40 {
		t.Errorf("JBNominalMs = %d, want 40 (last observed)", report.JBNominalMs)
	}
	if report.JBMaxMs != 60 {
		t.Errorf("JBMaxMs = %d, want 60 (high-water mark)", report.JBMaxMs)
	}
	if report.JBAbsMaxMs != 180 {
		t.Errorf("JBAbsMaxMs = %d, want 180", report.JBAbsMaxMs)
	}
}

func TestRTCPXRAccumulatorUnknownSSRC(t *testing.T) {
	a := &rtcpXRAccumulator{reports: make(map[uint32]*RTCPXRJitterBufferReport)}
	if _, ok := a.snapshotAndReset(404); ok {
		t.Fatalf("snapshotAndReset on unseen SSRC returned ok=true")
	}
}
