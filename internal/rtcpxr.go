package internal

import (
	"log"
	"sync"
	"time"

	"karl/internal/jitterbuffer"
)

// RTCPXRJitterBufferReport mirrors the RTCP-XR (RFC 3611) VoIP Metrics
// Report Block's jitter buffer fields: nominal/maximum/absolute-maximum
// buffer delay in ms, plus reception-quality counters accumulated since the
// last report for one SSRC.
type RTCPXRJitterBufferReport struct {
	SSRC            uint32
	JBNominalMs     uint32
	JBMaxMs         uint32
	JBAbsMaxMs      uint32
	PacketsNormal   uint64
	PacketsLate     uint64
	PacketsDup      uint64
	PacketsDiscard  uint64
	LossGapEvents   uint64
	GeneratedAt     time.Time
}

type rtcpXRAccumulator struct {
	mu      sync.Mutex
	reports map[uint32]*RTCPXRJitterBufferReport
}

var rtcpXRState = &rtcpXRAccumulator{
	reports: make(map[uint32]*RTCPXRJitterBufferReport),
}

func (a *rtcpXRAccumulator) observe(ev jitterbuffer.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.reports[ev.SSRC]
	if !ok {
		r = &RTCPXRJitterBufferReport{SSRC: ev.SSRC}
		a.reports[ev.SSRC] = r
	}

	switch ev.Kind {
	case jitterbuffer.EventJitterBufferSize:
		r.JBNominalMs = ev.CurrentMs
		if ev.CurrentMs > r.JBMaxMs {
			r.JBMaxMs = ev.CurrentMs
		}
		if ev.MaxMs > r.JBAbsMaxMs {
			r.JBAbsMaxMs = ev.MaxMs
		}
	case jitterbuffer.EventRxRtpStatus:
		switch ev.Status {
		case jitterbuffer.RxStatusNormal:
			r.PacketsNormal++
		case jitterbuffer.RxStatusLate:
			r.PacketsLate++
		case jitterbuffer.RxStatusDuplicated:
			r.PacketsDup++
		case jitterbuffer.RxStatusDiscarded:
			r.PacketsDiscard++
		}
	case jitterbuffer.EventLossGap:
		r.LossGapEvents++
	}
}

// snapshotAndReset returns a copy of the current per-SSRC report and resets its
// counters, matching RTCP-XR's since-last-report accumulation semantics.
func (a *rtcpXRAccumulator) snapshotAndReset(ssrc uint32) (RTCPXRJitterBufferReport, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.reports[ssrc]
	if !ok {
		return RTCPXRJitterBufferReport{}, false
	}
	snap := *r
	snap.GeneratedAt = time.Now()

	r.PacketsNormal = 0
	r.PacketsLate = 0
	r.PacketsDup = 0
	r.PacketsDiscard = 0
	r.LossGapEvents = 0

	return snap, true
}

func (a *rtcpXRAccumulator) activeSSRCs() []uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint32, 0, len(a.reports))
	for ssrc := range a.reports {
		out = append(out, ssrc)
	}
	return out
}

// StartRTCPXRReporter drains the jitter buffer manager's telemetry channel,
// accumulates per-SSRC RTCP-XR jitter buffer metrics, and periodically
// raises an alert through the existing RTP alert pipeline when a session's
// discard rate looks bad enough to be worth paging on.
func StartRTCPXRReporter(interval time.Duration) {
	events := jitterBufferManager.Events()
	if events == nil {
		log.Println("⚠️ RTCP-XR reporter: no jitter buffer telemetry channel available")
		return
	}

	go func() {
		for ev := range events {
			rtcpXRState.observe(ev)
			recordJitterBufferTelemetry(ev)
		}
	}()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			for _, ssrc := range rtcpXRState.activeSSRCs() {
				report, ok := rtcpXRState.snapshotAndReset(ssrc)
				if !ok {
					continue
				}
				emitRTCPXRReport(report)
			}
		}
	}()

	log.Printf("📊 RTCP-XR jitter buffer reporter started (interval=%s)", interval)
}

func emitRTCPXRReport(report RTCPXRJitterBufferReport) {
	total := report.PacketsNormal + report.PacketsLate + report.PacketsDup + report.PacketsDiscard
	if total == 0 {
		return
	}

	discardRate := float64(report.PacketsDiscard) / float64(total)
	log.Printf("📊 RTCP-XR SSRC=%d jb_nominal=%dms jb_max=%dms discard_rate=%.2f%% loss_gaps=%d",
		report.SSRC, report.JBNominalMs, report.JBMaxMs, discardRate*100, report.LossGapEvents)

	if discardRate > 0.05 {
		triggerAlert("JitterBufferDiscard",
			"Elevated jitter buffer discard rate",
			discardRate*100, 5.0)
	}
}

// recordJitterBufferTelemetry fans a single jitter buffer event out to the
// Prometheus, Redis and MySQL sinks wired for the audio receive jitter
// buffer's domain stack.
func recordJitterBufferTelemetry(ev jitterbuffer.Event) {
	switch ev.Kind {
	case jitterbuffer.EventPacketInfo:
		ObserveJitterBufferSample(ev.Jitter)
	case jitterbuffer.EventRxRtpStatus:
		ObserveJitterBufferRxStatus(ev.Status.String())
		if jitterBufferDBSink != nil && (ev.Status == jitterbuffer.RxStatusLate || ev.Status == jitterbuffer.RxStatusDiscarded) {
			if err := jitterBufferDBSink.InsertJitterBufferEvent(ev.SSRC, ev.Seq, ev.Status.String(), 0); err != nil {
				IncrementErrorMetric(ErrCodeJitterBuffer)
			}
		}
	case jitterbuffer.EventLossGap:
		ObserveJitterBufferLossGap()
	case jitterbuffer.EventJitterBufferSize:
		SetJitterBufferDepth(ev.SSRC, ev.CurrentMs, ev.MaxMs)
	}
}
