package jitterbuffer

// Wire-visible constants, per spec. These are not tunable at runtime.
//
// The spec expresses FRAME_INTERVAL, ALLOWABLE_ERROR and TS_ROUND_QUARD as
// millisecond quantities but applies them to both wall-clock comparisons
// (nowMs, startTimeMs) and RTP-clock comparisons (rtpTimestamp, playoutTs).
// Those are different units for an 8kHz audio clock (160 samples/20ms), so
// this implementation keeps frameInterval in milliseconds for wall-clock
// math and scales the RTP-domain constants by samplesPerFrame/frameInterval
// (8 samples/ms at 8kHz) to their RTP-clock equivalents.
const (
	frameInterval              = 20    // ms, nominal playout cadence
	samplesPerFrame            = 160   // RTP-clock units per frame at 8kHz
	allowableError             = 80    // RTP-clock units, fine timestamp-snap tolerance (10ms-equivalent)
	resetThreshold             = 10000 // ms, catastrophic stall watchdog
	tsRoundGuard               = 24000 // RTP-clock units, wrap-comparison quard zone (3000ms-equivalent)
	seqOutlierThreshold        = 3000  // max reported loss-gap size
	jitterBufferUpdateInterval = 100   // ms, analyzer poll cadence
	maxQueueSize               = 150   // frames, ~3s at 20ms
	maxStoredBufferSize        = 180000

	defaultInitDepth = 4
	defaultMinDepth  = 3
	defaultMaxDepth  = 9

	consecutiveSidShrinkThreshold = 4 // original AudioJitterBuffer's mSIDCount gate
)
