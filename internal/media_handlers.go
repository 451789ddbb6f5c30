package internal

import (
	"log"
	"sync"

	"karl/internal/jitterbuffer"
)

// JitterBufferManager owns one jitterbuffer.JitterBuffer per active SSRC,
// keyed by the depacketizer that feeds it. Settings changes from the config
// watcher are fanned out to every managed buffer.
type JitterBufferManager struct {
	mu      sync.Mutex
	cfg     jitterbuffer.Config
	buffers map[uint32]*jitterbuffer.JitterBuffer
	sink    jitterbuffer.TelemetrySink
}

var jitterBufferManager = &JitterBufferManager{
	cfg:     jitterbuffer.DefaultConfig(),
	buffers: make(map[uint32]*jitterbuffer.JitterBuffer),
	sink:    jitterbuffer.NewChannelSink(512, func() { IncrementErrorMetric("telemetry_drop") }),
}

// GetOrCreateJitterBuffer returns the jitter buffer for ssrc, creating one
// under the manager's current configuration if this is the first frame
// seen for that source.
func (m *JitterBufferManager) GetOrCreateJitterBuffer(ssrc uint32) *jitterbuffer.JitterBuffer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buffers[ssrc]; ok {
		return b
	}
	b := jitterbuffer.New(m.cfg, m.sink)
	m.buffers[ssrc] = b
	log.Printf("🔊 Jitter buffer created for SSRC %d (depth %d/%d/%d frames)",
		ssrc, m.cfg.MinDepth, m.cfg.InitDepth, m.cfg.MaxDepth)
	return b
}

// RemoveJitterBuffer drops the buffer for a torn-down SSRC.
func (m *JitterBufferManager) RemoveJitterBuffer(ssrc uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, ssrc)
}

// Events exposes the manager's shared telemetry channel for a drain
// goroutine (RTCP-XR, metrics, database sink) to range over.
func (m *JitterBufferManager) Events() <-chan jitterbuffer.Event {
	if cs, ok := m.sink.(*jitterbuffer.ChannelSink); ok {
		return cs.Events()
	}
	return nil
}

func (m *JitterBufferManager) applySettings(settings JitterBufferSettings) {
	m.mu.Lock()
	cfg := jitterbuffer.Config{
		InitDepth:          settings.InitDepth,
		MinDepth:           settings.MinDepth,
		MaxDepth:           settings.MaxDepth,
		IncThresholdMs:     settings.IncThresholdMs,
		DecThresholdMs:     settings.DecThresholdMs,
		StepSize:           settings.StepSize,
		ZValue:             settings.ZValue,
		IgnoreSidForJitter: settings.IgnoreSidForJitter,
	}
	m.cfg = cfg
	buffers := make([]*jitterbuffer.JitterBuffer, 0, len(m.buffers))
	for _, b := range m.buffers {
		buffers = append(buffers, b)
	}
	m.mu.Unlock()

	for _, b := range buffers {
		b.SetBufferSize(cfg.InitDepth, cfg.MinDepth, cfg.MaxDepth)
		b.SetJitterOptions(cfg.IncThresholdMs, cfg.DecThresholdMs, cfg.StepSize, cfg.ZValue)
		b.SetIgnoreSidForJitter(cfg.IgnoreSidForJitter)
	}
}

// updateJitterBufferSettings is invoked from ApplyNewConfig whenever the
// configuration file changes.
func updateJitterBufferSettings(settings JitterBufferSettings) {
	log.Printf("🔄 Updating jitter buffer settings: depth=%d/%d/%d inc=%dms dec=%dms",
		settings.MinDepth, settings.InitDepth, settings.MaxDepth,
		settings.IncThresholdMs, settings.DecThresholdMs)
	jitterBufferManager.applySettings(settings)
}
