package internal

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"

	"karl/internal/jitterbuffer"
)

// jitterBufferStallTicks is the number of consecutive empty 20ms playout
// ticks (1 second) that mark a jitter buffer as stalled rather than merely
// between talkspurts.
const jitterBufferStallTicks = 50

// audioPayloadTypeSID marks SID (silence insertion descriptor) comfort-noise
// frames per RFC 3389: a single-octet RTP payload carrying the noise level.
// Real deployments negotiate this via SDP (fmtp); this is the common default.
const audioPayloadTypeSID = 13

// classifyDataType infers a jitterbuffer.DataType from an RTP packet the
// way the depacketizer would: an empty payload is a DTX gap, a payload of at
// most two bytes on the SID payload type is comfort noise, anything else is
// a normal voice frame.
func classifyDataType(pkt *rtp.Packet) jitterbuffer.DataType {
	switch {
	case len(pkt.Payload) == 0:
		return jitterbuffer.DataTypeNoData
	case pkt.PayloadType == audioPayloadTypeSID && len(pkt.Payload) <= 2:
		return jitterbuffer.DataTypeSID
	default:
		return jitterbuffer.DataTypeNormal
	}
}

// packetToFrame converts a depacketized RTP packet into the Frame shape the
// jitter buffer consumes, decoupling it from pion's wire representation.
func packetToFrame(pkt *rtp.Packet) jitterbuffer.Frame {
	return jitterbuffer.Frame{
		Payload:      pkt.Payload,
		RTPTimestamp: pkt.Timestamp,
		Mark:         pkt.Marker,
		SeqNum:       pkt.SequenceNumber,
		DataType:     classifyDataType(pkt),
	}
}

// nowMonotonicMs returns a monotonic millisecond clock reading suitable for
// Frame.ArrivalTimeMs and JitterBuffer.Get's nowMs parameter.
func nowMonotonicMs() int64 {
	return time.Now().UnixMilli()
}

// IngestRTPPacket feeds one already-depacketized, already-decrypted RTP
// audio packet into the jitter buffer for its SSRC, creating that buffer on
// first sight of the source.
func IngestRTPPacket(pkt *rtp.Packet) {
	if pkt == nil {
		return
	}

	buf := jitterBufferManager.GetOrCreateJitterBuffer(pkt.SSRC)
	buf.Add(packetToFrame(pkt), uint32(nowMonotonicMs()))
}

// IngestSSRCRefresh signals the jitter buffer for ssrc that the media
// source has changed clock domains, e.g. on SDP renegotiation or an RTCP
// BYE/re-INVITE cycle that rekeys the stream without tearing down the call.
func IngestSSRCRefresh(oldSSRC, newSSRC uint32) {
	buf := jitterBufferManager.GetOrCreateJitterBuffer(oldSSRC)
	buf.Add(jitterbuffer.Frame{Subtype: jitterbuffer.SubtypeRefreshed, SSRC: newSSRC}, uint32(nowMonotonicMs()))
	jitterBufferManager.RemoveJitterBuffer(oldSSRC)
	DisableSSRCCapture(oldSSRC)
}

// RunAudioJitterBufferPlayout drains one SSRC's jitter buffer on the strict
// 20ms playout cadence and hands each delivered frame to decode. It blocks
// until ctx is cancelled.
func RunAudioJitterBufferPlayout(ctx context.Context, ssrc uint32, decode func(uint32, jitterbuffer.GetResult)) {
	buf := jitterBufferManager.GetOrCreateJitterBuffer(ssrc)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	log.Printf("🔊 Audio jitter buffer playout started for SSRC %d", ssrc)

	var emptyTicks int
	for {
		select {
		case <-ctx.Done():
			log.Printf("🛑 Audio jitter buffer playout stopped for SSRC %d", ssrc)
			return
		case <-ticker.C:
			result := buf.Get(nowMonotonicMs())
			if result.Delivered {
				emptyTicks = 0
				if decode != nil {
					decode(ssrc, result)
				}
				continue
			}

			emptyTicks++
			if emptyTicks == jitterBufferStallTicks {
				err := NewError(fmt.Errorf("no frames delivered in %d ticks", emptyTicks),
					ErrCodeJitterBufferStall, "rtpsource", "RunAudioJitterBufferPlayout").
					WithContext(fmt.Sprintf("ssrc=%d", ssrc))
				log.Printf("⚠️ %v", err)
				emptyTicks = 0
			}
		}
	}
}

// decodeJitterBufferFrame is the default consumer wired to both the RTP and
// WebRTC audio receive paths: it hands every delivered frame off to the
// decode worker pool, whose decodeWorkerFrame skips SID/NO_DATA and
// empty-payload frames (comfort noise carries no codec payload to decode).
// Handing it to the pool rather than decoding
// inline keeps a burst across many SSRCs' 20ms ticks off any one playout
// goroutine.
func decodeJitterBufferFrame(ssrc uint32, result jitterbuffer.GetResult) {
	SubmitDecodeJob(result, ssrc)
}

// RunWebRTCAudioJitterBuffer reads RTP packets off a remote audio track,
// feeds them through the jitter buffer for that track's SSRC, and drains
// deliveries into decode on the 20ms playout tick. It blocks until ctx is
// cancelled or the track read loop errors out.
func RunWebRTCAudioJitterBuffer(ctx context.Context, track *webrtc.TrackRemote, decode func(uint32, jitterbuffer.GetResult)) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}

	ssrc := uint32(track.SSRC())
	go RunAudioJitterBufferPlayout(ctx, ssrc, decode)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Printf("❌ Audio track read error (SSRC=%d): %v", ssrc, err)
			IncrementErrorMetric(ErrCodeJitterBuffer)
			return
		}
		IngestRTPPacket(pkt)
	}
}
