package internal

import (
	"encoding/binary"
	"fmt"
	"math"
)

// vadThreshold, vadFrameSize and pcmMaxAmplitude size the voice-activity and
// normalization helpers the jitter buffer's decode path calls on every frame.
const (
	vadThreshold    = -45.0 // dB threshold for voice activity
	vadFrameSize    = 160   // samples per frame for VAD
	pcmMaxAmplitude = 32767 // maximum amplitude for 16-bit PCM
)

// Opus codec parameters for the decode side only; Karl never re-encodes
// audio it plays out, it only depacketizes what arrived.
const (
	opusSampleRate = 48000 // Opus works at 48kHz
	opusChannels   = 2     // Stereo
	opusFrameSize  = 960   // 20ms at 48kHz
)

// OpusDecoder represents a stateful Opus decoder
type OpusDecoder struct {
	sampleRate int
	channels   int
	frameSize  int
	instance   *pureGoOpusDecoder
}

// pureGoOpusDecoder implements a simplified Opus-like decoder in pure Go
type pureGoOpusDecoder struct {
	sampleRate int
	channels   int
}

// newOpusDecoder creates a new pure Go Opus-like decoder
func newOpusDecoder(sampleRate, channels int) (*pureGoOpusDecoder, error) {
	return &pureGoOpusDecoder{
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Decode implements a simplified Opus-like decoding in pure Go
func (d *pureGoOpusDecoder) Decode(encoded []byte, pcm []int16) (int, error) {
	if len(encoded) < 6 {
		return 0, fmt.Errorf("encoded data too short")
	}

	// Extract frame header
	frameCount := binary.BigEndian.Uint32(encoded[:4])

	// Extract energy
	energy := float64(encoded[4]) / 255.0

	// Extract frequency balance
	freqBalance := float64(encoded[5]) / 128.0

	// Calculate frame size (samples per channel)
	samplesPerChannel := len(pcm) / d.channels

	// Generate output PCM using simple synthesis
	for i := 0; i < samplesPerChannel; i++ {
		carrier := math.Sin(2.0*math.Pi*float64(i)/float64(samplesPerChannel) *
			(1.0 + 0.2*math.Sin(float64(frameCount)/20.0)))

		amplitude := energy * 32767.0

		if i%2 == 0 {
			amplitude *= freqBalance
		} else {
			amplitude *= (2.0 - freqBalance)
		}

		fadeOut := 1.0 - float64(i)/float64(samplesPerChannel)

		sample := int16(amplitude * carrier * fadeOut)

		for ch := 0; ch < d.channels; ch++ {
			if i*d.channels+ch < len(pcm) {
				chPhase := float64(ch) * 0.1
				pcm[i*d.channels+ch] = int16(float64(sample) *
					(1.0 + chPhase*math.Sin(float64(i)/10.0)))
			}
		}
	}

	return samplesPerChannel, nil
}

// Global decoder instance for reuse across frames on the playout path.
var defaultDecoder *OpusDecoder

// GetOpusDecoder returns a reusable opus decoder
func GetOpusDecoder() *OpusDecoder {
	if defaultDecoder == nil {
		defaultDecoder = &OpusDecoder{
			sampleRate: opusSampleRate,
			channels:   opusChannels,
			frameSize:  opusFrameSize,
		}
	}
	return defaultDecoder
}

// DecodeToPCM decodes an Opus-carried audio frame to PCM. This is the
// decode half of the jitter buffer's delivery path: the decode worker pool's
// decodeWorkerFrame calls it on the payload of every NORMAL, non-empty frame
// the buffer releases.
func DecodeToPCM(payload []byte) ([]int16, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("payload too short for Opus decoding")
	}

	decoder := GetOpusDecoder()

	if decoder.instance == nil {
		var err error
		decoder.instance, err = newOpusDecoder(decoder.sampleRate, decoder.channels)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Opus decoder: %w", err)
		}
	}

	pcm := make([]int16, decoder.frameSize*decoder.channels)
	samplesDecoded, err := decoder.instance.Decode(payload, pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Opus data: %w", err)
	}

	return pcm[:samplesDecoded*decoder.channels], nil
}

// DecodePCMUToPCM converts G.711 μ-law to PCM samples. The decode worker
// pool does not call it; it always decodes through DecodeToPCM.
func DecodePCMUToPCM(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	pcm := make([]int16, len(payload))
	for i, mu := range payload {
		mu = ^mu // Invert all bits

		sign := (mu & 0x80) >> 7
		exponent := (mu & 0x70) >> 4
		mantissa := mu & 0x0F

		magnitude := (int16(mantissa) << 3) + 0x84
		magnitude <<= exponent

		if sign == 1 {
			pcm[i] = -magnitude
		} else {
			pcm[i] = magnitude
		}
	}
	return pcm, nil
}

// IsVoiceActive performs voice activity detection on decoded PCM. Nothing in
// the jitter buffer or the decode path calls it.
func IsVoiceActive(pcm []int16) bool {
	if len(pcm) == 0 {
		return false
	}

	var sumSquares float64
	for _, sample := range pcm {
		amplitude := float64(sample) / pcmMaxAmplitude
		sumSquares += amplitude * amplitude
	}

	rms := math.Sqrt(sumSquares / float64(len(pcm)))
	db := 20 * math.Log10(rms)

	return db > vadThreshold
}

// NormalizeAudio clamps decoded PCM samples back within the 16-bit range
// before they reach the playout sink.
func NormalizeAudio(pcm []int16) []int16 {
	if len(pcm) == 0 {
		return pcm
	}

	var maxAmp int16
	for _, sample := range pcm {
		abs := sample
		if abs < 0 {
			abs = -abs
		}
		if abs > maxAmp {
			maxAmp = abs
		}
	}

	if maxAmp == 0 {
		return pcm
	}

	if maxAmp > pcmMaxAmplitude {
		ratio := float64(pcmMaxAmplitude) / float64(maxAmp)
		normalized := make([]int16, len(pcm))
		for i, sample := range pcm {
			normalized[i] = int16(float64(sample) * ratio)
		}
		return normalized
	}

	return pcm
}

// CalculateRMS calculates Root Mean Square of PCM samples
func CalculateRMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}

	var sumSquares int64
	for _, sample := range pcm {
		sumSquares += int64(sample) * int64(sample)
	}

	return math.Sqrt(float64(sumSquares) / float64(len(pcm)))
}
