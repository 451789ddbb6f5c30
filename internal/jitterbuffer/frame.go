// Package jitterbuffer implements the audio receive jitter buffer of the
// Karl media engine: the component that reorders, deduplicates and paces
// out RTP-carried audio frames on a strict 20 ms playout cadence.
package jitterbuffer

// Subtype tags a Frame with control metadata distinct from its codec payload
// type. SubtypeRefreshed signals an SSRC change delivered in-band.
type Subtype int

const (
	SubtypeUndefined Subtype = iota
	SubtypeRefreshed
)

// DataType classifies a Frame's payload for DTX handling.
type DataType int

const (
	DataTypeNormal DataType = iota
	DataTypeSID
	DataTypeNoData
)

func (d DataType) String() string {
	switch d {
	case DataTypeSID:
		return "SID"
	case DataTypeNoData:
		return "NO_DATA"
	default:
		return "NORMAL"
	}
}

// Frame is an immutable record of one de-packetized audio frame as handed to
// the buffer by the RTP depacketizer. RTPTimestamp and SeqNum wrap at their
// native bit widths; comparisons against them must always go through the
// wrap-aware helpers in wrap.go rather than plain arithmetic.
type Frame struct {
	Subtype      Subtype
	Payload      []byte
	RTPTimestamp uint32
	Mark         bool
	SeqNum       uint16
	DataType     DataType

	// ArrivalTimeMs is the producer-captured monotonic millisecond clock
	// reading for this frame. Add overwrites it with its own parameter,
	// so callers constructing a Frame for Add need not set it.
	ArrivalTimeMs uint32

	// SSRC carries the new synchronization source on a SubtypeRefreshed
	// marker frame; zero and unused otherwise.
	SSRC uint32
}

// IsRefreshMarker reports whether this Frame exists only to signal an SSRC
// change rather than carrying media.
func (f Frame) IsRefreshMarker() bool {
	return f.Subtype == SubtypeRefreshed
}
