package internal

import (
	"testing"

	"github.com/pion/rtp"

	"karl/internal/jitterbuffer"
)

func TestClassifyDataTypeNormal(t *testing.T) {
	pkt := &rtp.Packet{
		Header:  rtp.Header{PayloadType: 0, SequenceNumber: 100},
		Payload: []byte{1, 2, 3, 4},
	}
	if got := classifyDataType(pkt); got != jitterbuffer.DataTypeNormal {
		t.Fatalf("classifyDataType() = %v, want DataTypeNormal", got)
	}
}

func TestClassifyDataTypeNoData(t *testing.T) {
	pkt := &rtp.Packet{Header: rtp.Header{PayloadType: 0}, Payload: nil}
	if got := classifyDataType(pkt); got != jitterbuffer.DataTypeNoData {
		t.Fatalf("classifyDataType() = %v, want DataTypeNoData", got)
	}
}

func TestClassifyDataTypeSID(t *testing.T) {
	pkt := &rtp.Packet{
		Header:  rtp.Header{PayloadType: audioPayloadTypeSID},
		Payload: []byte{0x2A},
	}
	if got := classifyDataType(pkt); got != jitterbuffer.DataTypeSID {
		t.Fatalf("classifyDataType() = %v, want DataTypeSID", got)
	}
}

func TestClassifyDataTypeLargeSIDPayloadTypeIsNormal(t *testing.T) {
	// A payload type collision with the SID default shouldn't misclassify a
	// full-size voice frame just because it happens to share the PT number.
	pkt := &rtp.Packet{
		Header:  rtp.Header{PayloadType: audioPayloadTypeSID},
		Payload: make([]byte, 160),
	}
	if got := classifyDataType(pkt); got != jitterbuffer.DataTypeNormal {
		t.Fatalf("classifyDataType() = %v, want DataTypeNormal", got)
	}
}

func TestPacketToFrame(t *testing.T) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			SequenceNumber: 42,
			Timestamp:      8000,
			Marker:         true,
			PayloadType:    0,
		},
		Payload: []byte{9, 9, 9},
	}

	f := packetToFrame(pkt)

	if f.SeqNum != 42 {
		t.Errorf("SeqNum = %d, want 42", f.SeqNum)
	}
	if f.RTPTimestamp != 8000 {
		t.Errorf("RTPTimestamp = %d, want 8000", f.RTPTimestamp)
	}
	if !f.Mark {
		t.Errorf("Mark = false, want true")
	}
	if f.DataType != jitterbuffer.DataTypeNormal {
		t.Errorf("DataType = %v, want DataTypeNormal", f.DataType)
	}
	if len(f.Payload) != 3 {
		t.Errorf("Payload len = %d, want 3", len(f.Payload))
	}
}
