package internal

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Global variables for PCAP file handling
var (
	pcapFile   *os.File
	pcapWriter *pcapgo.Writer

	capturedSSRCsMu sync.Mutex
	capturedSSRCs   = make(map[uint32]bool)
)

// InitPCAPCapture initializes packet capture and creates a PCAP file
func InitPCAPCapture() {
	var err error
	pcapFile, err = os.Create("logs/karl_capture.pcap")
	if err != nil {
		log.Fatalf("Failed to create PCAP file: %v", err)
	}

	pcapWriter = pcapgo.NewWriter(pcapFile)
	pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet)

	log.Println("Packet capture initialized: logs/karl_capture.pcap")
}

// CapturePacket writes an RTP packet to the PCAP file
func CapturePacket(packet []byte) {
	if pcapWriter == nil {
		return
	}

	pcapWriter.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(packet),
		Length:        len(packet),
	}, packet)
}

// EnableSSRCCapture restricts CaptureSSRCPacket to the given synchronization
// sources, letting an operator pcap a single troublesome jitter buffer
// session out of a server handling many concurrent calls.
func EnableSSRCCapture(ssrcs ...uint32) {
	capturedSSRCsMu.Lock()
	defer capturedSSRCsMu.Unlock()
	for _, ssrc := range ssrcs {
		capturedSSRCs[ssrc] = true
	}
}

// DisableSSRCCapture removes an SSRC from the capture filter.
func DisableSSRCCapture(ssrc uint32) {
	capturedSSRCsMu.Lock()
	defer capturedSSRCsMu.Unlock()
	delete(capturedSSRCs, ssrc)
}

// CaptureSSRCPacket writes packet to the PCAP file only if ssrc is in the
// active capture filter, or the filter is empty (capture-all).
func CaptureSSRCPacket(ssrc uint32, packet []byte) {
	capturedSSRCsMu.Lock()
	filtered := len(capturedSSRCs) > 0 && !capturedSSRCs[ssrc]
	capturedSSRCsMu.Unlock()

	if filtered {
		return
	}
	CapturePacket(packet)
}

// ClosePCAPCapture properly closes the PCAP file
func ClosePCAPCapture() {
	if pcapFile != nil {
		pcapFile.Close()
		log.Println("PCAP capture file closed.")
	}
}
