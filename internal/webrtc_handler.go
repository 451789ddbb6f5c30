package internal

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v3"
)

var sessions int32

var (
	reconnectMu       sync.Mutex
	reconnectCallback func()
)

// SetReconnectCallback registers the function invoked when a WebRTC session
// transitions to Failed. The root server uses this to tear down and recreate
// the session rather than leaving a dead PeerConnection in place.
func SetReconnectCallback(cb func()) {
	reconnectMu.Lock()
	defer reconnectMu.Unlock()
	reconnectCallback = cb
}

// StartWebRTCSession initializes a new WebRTC PeerConnection and hooks every
// inbound audio track into its own jitter buffer. DTLS/SRTP key exchange and
// ICE candidate gathering are handled inside the pion PeerConnection; this
// package treats both as interface-level collaborators rather than
// reimplementing them.
func StartWebRTCSession() (*webrtc.PeerConnection, error) {
	configMutex.RLock()
	if !config.WebRTC.Enabled {
		configMutex.RUnlock()
		return nil, fmt.Errorf("WebRTC is disabled in configuration")
	}
	stunServers := config.WebRTC.StunServers
	turnServers := config.WebRTC.TurnServers
	configMutex.RUnlock()

	var iceServers []webrtc.ICEServer
	for _, stun := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{stun}})
	}
	for _, turn := range turnServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{turn.URL},
			Username:   turn.Username,
			Credential: turn.Credential,
		})
	}

	webrtcConfig := webrtc.Configuration{
		ICEServers: iceServers,
	}

	peerConnection, err := webrtc.NewPeerConnection(webrtcConfig)
	if err != nil {
		log.Printf("Failed to create WebRTC session: %v", err)
		return nil, err
	}

	peerConnection.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Printf("New track received: %s (ID: %s)", track.Codec().MimeType, track.ID())

		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}

		// Every inbound audio track gets its own jitter buffer, paced out to
		// the decoder on the strict 20ms playout cadence. Loss, reorder and
		// DTX telemetry flow out through the same RTCP-XR/metrics path the
		// RTP-transport ingestion uses.
		jbCtx, cancel := context.WithCancel(context.Background())
		go func() {
			defer cancel()
			RunWebRTCAudioJitterBuffer(jbCtx, track, decodeJitterBufferFrame)
		}()
	})

	peerConnection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		log.Printf("New ICE candidate: %s", candidate.ToJSON().Candidate)
		if mgr := getActiveICEManager(); mgr != nil {
			mgr.RecordCandidate(candidate)
		}
	})

	peerConnection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("WebRTC connection state changed to: %s", state.String())

		switch state {
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
			atomic.AddInt32(&sessions, -1)
			SetActiveSessions(int(atomic.LoadInt32(&sessions)))
			if state == webrtc.PeerConnectionStateFailed {
				reconnectMu.Lock()
				cb := reconnectCallback
				reconnectMu.Unlock()
				if cb != nil {
					go cb()
				}
			}
		case webrtc.PeerConnectionStateConnected:
			atomic.AddInt32(&sessions, 1)
			SetActiveSessions(int(atomic.LoadInt32(&sessions)))
		}
	})

	log.Println("WebRTC session initialized successfully")
	return peerConnection, nil
}

// HandleWebRTCOffer processes a WebRTC SDP offer and returns an SDP answer
func HandleWebRTCOffer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	peerConnection, err := StartWebRTCSession()
	if err != nil {
		return nil, err
	}

	err = peerConnection.SetRemoteDescription(offer)
	if err != nil {
		log.Printf("Failed to set remote SDP offer: %v", err)
		return nil, err
	}

	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		log.Printf("Failed to create SDP answer: %v", err)
		return nil, err
	}

	err = peerConnection.SetLocalDescription(answer)
	if err != nil {
		log.Printf("Failed to set local SDP answer: %v", err)
		return nil, err
	}

	log.Println("Generated SDP answer for WebRTC session")
	return &answer, nil
}

// GetActiveSessionCount returns the number of active WebRTC sessions
func GetActiveSessionCount() int32 {
	return atomic.LoadInt32(&sessions)
}
