package main

import (
	"fmt"
	"log"

	"karl/internal"

	"github.com/pion/webrtc/v3"
)

// startWebRTC initializes and starts the WebRTC service. All callback
// wiring, including the per-track jitter buffer hookup, lives inside
// internal.StartWebRTCSession so there is exactly one place that registers
// OnTrack/OnICECandidate/OnConnectionStateChange for a session.
func (k *KarlServer) startWebRTC() error {
	k.mu.RLock()
	config := k.config
	k.mu.RUnlock()

	if !config.WebRTC.Enabled {
		log.Println("⚠️ WebRTC is disabled in configuration")
		return nil
	}

	log.Println("🎬 Initializing WebRTC...")

	var iceServers []webrtc.ICEServer
	for _, stun := range config.WebRTC.StunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{stun}})
	}
	for _, turn := range config.WebRTC.TurnServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       []string{turn.URL},
			Username:   turn.Username,
			Credential: turn.Credential,
		})
	}

	k.mu.Lock()
	var err error
	k.iceManager, err = internal.NewICEManager(iceServers)
	k.mu.Unlock()
	if err != nil {
		return fmt.Errorf("❌ Failed to initialize ICE Manager: %w", err)
	}
	internal.SetActiveICEManager(k.iceManager)

	internal.SetReconnectCallback(k.handleWebRTCReconnect)

	k.mu.Lock()
	k.webrtcSession, err = internal.StartWebRTCSession()
	k.mu.Unlock()
	if err != nil {
		return fmt.Errorf("❌ Failed to start WebRTC session: %w", err)
	}

	log.Println("✅ WebRTC initialized successfully")
	return nil
}

// handleWebRTCReconnect tears down and recreates the WebRTC session. Wired
// into internal.SetReconnectCallback, it fires when a session's connection
// state goes Failed. The replacement session registers its own callbacks
// through StartWebRTCSession, so every track it receives gets a fresh
// jitter buffer.
func (k *KarlServer) handleWebRTCReconnect() {
	k.mu.RLock()
	if k.isShuttingDown {
		k.mu.RUnlock()
		return
	}
	k.mu.RUnlock()

	log.Println("🔄 Reconnecting WebRTC session...")

	newSession, err := internal.StartWebRTCSession()
	if err != nil {
		log.Printf("❌ Failed to create new WebRTC session: %v", err)
		return
	}

	k.mu.Lock()
	oldSession := k.webrtcSession
	k.webrtcSession = newSession
	k.mu.Unlock()

	if oldSession != nil {
		if err := oldSession.Close(); err != nil {
			log.Printf("⚠️ Error closing old WebRTC session: %v", err)
		}
	}
}
