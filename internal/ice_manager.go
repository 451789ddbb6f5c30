package internal

import (
	"log"
	"sync"

	"github.com/pion/webrtc/v3"
)

// ICEManager tracks the ICE servers configured for a session and the best
// candidate pion's own ICE agent has reported for it. ICE negotiation itself
// is entirely pion's PeerConnection's job; this type is the interface-level
// collaborator the jitter buffer domain observes it through, not a second
// ICE implementation running alongside it.
type ICEManager struct {
	servers []webrtc.ICEServer
	best    *webrtc.ICECandidate
	mu      sync.Mutex
}

// NewICEManager records the ICE servers a session was configured with.
func NewICEManager(iceServers []webrtc.ICEServer) (*ICEManager, error) {
	log.Printf("🌍 ICE manager tracking %d configured server(s)", len(iceServers))
	return &ICEManager{servers: iceServers}, nil
}

// RecordCandidate updates the best-known candidate for this session from a
// real candidate pion's PeerConnection reported via OnICECandidate.
func (i *ICEManager) RecordCandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.best == nil || candidate.Priority > i.best.Priority {
		i.best = candidate
		log.Printf("⭐ New best ICE candidate: %s:%d (priority %d)", candidate.Address, candidate.Port, candidate.Priority)
	}
}

// BestCandidate returns the highest-priority candidate seen so far, or nil
// if none has been reported yet.
func (i *ICEManager) BestCandidate() *webrtc.ICECandidate {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.best
}

// Servers returns the ICE servers this manager was configured with.
func (i *ICEManager) Servers() []webrtc.ICEServer {
	return i.servers
}

var (
	activeICEManagerMu sync.Mutex
	activeICEManager   *ICEManager
)

// SetActiveICEManager registers the ICEManager that StartWebRTCSession's
// OnICECandidate handler reports candidates to.
func SetActiveICEManager(m *ICEManager) {
	activeICEManagerMu.Lock()
	defer activeICEManagerMu.Unlock()
	activeICEManager = m
}

func getActiveICEManager() *ICEManager {
	activeICEManagerMu.Lock()
	defer activeICEManagerMu.Unlock()
	return activeICEManager
}
