package p2p

import (
	"fmt"
	"sync"
	"time"

	"github.com/nodechain/nodechain/pkg/logger"
)

// refreshInterval is how often the refresh loop ticks.
const refreshInterval = 10 * time.Second

// staleTicks is the tick count at which a peer is considered overdue
// for a fresh peers exchange (~30s without one at refreshInterval=10s).
const staleTicks = 3

type peerInfo struct {
	send chan<- ConnectionResponse
	tick int
}

// PeerManager is an address-keyed registry of connected peers and their
// outbound response channels.
type PeerManager struct {
	mu    sync.RWMutex
	peers map[string]*peerInfo
	log   *logger.Logger
}

// NewPeerManager returns an empty registry.
func NewPeerManager() *PeerManager {
	return &PeerManager{
		peers: make(map[string]*peerInfo),
		log:   logger.Default().WithPrefix("peers"),
	}
}

// Insert registers a new peer's outbound channel.
func (m *PeerManager) Insert(addr string, send chan<- ConnectionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[addr] = &peerInfo{send: send}
}

// Remove drops a peer's registration.
func (m *PeerManager) Remove(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, addr)
}

// Contains reports whether addr is a currently registered peer.
func (m *PeerManager) Contains(addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.peers[addr]
	return ok
}

// Send enqueues a response to one peer; returns an error if addr is
// unknown or its channel is full.
func (m *PeerManager) Send(addr string, resp ConnectionResponse) error {
	m.mu.RLock()
	p, ok := m.peers[addr]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("p2p: %s not in peer manager", addr)
	}
	select {
	case p.send <- resp:
		return nil
	default:
		return fmt.Errorf("p2p: response queue full for %s", addr)
	}
}

// Broadcast best-effort enqueues a response to every peer, returning the
// addresses whose queue rejected the send.
func (m *PeerManager) Broadcast(resp ConnectionResponse) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var failed []string
	for addr, p := range m.peers {
		select {
		case p.send <- resp:
		default:
			m.log.Warn("unable to send to %s: queue full", addr)
			failed = append(failed, addr)
		}
	}
	return failed
}

// GetPeers snapshots every registered address, for gossip.
func (m *PeerManager) GetPeers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.peers))
	for addr := range m.peers {
		out = append(out, addr)
	}
	return out
}

// ResetTick zeroes a peer's refresh counter, called when a fresh peers
// exchange with it just completed.
func (m *PeerManager) ResetTick(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[addr]; ok {
		p.tick = 0
	}
}

// RunRefreshLoop increments every peer's tick every refreshInterval; any
// peer reaching staleTicks is sent GetPeers and its tick resets. It
// blocks; callers run it in its own goroutine.
func (m *PeerManager) RunRefreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for range ticker.C {
		stale := m.incrementTicks()
		if len(stale) == 0 {
			continue
		}
		payload, err := GetPeers().Encode()
		if err != nil {
			m.log.Error("encode GetPeers: %v", err)
			continue
		}
		for _, addr := range stale {
			if err := m.Send(addr, ConnectionResponse{Kind: Message, Payload: payload}); err != nil {
				m.log.Warn("refresh send to %s: %v", addr, err)
				continue
			}
			m.ResetTick(addr)
		}
	}
}

func (m *PeerManager) incrementTicks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []string
	for addr, p := range m.peers {
		p.tick++
		if p.tick >= staleTicks {
			stale = append(stale, addr)
		}
	}
	return stale
}
