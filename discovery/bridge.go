package discovery

import (
	"sync"
	"time"

	"seadrop/device"
	"seadrop/statemachine"
)

// PeerSeen is the payload of an on_peer_seen observation (spec §6: "the
// core consumes {peer_identity, rssi, last_seen} tuples" plus the
// capabilities the Hello handshake would otherwise have to carry). RSSI is
// mDNS-unavailable and always reported as RSSIUnavailable by this bridge —
// see NetBridge's doc comment.
type PeerSeen struct {
	DeviceID     device.ID
	Name         string
	RSSI         int
	Capabilities device.Capabilities
	LastSeen     time.Time
}

// PeerLost is the payload of an on_peer_lost observation.
type PeerLost struct {
	DeviceID device.ID
}

// RSSIUnavailable marks a PeerSeen whose RSSI has no meaningful value.
// mDNS carries no signal-strength information; callers that feed PeerSeen
// into distance.Engine should treat this sentinel as "no sample" rather
// than as a real, very-weak reading.
const RSSIUnavailable = -128

// NetBridge adapts the teacher's mDNS Service (mdns.go, peer_scanner.go) to
// the external Discovery-source shape spec §6 names: on_peer_seen /
// on_peer_lost callbacks driven by a state machine that tracks whether the
// bridge is advertising, scanning, or both. spec.md excludes the BLE radio
// stack itself; this bridge is one concrete, swappable way of satisfying
// the same interface over a LAN for local development and integration
// tests, not a BLE reimplementation.
type NetBridge struct {
	cfg     Config
	machine *statemachine.Machine

	mu      sync.Mutex
	svc     *Service
	onSeen  func(PeerSeen)
	onLost  func(PeerLost)
	known   map[device.ID]DiscoveredPeer
	stopped chan struct{}
}

// NewNetBridge builds a bridge in statemachine.DiscoveryUninitialized.
// Call OnPeerSeen / OnPeerLost before Start to avoid missing early events.
func NewNetBridge(cfg Config) *NetBridge {
	b := &NetBridge{
		cfg:     cfg,
		machine: statemachine.NewDiscoveryMachine(),
		known:   make(map[device.ID]DiscoveredPeer),
	}
	return b
}

// OnPeerSeen registers the on_peer_seen callback.
func (b *NetBridge) OnPeerSeen(fn func(PeerSeen)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSeen = fn
}

// OnPeerLost registers the on_peer_lost callback.
func (b *NetBridge) OnPeerLost(fn func(PeerLost)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onLost = fn
}

// State reports the bridge's current discovery state.
func (b *NetBridge) State() statemachine.State {
	return b.machine.State()
}

// Start transitions Uninitialized -> Idle -> Active, brings up mDNS
// broadcast and scanning, and begins translating PeerScanner events into
// on_peer_seen / on_peer_lost callbacks.
func (b *NetBridge) Start() error {
	if err := b.machine.Transition(statemachine.DiscoveryIdle); err != nil {
		return err
	}

	svc, err := Start(b.cfg)
	if err != nil {
		b.machine.ForceTransition(statemachine.DiscoveryError)
		return err
	}

	if err := b.machine.Transition(statemachine.DiscoveryActive); err != nil {
		svc.Stop()
		b.machine.ForceTransition(statemachine.DiscoveryError)
		return err
	}

	b.mu.Lock()
	b.svc = svc
	b.stopped = make(chan struct{})
	stopped := b.stopped
	b.mu.Unlock()

	go b.pump(svc.Scanner, stopped)
	return nil
}

// Stop tears down broadcast and scanning and returns the bridge to Idle.
func (b *NetBridge) Stop() {
	b.mu.Lock()
	svc := b.svc
	stopped := b.stopped
	b.svc = nil
	b.stopped = nil
	b.mu.Unlock()

	if svc == nil {
		return
	}
	svc.Stop()
	if stopped != nil {
		close(stopped)
	}
	_ = b.machine.Transition(statemachine.DiscoveryIdle)
}

// KnownPeers returns a snapshot of every peer the bridge currently
// considers present.
func (b *NetBridge) KnownPeers() []DiscoveredPeer {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DiscoveredPeer, 0, len(b.known))
	for _, p := range b.known {
		out = append(out, p)
	}
	return out
}

func (b *NetBridge) pump(scanner *PeerScanner, stopped chan struct{}) {
	for {
		select {
		case ev, ok := <-scanner.Events():
			if !ok {
				return
			}
			b.dispatch(ev)
		case <-stopped:
			return
		}
	}
}

func (b *NetBridge) dispatch(ev Event) {
	id, ok := device.IDFromHex(ev.Peer.DeviceID)
	if !ok {
		return
	}

	b.mu.Lock()
	switch ev.Type {
	case EventPeerUpserted:
		b.known[id] = ev.Peer
	case EventPeerRemoved:
		delete(b.known, id)
	}
	onSeen, onLost := b.onSeen, b.onLost
	b.mu.Unlock()

	switch ev.Type {
	case EventPeerUpserted:
		if onSeen != nil {
			onSeen(PeerSeen{
				DeviceID:     id,
				Name:         ev.Peer.DeviceName,
				RSSI:         RSSIUnavailable,
				Capabilities: device.Capabilities(ev.Peer.Capabilities),
				LastSeen:     ev.Peer.LastSeen,
			})
		}
	case EventPeerRemoved:
		if onLost != nil {
			onLost(PeerLost{DeviceID: id})
		}
	}
}
