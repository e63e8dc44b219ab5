package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"seadrop/device"
	"seadrop/statemachine"
)

func TestNetBridgeDispatchesPeerSeenAndLost(t *testing.T) {
	peerHex := "11" + hexZeros(62)

	var browseCalls int
	cfg := Config{
		SelfDeviceID:    "self-device",
		DeviceName:      "Self",
		ListeningPort:   9999,
		RefreshInterval: 30 * time.Millisecond,
		ScanTimeout:     20 * time.Millisecond,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, nil
		},
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			browseCalls++
			if browseCalls == 1 {
				entries <- &zeroconf.ServiceEntry{
					ServiceRecord: zeroconf.ServiceRecord{Instance: "Peer", Service: DefaultService, Domain: DefaultDomain},
					HostName:      "peer.local",
					Port:          1234,
					Text: []string{
						"device_id=" + peerHex,
						"version=1",
						"capabilities=4",
					},
					AddrIPv4: []net.IP{net.ParseIP("10.0.0.9")},
				}
			}
			<-ctx.Done()
			return nil
		},
	}

	bridge := NewNetBridge(cfg)

	seen := make(chan PeerSeen, 4)
	lost := make(chan PeerLost, 4)
	bridge.OnPeerSeen(func(p PeerSeen) { seen <- p })
	bridge.OnPeerLost(func(p PeerLost) { lost <- p })

	if err := bridge.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Stop()

	if bridge.State() != statemachine.DiscoveryActive {
		t.Fatalf("state = %s, want Active", bridge.State())
	}

	var got PeerSeen
	select {
	case got = <-seen:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for PeerSeen")
	}

	wantID, ok := device.IDFromHex(peerHex)
	if !ok {
		t.Fatalf("bad test setup: invalid hex id")
	}
	if got.DeviceID != wantID {
		t.Fatalf("unexpected device id: %s", got.DeviceID)
	}
	if got.RSSI != RSSIUnavailable {
		t.Fatalf("expected RSSIUnavailable sentinel, got %d", got.RSSI)
	}
	if got.Capabilities != 4 {
		t.Fatalf("expected capabilities 4, got %d", got.Capabilities)
	}

	peers := bridge.KnownPeers()
	if len(peers) != 1 {
		t.Fatalf("expected one known peer, got %d", len(peers))
	}
}

func TestNetBridgeStopReturnsToIdle(t *testing.T) {
	cfg := Config{
		SelfDeviceID:  "self-device",
		DeviceName:    "Self",
		ListeningPort: 9999,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			return nil, nil
		},
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			<-ctx.Done()
			return nil
		},
	}

	bridge := NewNetBridge(cfg)
	if err := bridge.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bridge.Stop()

	if bridge.State() != statemachine.DiscoveryIdle {
		t.Fatalf("state = %s, want Idle", bridge.State())
	}
}

func hexZeros(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = '0'
	}
	return string(out)
}
