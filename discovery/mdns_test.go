package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestStartBroadcasterBuildsExpectedTXTRecords(t *testing.T) {
	var (
		gotInstance string
		gotService  string
		gotDomain   string
		gotPort     int
		gotTXT      []string
	)

	cfg := Config{
		SelfDeviceID:   "device-123",
		DeviceName:     "Alice Laptop",
		ListeningPort:  9999,
		KeyFingerprint: "fp-abc",
		Capabilities:   0x5,
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance = instance
			gotService = service
			gotDomain = domain
			gotPort = port
			gotTXT = append([]string(nil), text...)
			return nil, nil
		},
	}

	broadcaster, err := StartBroadcaster(cfg)
	if err != nil {
		t.Fatalf("StartBroadcaster failed: %v", err)
	}
	if broadcaster == nil {
		t.Fatalf("expected broadcaster instance")
	}

	if gotInstance != "Alice Laptop" {
		t.Fatalf("unexpected instance name: %q", gotInstance)
	}
	if gotService != DefaultService {
		t.Fatalf("unexpected service: %q", gotService)
	}
	if gotDomain != DefaultDomain {
		t.Fatalf("unexpected domain: %q", gotDomain)
	}
	if gotPort != 9999 {
		t.Fatalf("unexpected port: %d", gotPort)
	}

	assertContainsTXT(t, gotTXT, "device_id=device-123")
	assertContainsTXT(t, gotTXT, "version=1")
	assertContainsTXT(t, gotTXT, "key_fingerprint=fp-abc")
	assertContainsTXT(t, gotTXT, "capabilities=5")
}

func TestStartBroadcasterRejectsMissingFields(t *testing.T) {
	if _, err := StartBroadcaster(Config{DeviceName: "x", ListeningPort: 1}); err == nil {
		t.Fatalf("expected error for missing SelfDeviceID")
	}
	if _, err := StartBroadcaster(Config{SelfDeviceID: "x", ListeningPort: 1}); err == nil {
		t.Fatalf("expected error for missing DeviceName")
	}
	if _, err := StartBroadcaster(Config{SelfDeviceID: "x", DeviceName: "x"}); err == nil {
		t.Fatalf("expected error for missing ListeningPort")
	}
}

func TestServiceStartAndStop(t *testing.T) {
	cfg := Config{
		SelfDeviceID:  "self",
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

	svc, err := Start(cfg)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if svc.Broadcaster == nil || svc.Scanner == nil {
		t.Fatalf("expected broadcaster and scanner")
	}
	svc.Stop()
}

func TestConfigWithDefaultsFillsZeroFields(t *testing.T) {
	cfg := Config{}
	withDefaults := cfg.withDefaults()

	if withDefaults.Service != DefaultService {
		t.Fatalf("expected default service, got %q", withDefaults.Service)
	}
	if withDefaults.Domain != DefaultDomain {
		t.Fatalf("expected default domain, got %q", withDefaults.Domain)
	}
	if withDefaults.Version != DefaultVersion {
		t.Fatalf("expected default version, got %d", withDefaults.Version)
	}
	if withDefaults.RefreshInterval != DefaultRefreshInterval {
		t.Fatalf("expected default refresh interval, got %s", withDefaults.RefreshInterval)
	}
	if withDefaults.ScanTimeout != DefaultScanTimeout {
		t.Fatalf("expected default scan timeout, got %s", withDefaults.ScanTimeout)
	}
	if withDefaults.TTL != DefaultTTL {
		t.Fatalf("expected default TTL %d, got %d", DefaultTTL, withDefaults.TTL)
	}
	if withDefaults.registerFn == nil {
		t.Fatalf("expected registerFn to default to zeroconf.Register")
	}
}

func assertContainsTXT(t *testing.T, txt []string, expected string) {
	t.Helper()
	for _, v := range txt {
		if v == expected {
			return
		}
	}
	t.Fatalf("missing TXT record %q in %v", expected, txt)
}
