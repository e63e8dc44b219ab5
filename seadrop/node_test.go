package seadrop

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seadrop/device"
	"seadrop/discovery"
	"seadrop/distance"
	"seadrop/protocol"
	"seadrop/storage"
	"seadrop/transfer"
)

func newTestNode(t *testing.T) (*Node, device.ID) {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := storage.Open(dataDir)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	_ = pub

	var localID device.ID
	localID[0] = 0xAA

	node, err := NewNode(Options{
		LocalID:    localID,
		SigningKey: priv,
		Store:      store,
		Discovery: discovery.Config{
			SelfDeviceID:  localID.String(),
			DeviceName:    "local",
			ListeningPort: 9999,
		},
		SaveDirectory: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	t.Cleanup(node.Stop)
	return node, localID
}

func TestNewNodeRejectsMissingFields(t *testing.T) {
	store, _, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer store.Close()

	_, err = NewNode(Options{Store: store})
	if err == nil {
		t.Fatalf("expected error for missing LocalID/SigningKey")
	}
}

func testSessionKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func peerIDWithByte(b byte) device.ID {
	var id device.ID
	id[0] = b
	return id
}

func TestAttachSessionTrackedUntrustedUntilTrusted(t *testing.T) {
	node, _ := newTestNode(t)
	peerID := peerIDWithByte(0x01)

	a, b := net.Pipe()
	defer b.Close()

	if err := node.AttachSession(peerID, a, testSessionKey()); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	if node.AutoPushEnabled(peerID) {
		t.Fatalf("expected auto-push disabled before trust/zone established")
	}
}

func TestHandleTransferRequestSurfacesWhenNotAutoAccepted(t *testing.T) {
	node, _ := newTestNode(t)
	peerID := peerIDWithByte(0x02)

	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	if err := node.AttachSession(peerID, local, testSessionKey()); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	remoteCh := transfer.NewChannel(remote, testSessionKey())
	defer remoteCh.Close()

	sender, err := transfer.NewSender(remoteCh)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "note.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	done := make(chan *transfer.TransferResult, 1)
	go func() {
		result, _ := sender.Send([]string{path}, transfer.SendOptions{})
		done <- result
	}()

	select {
	case ev := <-node.Events():
		if ev.Kind != EventTransferRequested {
			t.Fatalf("expected EventTransferRequested, got %s", ev.Kind)
		}
		if err := node.RejectTransfer(ev.TransferID); err != nil {
			t.Fatalf("RejectTransfer: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for TransferRequested event")
	}

	select {
	case result := <-done:
		if result == nil || result.FinalState != "Rejected" {
			t.Fatalf("expected sender to observe Rejected, got %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for sender result")
	}
}

func TestAutoPushEnabledTracksTrustAndZone(t *testing.T) {
	node, _ := newTestNode(t)
	peerID := peerIDWithByte(0x03)

	a, b := net.Pipe()
	defer b.Close()

	var sharedKey device.SharedKey
	if err := node.TrustStore().Trust(peerID, sharedKey); err != nil {
		t.Fatalf("Trust: %v", err)
	}

	if err := node.AttachSession(peerID, a, testSessionKey()); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	node.handleZoneChange(distance.ZoneChangeEvent{
		DeviceID: peerID,
		Current:  distance.ZoneIntimate,
		At:       time.Now(),
	})

	if !node.AutoPushEnabled(peerID) {
		t.Fatalf("expected auto-push enabled for trusted peer at Intimate zone")
	}

	node.handleZoneChange(distance.ZoneChangeEvent{
		DeviceID: peerID,
		Current:  distance.ZoneFar,
		At:       time.Now(),
	})
	if node.AutoPushEnabled(peerID) {
		t.Fatalf("expected auto-push disabled after moving to Far zone")
	}
}

func TestPushClipboardDeliversToAttachedPeer(t *testing.T) {
	node, _ := newTestNode(t)
	peerID := peerIDWithByte(0x04)

	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	if err := node.AttachSession(peerID, local, testSessionKey()); err != nil {
		t.Fatalf("AttachSession: %v", err)
	}

	remoteCh := transfer.NewChannel(remote, testSessionKey())
	defer remoteCh.Close()

	ackDone := make(chan struct{})
	go func() {
		defer close(ackDone)
		fr, ok := <-remoteCh.Incoming()
		if !ok || fr.Type != protocol.ClipboardPush {
			return
		}
		ack, _ := protocol.ClipboardAckMessage{Success: true}.Encode()
		_ = remoteCh.Send(protocol.ClipboardAck, ack)
	}()

	value := device.ClipboardValue{Kind: device.ClipboardText, Bytes: []byte("copied")}
	if err := node.PushClipboard(peerID, value); err != nil {
		t.Fatalf("PushClipboard: %v", err)
	}
	<-ackDone
}

func TestPeerNotFoundErrorsWhenSessionMissing(t *testing.T) {
	node, _ := newTestNode(t)
	unknown := peerIDWithByte(0x09)

	if err := node.PushClipboard(unknown, device.ClipboardValue{Kind: device.ClipboardText, Bytes: []byte("x")}); err == nil {
		t.Fatalf("expected error for unattached peer")
	}
	if _, err := node.SendFiles(unknown, []string{"x"}, transfer.SendOptions{}); err == nil {
		t.Fatalf("expected error for unattached peer")
	}
}

func TestClipboardHistoryAndTransferHistoryStartEmpty(t *testing.T) {
	node, _ := newTestNode(t)
	if got := node.ClipboardHistory(); len(got) != 0 {
		t.Fatalf("expected empty clipboard history, got %d entries", len(got))
	}
	if got := node.TransferHistory(); len(got) != 0 {
		t.Fatalf("expected empty transfer history, got %d entries", len(got))
	}
}
