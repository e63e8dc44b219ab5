package clipboard

import (
	"errors"
	"net"
	"testing"
	"time"

	"seadrop/device"
	"seadrop/distance"
	"seadrop/transfer"
)

type fakeSink struct {
	last device.ClipboardValue
	sets int
}

func (s *fakeSink) Get() (device.ClipboardValue, error) { return s.last, nil }
func (s *fakeSink) Set(v device.ClipboardValue) error {
	s.last = v
	s.sets++
	return nil
}

func pipedChannels() (*transfer.Channel, *transfer.Channel) {
	a, b := net.Pipe()
	key := make([]byte, 32)
	return transfer.NewChannel(a, key), transfer.NewChannel(b, key)
}

func TestPushAndReceiveRoundTrip(t *testing.T) {
	senderCh, receiverCh := pipedChannels()
	defer senderCh.Close()
	defer receiverCh.Close()

	history := NewHistory(0)
	source := device.ID{9}

	done := make(chan error, 1)
	go func() {
		fr, ok := <-receiverCh.Incoming()
		if !ok {
			done <- errors.New("channel closed")
			return
		}
		_, err := ReceiveOne(receiverCh, fr, source, history, time.Now())
		done <- err
	}()

	pusher := NewPusher(senderCh)
	value := device.ClipboardValue{Kind: device.ClipboardText, Bytes: []byte("copy me"), CapturedAt: time.Now()}
	if err := pusher.Push(value); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("ReceiveOne: %v", err)
	}

	entries := history.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if string(entries[0].Value.Bytes) != "copy me" {
		t.Fatalf("unexpected entry content: %q", entries[0].Value.Bytes)
	}
	if entries[0].SourceDeviceID != source {
		t.Fatalf("unexpected source device id")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	history := NewHistory(5)
	idx := history.Append(device.ClipboardValue{Kind: device.ClipboardText, Bytes: []byte("x")}, device.ID{1}, time.Now())

	sink := &fakeSink{}
	if err := history.Apply(idx, sink); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := history.Apply(idx, sink); err != nil {
		t.Fatalf("second apply should not error: %v", err)
	}
	if sink.sets != 2 {
		t.Fatalf("expected sink.Set called twice, got %d", sink.sets)
	}
	if !history.WasApplied(idx) {
		t.Fatalf("expected WasApplied true")
	}
}

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	history := NewHistory(2)
	history.Append(device.ClipboardValue{Bytes: []byte("1")}, device.ID{1}, time.Now())
	history.Append(device.ClipboardValue{Bytes: []byte("2")}, device.ID{1}, time.Now())
	history.Append(device.ClipboardValue{Bytes: []byte("3")}, device.ID{1}, time.Now())

	entries := history.List()
	if len(entries) != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", len(entries))
	}
	if string(entries[0].Value.Bytes) != "2" || string(entries[1].Value.Bytes) != "3" {
		t.Fatalf("expected FIFO eviction of oldest entry, got %q then %q", entries[0].Value.Bytes, entries[1].Value.Bytes)
	}
}

func TestAutoPushGateDisablesOutsideIntimateZone(t *testing.T) {
	var gate AutoPushGate

	gate.Update(true, distance.ZoneIntimate)
	if !gate.Enabled() {
		t.Fatalf("expected enabled for trusted+Intimate")
	}

	gate.Update(true, distance.ZoneClose)
	if gate.Enabled() {
		t.Fatalf("expected disabled immediately on zone change to Close")
	}

	gate.Update(false, distance.ZoneIntimate)
	if gate.Enabled() {
		t.Fatalf("expected disabled for untrusted peer regardless of zone")
	}
}
