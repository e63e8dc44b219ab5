package distance

import (
	"testing"
	"time"

	"seadrop/device"
)

func testDeviceID(b byte) device.ID {
	var id device.ID
	id[0] = b
	return id
}

func TestFeedRSSIProducesSmoothedEstimate(t *testing.T) {
	e := New(Options{})
	id := testDeviceID(0x01)
	now := time.Now()

	var info DistanceInfo
	for i := 0; i < 5; i++ {
		info = e.FeedRSSI(id, -50, now.Add(time.Duration(i)*time.Millisecond), false)
	}

	if info.SmoothedRSSI != -50 {
		t.Fatalf("expected smoothed rssi -50, got %v", info.SmoothedRSSI)
	}
	if info.Zone != ZoneIntimate {
		t.Fatalf("expected zone Intimate at -50 dBm, got %v", info.Zone)
	}
	if !info.IsStable {
		t.Fatalf("expected stable reading with constant rssi")
	}
	if info.SignalBars != 4 {
		t.Fatalf("expected 4 signal bars at -50 dBm, got %d", info.SignalBars)
	}
}

func TestRingBufferEvictsOldestBeyondWindow(t *testing.T) {
	e := New(Options{SmoothingWindow: 2})
	id := testDeviceID(0x02)
	now := time.Now()

	e.FeedRSSI(id, -40, now, false)
	info := e.FeedRSSI(id, -60, now, false)
	if info.SmoothedRSSI != -50 {
		t.Fatalf("expected mean of last 2 readings -50, got %v", info.SmoothedRSSI)
	}

	info = e.FeedRSSI(id, -60, now, false)
	if info.SmoothedRSSI != -60 {
		t.Fatalf("expected oldest reading evicted, got smoothed %v", info.SmoothedRSSI)
	}
}

func TestZoneTransitionWithZeroHysteresisFiresImmediately(t *testing.T) {
	// Options.Hysteresis 0 selects the 2 s default, so 1 ns stands in for
	// zero hysteresis here.
	e := New(Options{Hysteresis: 1, SmoothingWindow: 1})
	id := testDeviceID(0x03)

	var events []ZoneChangeEvent
	e.OnZoneChange(func(ev ZoneChangeEvent) { events = append(events, ev) })

	var alerts int
	e.OnSecurityAlert(func(device.ID, string) { alerts++ })

	now := time.Now()
	e.FeedRSSI(id, -50, now, false) // Intimate
	e.FeedRSSI(id, -90, now.Add(2*time.Nanosecond), false) // Far

	if len(events) != 2 {
		t.Fatalf("expected 2 zone-change events, got %d: %+v", len(events), events)
	}
	last := events[len(events)-1]
	if last.Previous != ZoneIntimate || last.Current != ZoneFar {
		t.Fatalf("unexpected transition: %+v", last)
	}
	if !last.RequiresSecurityAlert {
		t.Fatalf("expected security alert required Intimate -> Far")
	}
	if alerts != 1 {
		t.Fatalf("expected 1 security alert fired, got %d", alerts)
	}
}

func TestHysteresisSuppressesRapidFlapping(t *testing.T) {
	e := New(Options{Hysteresis: 2 * time.Second, SmoothingWindow: 1})
	id := testDeviceID(0x04)

	var events []ZoneChangeEvent
	e.OnZoneChange(func(ev ZoneChangeEvent) { events = append(events, ev) })

	now := time.Now()
	e.FeedRSSI(id, -50, now, false)                              // Intimate, first report
	e.FeedRSSI(id, -90, now.Add(50*time.Millisecond), false)     // Far, within hysteresis -> suppressed
	e.FeedRSSI(id, -90, now.Add(3*time.Second), false)           // Far, past hysteresis -> emitted

	if len(events) != 2 {
		t.Fatalf("expected 2 emitted events (initial Intimate report + post-hysteresis Far), got %d: %+v", len(events), events)
	}
	if events[1].Current != ZoneFar || events[1].Previous != ZoneIntimate {
		t.Fatalf("expected final transition Intimate -> Far, got %+v", events[1])
	}
}

func TestRemoveDeviceDropsState(t *testing.T) {
	e := New(Options{})
	id := testDeviceID(0x05)

	e.FeedRSSI(id, -50, time.Now(), false)
	if _, ok := e.Info(id); !ok {
		t.Fatalf("expected info to exist before removal")
	}

	e.RemoveDevice(id)
	if _, ok := e.Info(id); ok {
		t.Fatalf("expected info to be gone after RemoveDevice")
	}
	if e.Zone(id) != ZoneUnknown {
		t.Fatalf("expected zone Unknown after removal")
	}
}

func TestSignalBarsCutoffs(t *testing.T) {
	cases := []struct {
		rssi float64
		want int
	}{
		{-40, 4},
		{-55, 4},
		{-56, 3},
		{-70, 3},
		{-71, 2},
		{-85, 2},
		{-86, 1},
		{-120, 1},
	}
	for _, c := range cases {
		if got := signalBars(c.rssi); got != c.want {
			t.Errorf("signalBars(%v) = %d, want %d", c.rssi, got, c.want)
		}
	}
}
