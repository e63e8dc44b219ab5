package storage

import "testing"

func TestSaveAndGetDevice(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveDevice(DeviceRow{
		DeviceID:     "device-1",
		DeviceName:   "Alice's Laptop",
		Platform:     1,
		Capabilities: 5,
	}); err != nil {
		t.Fatalf("SaveDevice failed: %v", err)
	}

	got, err := store.GetDevice("device-1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.DeviceName != "Alice's Laptop" {
		t.Fatalf("unexpected device name: %q", got.DeviceName)
	}
	if got.TrustLevel != trustLevelUnknown {
		t.Fatalf("expected default trust level unknown, got %q", got.TrustLevel)
	}

	// SaveDevice again must update name/capabilities without resetting trust.
	if err := store.TrustDevice("device-1", []byte("shared-key-bytes")); err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}
	if err := store.SaveDevice(DeviceRow{
		DeviceID:     "device-1",
		DeviceName:   "Alice's Laptop (renamed)",
		Capabilities: 7,
	}); err != nil {
		t.Fatalf("SaveDevice update failed: %v", err)
	}

	got, err = store.GetDevice("device-1")
	if err != nil {
		t.Fatalf("GetDevice after update failed: %v", err)
	}
	if got.DeviceName != "Alice's Laptop (renamed)" {
		t.Fatalf("expected updated name, got %q", got.DeviceName)
	}
	if got.TrustLevel != trustLevelTrusted {
		t.Fatalf("expected trust level to survive a save, got %q", got.TrustLevel)
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetDevice("missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTrustDeviceStoresSharedKeyAndPromotesTrustLevel(t *testing.T) {
	store := newTestStore(t)
	mustAddDevice(t, store, "device-2", "Bob's Phone")

	if err := store.TrustDevice("device-2", []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}

	got, err := store.GetDevice("device-2")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.TrustLevel != trustLevelTrusted {
		t.Fatalf("expected trust level trusted, got %q", got.TrustLevel)
	}
	if got.PairedAt == nil {
		t.Fatalf("expected paired_at to be set")
	}

	key, err := store.GetSharedKey("device-2")
	if err != nil {
		t.Fatalf("GetSharedKey failed: %v", err)
	}
	if string(key) != string([]byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected shared key: %v", key)
	}
}

func TestBlockDeviceClearsSharedKey(t *testing.T) {
	store := newTestStore(t)
	mustAddDevice(t, store, "device-3", "Untrusted Device")
	if err := store.TrustDevice("device-3", []byte("secret")); err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}

	if err := store.BlockDevice("device-3"); err != nil {
		t.Fatalf("BlockDevice failed: %v", err)
	}

	got, err := store.GetDevice("device-3")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.TrustLevel != trustLevelBlocked {
		t.Fatalf("expected trust level blocked, got %q", got.TrustLevel)
	}

	if _, err := store.GetSharedKey("device-3"); err != ErrNotFound {
		t.Fatalf("expected shared key to be cleared on block, got %v", err)
	}
}

func TestUntrustAndUnblockResetToDiscovered(t *testing.T) {
	store := newTestStore(t)
	mustAddDevice(t, store, "device-4", "Flaky Device")
	if err := store.TrustDevice("device-4", []byte("secret")); err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}

	if err := store.UntrustDevice("device-4"); err != nil {
		t.Fatalf("UntrustDevice failed: %v", err)
	}
	got, err := store.GetDevice("device-4")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.TrustLevel != trustLevelDiscovered {
		t.Fatalf("expected trust level discovered after untrust, got %q", got.TrustLevel)
	}
	if _, err := store.GetSharedKey("device-4"); err != ErrNotFound {
		t.Fatalf("expected shared key cleared after untrust, got %v", err)
	}

	if err := store.BlockDevice("device-4"); err != nil {
		t.Fatalf("BlockDevice failed: %v", err)
	}
	if err := store.UnblockDevice("device-4"); err != nil {
		t.Fatalf("UnblockDevice failed: %v", err)
	}
	got, err = store.GetDevice("device-4")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.TrustLevel != trustLevelDiscovered {
		t.Fatalf("expected trust level discovered after unblock, got %q", got.TrustLevel)
	}
}

func TestListDevicesFiltersByTrustLevel(t *testing.T) {
	store := newTestStore(t)
	mustAddDevice(t, store, "device-5", "Trusted Device")
	mustAddDevice(t, store, "device-6", "Blocked Device")
	mustAddDevice(t, store, "device-7", "Discovered Device")

	if err := store.TrustDevice("device-5", []byte("key")); err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}
	if err := store.BlockDevice("device-6"); err != nil {
		t.Fatalf("BlockDevice failed: %v", err)
	}

	all, err := store.ListDevices("")
	if err != nil {
		t.Fatalf("ListDevices all failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 devices, got %d", len(all))
	}

	trusted, err := store.ListDevices(trustLevelTrusted)
	if err != nil {
		t.Fatalf("ListDevices trusted failed: %v", err)
	}
	if len(trusted) != 1 || trusted[0].DeviceID != "device-5" {
		t.Fatalf("unexpected trusted devices: %+v", trusted)
	}

	blocked, err := store.ListDevices(trustLevelBlocked)
	if err != nil {
		t.Fatalf("ListDevices blocked failed: %v", err)
	}
	if len(blocked) != 1 || blocked[0].DeviceID != "device-6" {
		t.Fatalf("unexpected blocked devices: %+v", blocked)
	}
}

func TestDeleteDeviceCascadesSharedKey(t *testing.T) {
	store := newTestStore(t)
	mustAddDevice(t, store, "device-8", "Ephemeral Device")
	if err := store.TrustDevice("device-8", []byte("key")); err != nil {
		t.Fatalf("TrustDevice failed: %v", err)
	}

	if err := store.DeleteDevice("device-8"); err != nil {
		t.Fatalf("DeleteDevice failed: %v", err)
	}

	if _, err := store.GetDevice("device-8"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.GetSharedKey("device-8"); err != ErrNotFound {
		t.Fatalf("expected shared key gone after delete, got %v", err)
	}
}

func TestTrustDeviceUnknownDeviceNotFound(t *testing.T) {
	store := newTestStore(t)

	if err := store.TrustDevice("ghost", []byte("key")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkPairingPending(t *testing.T) {
	store := newTestStore(t)
	mustAddDevice(t, store, "device-9", "Pairing Device")

	if err := store.MarkPairingPending("device-9"); err != nil {
		t.Fatalf("MarkPairingPending failed: %v", err)
	}

	got, err := store.GetDevice("device-9")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.TrustLevel != trustLevelPairingPending {
		t.Fatalf("expected trust level pairing_pending, got %q", got.TrustLevel)
	}
}
