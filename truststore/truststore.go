// Package truststore implements spec §4.5: a persistent DeviceId -> Device
// map plus a secondary DeviceId -> SharedKey map restricted to trusted
// entries, serialized under a single exclusive lock. Every operation is
// backed by SQLite through storage.Store; the lock here guards the
// read-modify-write sequences the storage layer's own per-statement
// atomicity doesn't cover (e.g. save-then-read-back consistency for
// callers that assume no interleaving).
package truststore

import (
	"errors"
	"fmt"
	"sync"

	"seadrop/device"
	"seadrop/seaerr"
	"seadrop/storage"
)

// Store is the trust store facade. It owns no state of its own beyond the
// lock; all records live in the backing storage.Store.
type Store struct {
	mu      sync.Mutex
	backing *storage.Store
}

// New wraps a storage.Store with the trust-store API.
func New(backing *storage.Store) *Store {
	return &Store{backing: backing}
}

// Save upserts a device record without changing its trust level (spec
// §4.5 save).
func (s *Store) Save(d device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := toRow(d)
	if err != nil {
		return err
	}

	existing, err := s.backing.GetDevice(d.ID.String())
	if err == nil {
		row.TrustLevel = existing.TrustLevel
		row.PairedAt = existing.PairedAt
	} else if err != storage.ErrNotFound {
		return wrapStorageErr("save device", err)
	}

	if err := s.backing.SaveDevice(row); err != nil {
		return wrapStorageErr("save device", err)
	}
	return nil
}

// MarkPairingPending moves a device into the PairingPending trust level
// while a pairing session is negotiating its shared key (spec §3
// TrustLevel, driven by the pairing package).
func (s *Store) MarkPairingPending(id device.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.MarkPairingPending(id.String()); err != nil {
		return wrapStorageErr("mark device pairing pending", err)
	}
	return nil
}

// Trust requires the record to exist; promotes it to Trusted, stores
// shared_key, and sets paired_at = now (spec §4.5 trust).
func (s *Store) Trust(id device.ID, sharedKey device.SharedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.TrustDevice(id.String(), sharedKey[:]); err != nil {
		return wrapStorageErr("trust device", err)
	}
	return nil
}

// Block sets trust_level = Blocked and deletes any stored shared key,
// forward protection per spec §4.5.
func (s *Store) Block(id device.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.BlockDevice(id.String()); err != nil {
		return wrapStorageErr("block device", err)
	}
	return nil
}

// Untrust resets a device to Discovered and deletes its shared key (spec
// §4.5 untrust).
func (s *Store) Untrust(id device.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.UntrustDevice(id.String()); err != nil {
		return wrapStorageErr("untrust device", err)
	}
	return nil
}

// Unblock resets a blocked device to Discovered (spec §4.5 unblock).
func (s *Store) Unblock(id device.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.UnblockDevice(id.String()); err != nil {
		return wrapStorageErr("unblock device", err)
	}
	return nil
}

// Delete removes the record and any key (spec §4.5 delete).
func (s *Store) Delete(id device.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backing.DeleteDevice(id.String()); err != nil {
		return wrapStorageErr("delete device", err)
	}
	return nil
}

// Get returns a single device record.
func (s *Store) Get(id device.ID) (device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.backing.GetDevice(id.String())
	if err != nil {
		return device.Device{}, wrapStorageErr("get device", err)
	}
	return fromRow(*row)
}

// IsTrusted is a pure read (spec §4.5 is_trusted).
func (s *Store) IsTrusted(id device.ID) (bool, error) {
	d, err := s.Get(id)
	if err != nil {
		if errors.Is(err, seaerr.Sentinel(seaerr.RecordNotFound)) {
			return false, nil
		}
		return false, err
	}
	return d.TrustLevel == device.Trusted, nil
}

// IsBlocked is a pure read (spec §4.5 is_blocked).
func (s *Store) IsBlocked(id device.ID) (bool, error) {
	d, err := s.Get(id)
	if err != nil {
		if errors.Is(err, seaerr.Sentinel(seaerr.RecordNotFound)) {
			return false, nil
		}
		return false, err
	}
	return d.TrustLevel == device.Blocked, nil
}

// GetSharedKey is a pure read (spec §4.5 get_shared_key).
func (s *Store) GetSharedKey(id device.ID) (device.SharedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.backing.GetSharedKey(id.String())
	if err != nil {
		return device.SharedKey{}, wrapStorageErr("get shared key", err)
	}
	var key device.SharedKey
	if len(raw) != device.SharedKeySize {
		return device.SharedKey{}, seaerr.New(seaerr.DatabaseCorrupted, "stored shared key has unexpected length")
	}
	copy(key[:], raw)
	return key, nil
}

// ListTrusted returns every Trusted device (spec §4.5 list_trusted).
func (s *Store) ListTrusted() ([]device.Device, error) {
	return s.listByTrustLevel(device.Trusted)
}

// ListBlocked returns every Blocked device (spec §4.5 list_blocked).
func (s *Store) ListBlocked() ([]device.Device, error) {
	return s.listByTrustLevel(device.Blocked)
}

// ListAll returns every known device, order unspecified (spec §4.5 list_all).
func (s *Store) ListAll() ([]device.Device, error) {
	return s.listByTrustLevel(device.TrustLevel(255))
}

func (s *Store) listByTrustLevel(level device.TrustLevel) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := ""
	if level != device.TrustLevel(255) {
		filter = trustLevelToString(level)
	}

	rows, err := s.backing.ListDevices(filter)
	if err != nil {
		return nil, wrapStorageErr("list devices", err)
	}

	devices := make([]device.Device, 0, len(rows))
	for _, row := range rows {
		d, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func wrapStorageErr(op string, err error) error {
	if err == storage.ErrNotFound {
		return seaerr.New(seaerr.RecordNotFound, fmt.Sprintf("%s: record not found", op))
	}
	return seaerr.Newf(seaerr.DatabaseError, "%s: %v", op, err)
}
