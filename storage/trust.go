package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveDevice inserts or updates a device's discovery record (spec §4.5
// TrustStore.save — called whenever a beacon or hello refreshes what we
// know about a peer, without touching its trust level).
func (s *Store) SaveDevice(d DeviceRow) error {
	if d.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if d.TrustLevel == "" {
		d.TrustLevel = trustLevelUnknown
	}
	if err := validTrustLevel(d.TrustLevel); err != nil {
		return err
	}
	now := nowUnixMilli()
	if d.FirstSeen == 0 {
		d.FirstSeen = now
	}
	if d.LastSeen == 0 {
		d.LastSeen = now
	}

	_, err := s.db.Exec(
		`INSERT INTO devices (
			device_id, device_name, platform, form_factor, protocol_version,
			trust_level, capabilities, first_seen, last_seen, paired_at, user_alias
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			device_name      = excluded.device_name,
			platform         = excluded.platform,
			form_factor      = excluded.form_factor,
			protocol_version = excluded.protocol_version,
			capabilities     = excluded.capabilities,
			last_seen        = excluded.last_seen`,
		d.DeviceID, d.DeviceName, d.Platform, d.FormFactor, d.ProtocolVersion,
		d.TrustLevel, d.Capabilities, d.FirstSeen, d.LastSeen, nullInt64(d.PairedAt), d.UserAlias,
	)
	if err != nil {
		return fmt.Errorf("save device %q: %w", d.DeviceID, err)
	}
	return nil
}

// GetDevice returns a single device record by id.
func (s *Store) GetDevice(deviceID string) (*DeviceRow, error) {
	row := s.db.QueryRow(
		`SELECT device_id, device_name, platform, form_factor, protocol_version,
			trust_level, capabilities, first_seen, last_seen, paired_at, user_alias
		FROM devices WHERE device_id = ?`,
		deviceID,
	)
	device, err := scanDeviceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device %q: %w", deviceID, err)
	}
	return device, nil
}

// ListDevices returns every known device, optionally narrowed to a single
// trust level (spec §4.5 list_all / list_trusted / list_blocked).
func (s *Store) ListDevices(trustLevel string) ([]DeviceRow, error) {
	var rows *sql.Rows
	var err error
	if trustLevel != "" {
		if err := validTrustLevel(trustLevel); err != nil {
			return nil, err
		}
		rows, err = s.db.Query(
			`SELECT device_id, device_name, platform, form_factor, protocol_version,
				trust_level, capabilities, first_seen, last_seen, paired_at, user_alias
			FROM devices WHERE trust_level = ? ORDER BY last_seen DESC`,
			trustLevel,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT device_id, device_name, platform, form_factor, protocol_version,
				trust_level, capabilities, first_seen, last_seen, paired_at, user_alias
			FROM devices ORDER BY last_seen DESC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]DeviceRow, 0)
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}
	return devices, nil
}

// MarkPairingPending sets a device's trust level to PairingPending while
// a pairing.Session negotiates its shared key, without touching any
// already-persisted key.
func (s *Store) MarkPairingPending(deviceID string) error {
	res, err := s.db.Exec(`UPDATE devices SET trust_level = ? WHERE device_id = ?`, trustLevelPairingPending, deviceID)
	if err != nil {
		return fmt.Errorf("mark device %q pairing pending: %w", deviceID, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("read rows affected marking %q pairing pending: %w", deviceID, err)
	} else if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TrustDevice promotes a device to Trusted and stores its derived shared
// key, completing pairing (spec §4.5 trust, driven by the pairing package
// once verification succeeds).
func (s *Store) TrustDevice(deviceID string, sharedKey []byte) error {
	if len(sharedKey) == 0 {
		return errors.New("shared_key is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin trust device transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`UPDATE devices SET trust_level = ?, paired_at = ? WHERE device_id = ?`,
		trustLevelTrusted, nowUnixMilli(), deviceID,
	)
	if err != nil {
		return fmt.Errorf("trust device %q: %w", deviceID, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("read rows affected trusting %q: %w", deviceID, err)
	} else if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(
		`INSERT INTO device_keys (device_id, shared_key) VALUES (?, ?)
		ON CONFLICT(device_id) DO UPDATE SET shared_key = excluded.shared_key`,
		deviceID, sharedKey,
	); err != nil {
		return fmt.Errorf("store shared key for %q: %w", deviceID, err)
	}

	return tx.Commit()
}

// BlockDevice marks a device Blocked and discards its shared key (spec
// §4.5 block — refusing to respond to a blocked device's traffic relies on
// IsBlocked, not on key deletion, but the key is discarded anyway since a
// blocked device should never be re-trusted via a stale key).
func (s *Store) BlockDevice(deviceID string) error {
	return s.setTrustLevelAndClearKey(deviceID, trustLevelBlocked)
}

// UntrustDevice resets a previously trusted device back to Discovered and
// discards its shared key, requiring re-pairing (spec §4.5 untrust).
func (s *Store) UntrustDevice(deviceID string) error {
	return s.setTrustLevelAndClearKey(deviceID, trustLevelDiscovered)
}

// UnblockDevice resets a blocked device back to Discovered (spec §4.5
// unblock); it was never trusted so there is no key to discard, but the
// delete is harmless if one is somehow present.
func (s *Store) UnblockDevice(deviceID string) error {
	return s.setTrustLevelAndClearKey(deviceID, trustLevelDiscovered)
}

func (s *Store) setTrustLevelAndClearKey(deviceID, trustLevel string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin set trust level transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`UPDATE devices SET trust_level = ? WHERE device_id = ?`, trustLevel, deviceID)
	if err != nil {
		return fmt.Errorf("set trust level %q for %q: %w", trustLevel, deviceID, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("read rows affected setting trust level for %q: %w", deviceID, err)
	} else if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM device_keys WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("clear shared key for %q: %w", deviceID, err)
	}

	return tx.Commit()
}

// DeleteDevice removes a device and its shared key entirely (spec §4.5
// delete); device_keys rows cascade via the foreign key.
func (s *Store) DeleteDevice(deviceID string) error {
	res, err := s.db.Exec(`DELETE FROM devices WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("delete device %q: %w", deviceID, err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("read rows affected deleting %q: %w", deviceID, err)
	} else if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSharedKey returns the persisted session key for a trusted device.
func (s *Store) GetSharedKey(deviceID string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRow(`SELECT shared_key FROM device_keys WHERE device_id = ?`, deviceID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shared key for %q: %w", deviceID, err)
	}
	return key, nil
}

func scanDeviceRow(row scanner) (*DeviceRow, error) {
	var (
		d        DeviceRow
		pairedAt sql.NullInt64
	)
	if err := row.Scan(
		&d.DeviceID, &d.DeviceName, &d.Platform, &d.FormFactor, &d.ProtocolVersion,
		&d.TrustLevel, &d.Capabilities, &d.FirstSeen, &d.LastSeen, &pairedAt, &d.UserAlias,
	); err != nil {
		return nil, err
	}
	d.PairedAt = int64Ptr(pairedAt)
	return &d, nil
}
