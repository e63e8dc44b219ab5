package truststore

import (
	"fmt"
	"time"

	"seadrop/device"
	"seadrop/storage"
)

const (
	trustLevelUnknown        = "unknown"
	trustLevelDiscovered     = "discovered"
	trustLevelPairingPending = "pairing_pending"
	trustLevelTrusted        = "trusted"
	trustLevelBlocked        = "blocked"
)

func trustLevelToString(level device.TrustLevel) string {
	switch level {
	case device.Discovered:
		return trustLevelDiscovered
	case device.PairingPending:
		return trustLevelPairingPending
	case device.Trusted:
		return trustLevelTrusted
	case device.Blocked:
		return trustLevelBlocked
	default:
		return trustLevelUnknown
	}
}

func trustLevelFromString(s string) (device.TrustLevel, error) {
	switch s {
	case trustLevelUnknown, "":
		return device.Unknown, nil
	case trustLevelDiscovered:
		return device.Discovered, nil
	case trustLevelPairingPending:
		return device.PairingPending, nil
	case trustLevelTrusted:
		return device.Trusted, nil
	case trustLevelBlocked:
		return device.Blocked, nil
	default:
		return device.Unknown, fmt.Errorf("unknown trust level %q", s)
	}
}

func toRow(d device.Device) (storage.DeviceRow, error) {
	if d.ID.IsZero() {
		return storage.DeviceRow{}, fmt.Errorf("cannot save device with zero id")
	}

	var pairedAt *int64
	if !d.PairedAt.IsZero() {
		ms := d.PairedAt.UnixMilli()
		pairedAt = &ms
	}

	return storage.DeviceRow{
		DeviceID:        d.ID.String(),
		DeviceName:      d.Name,
		Platform:        int(d.Platform),
		FormFactor:      int(d.FormFactor),
		ProtocolVersion: int(d.ProtocolVersion),
		TrustLevel:      trustLevelToString(d.TrustLevel),
		Capabilities:    int64(d.Capabilities),
		FirstSeen:       d.FirstSeen.UnixMilli(),
		LastSeen:        d.LastSeen.UnixMilli(),
		PairedAt:        pairedAt,
		UserAlias:       d.UserAlias,
	}, nil
}

func fromRow(row storage.DeviceRow) (device.Device, error) {
	id, ok := device.IDFromHex(row.DeviceID)
	if !ok {
		return device.Device{}, fmt.Errorf("stored device id %q is not valid hex", row.DeviceID)
	}

	trustLevel, err := trustLevelFromString(row.TrustLevel)
	if err != nil {
		return device.Device{}, err
	}

	d := device.Device{
		ID:              id,
		Name:            row.DeviceName,
		Platform:        device.Platform(row.Platform),
		FormFactor:      device.FormFactor(row.FormFactor),
		ProtocolVersion: uint8(row.ProtocolVersion),
		TrustLevel:      trustLevel,
		Capabilities:    device.Capabilities(row.Capabilities),
		FirstSeen:       time.UnixMilli(row.FirstSeen),
		LastSeen:        time.UnixMilli(row.LastSeen),
		UserAlias:       row.UserAlias,
	}
	if row.PairedAt != nil {
		d.PairedAt = time.UnixMilli(*row.PairedAt)
	}
	return d, nil
}
