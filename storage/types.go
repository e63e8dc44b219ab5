package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates a requested row does not exist.
var ErrNotFound = errors.New("storage: record not found")

const (
	trustLevelUnknown        = "unknown"
	trustLevelDiscovered     = "discovered"
	trustLevelPairingPending = "pairing_pending"
	trustLevelTrusted        = "trusted"
	trustLevelBlocked        = "blocked"
)

const (
	// SecuritySeverityInfo indicates informational security event context.
	SecuritySeverityInfo = "info"
	// SecuritySeverityWarning indicates potentially suspicious behavior.
	SecuritySeverityWarning = "warning"
	// SecuritySeverityCritical indicates serious security failures.
	SecuritySeverityCritical = "critical"
)

// DeviceRow is the SQLite representation of a trust-store device record
// (spec §3 Device, §4.5 TrustStore).
type DeviceRow struct {
	DeviceID        string
	DeviceName      string
	Platform        int
	FormFactor      int
	ProtocolVersion int
	TrustLevel      string
	Capabilities    int64
	FirstSeen       int64
	LastSeen        int64
	PairedAt        *int64
	UserAlias       string
}

// TransferHistoryRow is the SQLite representation of a completed transfer
// (spec §3 TransferResult, moved here once the in-memory record goes
// terminal).
type TransferHistoryRow struct {
	TransferID      string
	PeerDeviceID    string
	Direction       string
	FinalState      string
	BytesDone       int64
	BytesTotal      int64
	StartedAt       int64
	CompletedAt     int64
	SuccessfulCount int
	FailedCount     int
	SkippedCount    int
	ErrorMessage    string
}

// FolderTransferRow groups the individual files of one multi-file Send
// under a single batch identifier (SPEC_FULL.md §6 supplement, adapted
// from the teacher's folder_transfers table), so a caller can show "12
// files to Alice's Laptop" as one entry instead of 12 separate ones.
type FolderTransferRow struct {
	FolderID       string
	PeerDeviceID   string
	Direction      string
	FolderName     string
	TotalFiles     int
	TotalSize      int64
	TransferStatus string
	Timestamp      int64
}

// SecurityEvent stores structured security-relevant runtime events, e.g.
// distance-engine zone regressions into Far (spec §4.6).
type SecurityEvent struct {
	ID           int64
	EventType    string
	PeerDeviceID *string
	Details      string
	Severity     string
	Timestamp    int64
}

// SecurityEventFilter narrows GetSecurityEvents query results.
type SecurityEventFilter struct {
	EventType     string
	PeerDeviceID  string
	Severity      string
	FromTimestamp *int64
	ToTimestamp   *int64
	Limit         int
	Offset        int
}

func validTrustLevel(level string) error {
	switch level {
	case trustLevelUnknown, trustLevelDiscovered, trustLevelPairingPending, trustLevelTrusted, trustLevelBlocked:
		return nil
	default:
		return fmt.Errorf("invalid trust level %q", level)
	}
}

func validateSecuritySeverity(severity string) error {
	switch severity {
	case SecuritySeverityInfo, SecuritySeverityWarning, SecuritySeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid security event severity %q", severity)
	}
}

func nullString(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func nullInt64(ptr *int64) sql.NullInt64 {
	if ptr == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ptr, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

type scanner interface {
	Scan(dest ...any) error
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
