package storage

import (
	"errors"
	"fmt"
)

// InsertSeenTransferID records a (transfer_id, message_kind) pair for
// replay protection (spec §4.3 — duplicate FileChunk/ChunkAck delivery on
// an unreliable link must not be reapplied).
func (s *Store) InsertSeenTransferID(transferID, messageKind string, receivedAt int64) error {
	if transferID == "" {
		return errors.New("transfer_id is required")
	}
	if messageKind == "" {
		return errors.New("message_kind is required")
	}
	if receivedAt == 0 {
		receivedAt = nowUnixMilli()
	}

	_, err := s.db.Exec(
		`INSERT INTO seen_transfer_ids (transfer_id, message_kind, received_at)
		VALUES (?, ?, ?)
		ON CONFLICT(transfer_id, message_kind) DO UPDATE SET received_at = excluded.received_at`,
		transferID, messageKind, receivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert seen transfer id %q/%q: %w", transferID, messageKind, err)
	}

	return nil
}

// HasSeenTransferID reports whether a (transfer_id, message_kind) pair has
// already been recorded.
func (s *Store) HasSeenTransferID(transferID, messageKind string) (bool, error) {
	if transferID == "" {
		return false, errors.New("transfer_id is required")
	}
	if messageKind == "" {
		return false, errors.New("message_kind is required")
	}

	var exists int
	if err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM seen_transfer_ids WHERE transfer_id = ? AND message_kind = ?)`,
		transferID, messageKind,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check seen transfer id %q/%q: %w", transferID, messageKind, err)
	}

	return exists == 1, nil
}

// PruneOldSeenTransferIDs removes seen_transfer_ids rows older than cutoff.
func (s *Store) PruneOldSeenTransferIDs(cutoffTimestamp int64) (int64, error) {
	if cutoffTimestamp <= 0 {
		return 0, errors.New("cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM seen_transfer_ids WHERE received_at < ?`, cutoffTimestamp)
	if err != nil {
		return 0, fmt.Errorf("prune seen transfer ids: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for seen transfer id prune: %w", err)
	}

	return rowsAffected, nil
}
