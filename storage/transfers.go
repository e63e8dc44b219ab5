package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// RecordTransferHistory inserts the terminal record of a finished transfer
// (spec §4.8). A second call with the same transfer_id updates that row's
// final_state, bytes_done, completed_at, file counts and error_message in
// place.
func (s *Store) RecordTransferHistory(row TransferHistoryRow) error {
	if row.TransferID == "" {
		return errors.New("transfer_id is required")
	}
	if row.Direction != "send" && row.Direction != "receive" {
		return fmt.Errorf("invalid transfer direction %q", row.Direction)
	}

	var peerDeviceID *string
	if row.PeerDeviceID != "" {
		peerDeviceID = &row.PeerDeviceID
	}

	_, err := s.db.Exec(
		`INSERT INTO transfer_history (
			transfer_id, peer_device_id, direction, final_state,
			bytes_done, bytes_total, started_at, completed_at,
			successful_count, failed_count, skipped_count, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transfer_id) DO UPDATE SET
			final_state      = excluded.final_state,
			bytes_done       = excluded.bytes_done,
			completed_at     = excluded.completed_at,
			successful_count = excluded.successful_count,
			failed_count     = excluded.failed_count,
			skipped_count    = excluded.skipped_count,
			error_message    = excluded.error_message`,
		row.TransferID, nullString(peerDeviceID), row.Direction, row.FinalState,
		row.BytesDone, row.BytesTotal, row.StartedAt, row.CompletedAt,
		row.SuccessfulCount, row.FailedCount, row.SkippedCount, row.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("record transfer history %q: %w", row.TransferID, err)
	}
	return nil
}

// GetTransferHistory returns a single transfer's terminal record.
func (s *Store) GetTransferHistory(transferID string) (*TransferHistoryRow, error) {
	row := s.db.QueryRow(
		`SELECT transfer_id, peer_device_id, direction, final_state,
			bytes_done, bytes_total, started_at, completed_at,
			successful_count, failed_count, skipped_count, error_message
		FROM transfer_history WHERE transfer_id = ?`,
		transferID,
	)
	record, err := scanTransferHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer history %q: %w", transferID, err)
	}
	return record, nil
}

// ListTransferHistory returns the most recent transfers, optionally
// narrowed to a single peer, newest first.
func (s *Store) ListTransferHistory(peerDeviceID string, limit int) ([]TransferHistoryRow, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var rows *sql.Rows
	var err error
	if peerDeviceID != "" {
		rows, err = s.db.Query(
			`SELECT transfer_id, peer_device_id, direction, final_state,
				bytes_done, bytes_total, started_at, completed_at,
				successful_count, failed_count, skipped_count, error_message
			FROM transfer_history
			WHERE peer_device_id = ?
			ORDER BY completed_at DESC, transfer_id DESC
			LIMIT ?`,
			peerDeviceID, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT transfer_id, peer_device_id, direction, final_state,
				bytes_done, bytes_total, started_at, completed_at,
				successful_count, failed_count, skipped_count, error_message
			FROM transfer_history
			ORDER BY completed_at DESC, transfer_id DESC
			LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list transfer history: %w", err)
	}
	defer rows.Close()

	history := make([]TransferHistoryRow, 0)
	for rows.Next() {
		record, err := scanTransferHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer history row: %w", err)
		}
		history = append(history, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer history rows: %w", err)
	}
	return history, nil
}

func scanTransferHistory(row scanner) (*TransferHistoryRow, error) {
	var (
		record       TransferHistoryRow
		peerDeviceID sql.NullString
	)
	if err := row.Scan(
		&record.TransferID, &peerDeviceID, &record.Direction, &record.FinalState,
		&record.BytesDone, &record.BytesTotal, &record.StartedAt, &record.CompletedAt,
		&record.SuccessfulCount, &record.FailedCount, &record.SkippedCount, &record.ErrorMessage,
	); err != nil {
		return nil, err
	}
	record.PeerDeviceID = peerDeviceID.String
	return &record, nil
}
