package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertFolderTransfer inserts or replaces one folder-transfer grouping
// record (SPEC_FULL.md §6 supplement, adapted from the teacher's
// UpsertFolderTransfer).
func (s *Store) UpsertFolderTransfer(row FolderTransferRow) error {
	if row.FolderID == "" {
		return errors.New("folder_id is required")
	}
	if row.Direction != "send" && row.Direction != "receive" {
		return fmt.Errorf("invalid folder transfer direction %q", row.Direction)
	}

	var peerDeviceID *string
	if row.PeerDeviceID != "" {
		peerDeviceID = &row.PeerDeviceID
	}

	_, err := s.db.Exec(
		`INSERT INTO folder_transfers (
			folder_id, peer_device_id, direction, folder_name,
			total_files, total_size, transfer_status, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder_id) DO UPDATE SET
			transfer_status = excluded.transfer_status,
			total_files     = excluded.total_files,
			total_size      = excluded.total_size`,
		row.FolderID, nullString(peerDeviceID), row.Direction, row.FolderName,
		row.TotalFiles, row.TotalSize, row.TransferStatus, row.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert folder transfer %q: %w", row.FolderID, err)
	}
	return nil
}

// GetFolderTransfer looks up one folder-transfer grouping by id.
func (s *Store) GetFolderTransfer(folderID string) (*FolderTransferRow, error) {
	row := s.db.QueryRow(
		`SELECT folder_id, peer_device_id, direction, folder_name,
			total_files, total_size, transfer_status, timestamp
		FROM folder_transfers WHERE folder_id = ?`,
		folderID,
	)
	record, err := scanFolderTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder transfer %q: %w", folderID, err)
	}
	return record, nil
}

func scanFolderTransfer(row scanner) (*FolderTransferRow, error) {
	var (
		record       FolderTransferRow
		peerDeviceID sql.NullString
	)
	if err := row.Scan(
		&record.FolderID, &peerDeviceID, &record.Direction, &record.FolderName,
		&record.TotalFiles, &record.TotalSize, &record.TransferStatus, &record.Timestamp,
	); err != nil {
		return nil, err
	}
	record.PeerDeviceID = peerDeviceID.String
	return &record, nil
}
