package db

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordMounts stores the chroot mounts of a run in mount order
func (d *DB) RecordMounts(runID string, mounts []MountRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range mounts {
		m := &mounts[i]
		if m.MountedAt.IsZero() {
			m.MountedAt = now
		}
		result, err := tx.Exec(`
			INSERT INTO mounts (run_id, source, target, mounted_at)
			VALUES (?, ?, ?, ?)
		`, runID, m.Source, m.Target, m.MountedAt)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record mount %s: %w", m.Target, err)
		}
		m.ID, _ = result.LastInsertId()
		m.RunID = runID
	}

	return tx.Commit()
}

// ActiveMounts returns unreleased mounts, most recent first, which is the
// order they must be unmounted in
func (d *DB) ActiveMounts() ([]*MountRecord, error) {
	rows, err := d.conn.Query(`
		SELECT id, run_id, source, target, released, mounted_at, released_at
		FROM mounts
		WHERE released = 0
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mounts: %w", err)
	}
	defer rows.Close()

	var mounts []*MountRecord
	for rows.Next() {
		var m MountRecord
		var releasedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.RunID, &m.Source, &m.Target, &m.Released, &m.MountedAt, &releasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mount: %w", err)
		}
		m.ReleasedAt = timePtr(releasedAt)
		mounts = append(mounts, &m)
	}
	return mounts, rows.Err()
}

// MarkReleased flags a mount as unmounted
func (d *DB) MarkReleased(id int64) error {
	_, err := d.conn.Exec(`
		UPDATE mounts SET released = 1, released_at = ? WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to release mount: %w", err)
	}
	return nil
}
