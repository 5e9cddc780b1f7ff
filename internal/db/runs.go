package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BeginRun records the start of a repair and assigns it an ID
func (d *DB) BeginRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = StatusRunning

	_, err := d.conn.Exec(`
		INSERT INTO runs (id, device, subvolume, distribution, hostname, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Device, nullString(run.Subvolume), run.Distribution,
		nullString(run.Hostname), run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// FinishRun stores the final status of a run
func (d *DB) FinishRun(id, status, errorKind, errMsg string) error {
	_, err := d.conn.Exec(`
		UPDATE runs SET status = ?, error_kind = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, status, nullString(errorKind), nullString(errMsg), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun returns a run by ID, nil if unknown
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.conn.QueryRow(`
		SELECT id, device, subvolume, distribution, hostname, status, error_kind, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// RecentRuns returns the most recent runs, newest first
func (d *DB) RecentRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.conn.Query(`
		SELECT id, device, subvolume, distribution, hostname, status, error_kind, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var subvol, hostname, errKind, errMsg sql.NullString
	var finished sql.NullTime

	err := s.Scan(&run.ID, &run.Device, &subvol, &run.Distribution, &hostname,
		&run.Status, &errKind, &errMsg, &run.StartedAt, &finished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Subvolume = subvol.String
	run.Hostname = hostname.String
	run.ErrorKind = errKind.String
	run.Error = errMsg.String
	run.FinishedAt = timePtr(finished)
	return &run, nil
}
