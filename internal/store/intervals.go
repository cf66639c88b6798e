package store

import (
	"fmt"
	"time"
)

// Interval is one completed stretch of tracked time, recorded locally when a
// timer is stopped or switched away from.
type Interval struct {
	ID          int
	ClockifyID  string
	ProjectID   string
	ProjectName string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Minutes     int
	CreatedAt   time.Time
}

func (db *DB) InsertInterval(iv *Interval) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO intervals (clockify_id, project_id, project_name, description, start_time, end_time, minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iv.ClockifyID, iv.ProjectID, iv.ProjectName, iv.Description,
		iv.StartTime.UTC().Format(time.RFC3339),
		iv.EndTime.UTC().Format(time.RFC3339),
		iv.Minutes,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting interval: %w", err)
	}
	return result.LastInsertId()
}

func (db *DB) GetTodayIntervals() ([]Interval, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	return db.queryIntervals(
		`SELECT id, clockify_id, project_id, project_name, description, start_time, end_time, minutes, created_at
		 FROM intervals
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		startOfDay.UTC().Format(time.RFC3339),
		endOfDay.UTC().Format(time.RFC3339),
	)
}

func (db *DB) queryIntervals(query string, args ...any) ([]Interval, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying intervals: %w", err)
	}
	defer rows.Close()

	var intervals []Interval
	for rows.Next() {
		var iv Interval
		var start, end, created string
		if err := rows.Scan(&iv.ID, &iv.ClockifyID, &iv.ProjectID, &iv.ProjectName, &iv.Description, &start, &end, &iv.Minutes, &created); err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}
		if iv.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("parsing start time: %w", err)
		}
		if iv.EndTime, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("parsing end time: %w", err)
		}
		// created_at comes from sqlite's CURRENT_TIMESTAMP
		if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			iv.CreatedAt = t
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}
