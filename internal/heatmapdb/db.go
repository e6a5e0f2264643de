// Package heatmapdb persists per-minute motion intensity records in SQLite.
//
// The store enforces the (camera_id, minute_start) uniqueness invariant that
// the pipeline's idempotency relies on: concurrent drivers racing on the same
// minute are settled by the unique index, and the loser observes a benign
// "already present" result rather than an error.
package heatmapdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/roz-data/motion.report/internal/heatmap"
)

type DB struct {
	*sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS heatmap_minutes (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		camera_id         TEXT NOT NULL,
		minute_start      INTEGER NOT NULL,
		height            INTEGER NOT NULL,
		width             INTEGER NOT NULL,
		downscale_factor  REAL NOT NULL,
		intensity_blob    BLOB NOT NULL,
		frame_count       INTEGER NOT NULL,
		total_intensity   REAL NOT NULL,
		max_intensity     REAL NOT NULL,
		nonzero_pixels    INTEGER NOT NULL,
		source_segment    TEXT,
		processed_at      INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_heatmap_minutes_camera_minute
		ON heatmap_minutes(camera_id, minute_start);
	CREATE INDEX IF NOT EXISTS idx_heatmap_minutes_minute
		ON heatmap_minutes(minute_start);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// NewDB opens (creating if necessary) the heatmap database at path and
// ensures the schema exists.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// OpenDB opens the database without touching the schema. Used by the migrate
// subcommand, which manages the schema itself.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &DB{db}, nil
}

// InsertMinuteIfAbsent writes a record unless one already exists for its
// (camera, minute). Returns true if the record was inserted. Atomic: the
// unique index decides races between concurrent writers.
func (db *DB) InsertMinuteIfAbsent(rec *heatmap.MinuteRecord) (bool, error) {
	if rec.CameraID == "" {
		return false, fmt.Errorf("camera id is required")
	}
	if rec.Height <= 0 || rec.Width <= 0 {
		return false, fmt.Errorf("invalid record shape %dx%d", rec.Height, rec.Width)
	}

	result, err := db.Exec(`
		INSERT OR IGNORE INTO heatmap_minutes (
			camera_id, minute_start, height, width, downscale_factor,
			intensity_blob, frame_count, total_intensity, max_intensity,
			nonzero_pixels, source_segment, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CameraID,
		rec.MinuteStart.UTC().Unix(),
		rec.Height,
		rec.Width,
		rec.DownscaleFactor,
		rec.Intensity,
		rec.FrameCount,
		rec.TotalIntensity,
		rec.MaxIntensity,
		rec.NonzeroPixels,
		rec.SourceSegment,
		rec.ProcessedAt.UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert minute: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert minute rows affected: %w", err)
	}
	return n == 1, nil
}

// MinuteExists reports whether a record exists for the (camera, minute).
func (db *DB) MinuteExists(cameraID string, minute time.Time) (bool, error) {
	var one int
	err := db.QueryRow(
		`SELECT 1 FROM heatmap_minutes WHERE camera_id = ? AND minute_start = ?`,
		cameraID, minute.UTC().Truncate(time.Minute).Unix(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("minute exists: %w", err)
	}
	return true, nil
}

// MinutesInRange returns all records for a camera in the half-open range
// [start, end), ordered by minute. When includeBlob is false the intensity
// blob column is skipped so activity queries never pay for decode-sized rows.
func (db *DB) MinutesInRange(cameraID string, start, end time.Time, includeBlob bool) ([]heatmap.MinuteRecord, error) {
	blobCol := "NULL"
	if includeBlob {
		blobCol = "intensity_blob"
	}

	rows, err := db.Query(fmt.Sprintf(`
		SELECT id, camera_id, minute_start, height, width, downscale_factor,
		       %s, frame_count, total_intensity, max_intensity,
		       nonzero_pixels, source_segment, processed_at
		FROM heatmap_minutes
		WHERE camera_id = ? AND minute_start >= ? AND minute_start < ?
		ORDER BY minute_start`, blobCol),
		cameraID, start.UTC().Unix(), end.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	var records []heatmap.MinuteRecord
	for rows.Next() {
		var rec heatmap.MinuteRecord
		var minuteUnix, processedUnix int64
		var source sql.NullString
		var blob []byte
		if err := rows.Scan(
			&rec.ID, &rec.CameraID, &minuteUnix, &rec.Height, &rec.Width,
			&rec.DownscaleFactor, &blob, &rec.FrameCount, &rec.TotalIntensity,
			&rec.MaxIntensity, &rec.NonzeroPixels, &source, &processedUnix,
		); err != nil {
			return nil, fmt.Errorf("scan minute: %w", err)
		}
		rec.MinuteStart = time.Unix(minuteUnix, 0).UTC()
		rec.ProcessedAt = time.Unix(processedUnix, 0).UTC()
		rec.SourceSegment = source.String
		rec.Intensity = blob
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate range: %w", err)
	}
	return records, nil
}

// CameraStats summarises one camera's stored activity.
type CameraStats struct {
	CameraID       string    `json:"camera_id"`
	Minutes        int       `json:"minutes"`
	FirstMinute    time.Time `json:"first_minute"`
	LastMinute     time.Time `json:"last_minute"`
	TotalIntensity float64   `json:"total_intensity"`
}

// ListCameras returns every camera with stored records and its basic
// activity stats.
func (db *DB) ListCameras() ([]CameraStats, error) {
	rows, err := db.Query(`
		SELECT camera_id, COUNT(*), MIN(minute_start), MAX(minute_start), SUM(total_intensity)
		FROM heatmap_minutes
		GROUP BY camera_id
		ORDER BY camera_id`)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []CameraStats
	for rows.Next() {
		var cs CameraStats
		var first, last int64
		if err := rows.Scan(&cs.CameraID, &cs.Minutes, &first, &last, &cs.TotalIntensity); err != nil {
			return nil, fmt.Errorf("scan camera stats: %w", err)
		}
		cs.FirstMinute = time.Unix(first, 0).UTC()
		cs.LastMinute = time.Unix(last, 0).UTC()
		cameras = append(cameras, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cameras: %w", err)
	}
	return cameras, nil
}

// DeleteMinutesBefore removes records older than cutoff, for retention.
// Returns the number of rows deleted.
func (db *DB) DeleteMinutesBefore(cutoff time.Time) (int64, error) {
	result, err := db.Exec(
		`DELETE FROM heatmap_minutes WHERE minute_start < ?`,
		cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete minutes: %w", err)
	}
	return result.RowsAffected()
}

// Stats describes the whole store.
type Stats struct {
	Records      int       `json:"records"`
	Cameras      int       `json:"cameras"`
	EarliestData time.Time `json:"earliest_data"`
	LatestData   time.Time `json:"latest_data"`
}

// DatabaseStats returns store-wide record and camera counts plus the data
// time range. Zero times mean an empty store.
func (db *DB) DatabaseStats() (*Stats, error) {
	var s Stats
	var first, last sql.NullInt64
	err := db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT camera_id), MIN(minute_start), MAX(minute_start)
		FROM heatmap_minutes`).Scan(&s.Records, &s.Cameras, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("database stats: %w", err)
	}
	if first.Valid {
		s.EarliestData = time.Unix(first.Int64, 0).UTC()
	}
	if last.Valid {
		s.LatestData = time.Unix(last.Int64, 0).UTC()
	}
	return &s, nil
}
