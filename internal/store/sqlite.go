package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"safety-tracker/internal/models"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLStore struct {
	*sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLStore{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return s, nil
}

// MigrateUp runs all pending migrations. No change is not an error.
func (s *SQLStore) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the shared *sql.DB.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version; 0 when nothing has been
// applied.
func (s *SQLStore) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *SQLStore) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func (s *SQLStore) Touch(ctx context.Context, subjectID string) error {
	_, err := s.ExecContext(ctx,
		`INSERT OR IGNORE INTO subjects (subject_id, first_seen_unix_nanos) VALUES (?, ?)`,
		subjectID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to register subject: %w", err)
	}
	return nil
}

func (s *SQLStore) Seen(ctx context.Context, subjectID string) (bool, error) {
	var n int
	err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects WHERE subject_id = ?`, subjectID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up subject: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Record(ctx context.Context, rec models.AnomalyRecord) (int64, error) {
	if err := s.Touch(ctx, rec.SubjectID); err != nil {
		return 0, err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.ExecContext(ctx,
		`INSERT INTO anomaly_alerts (
			subject_id, latitude, longitude, timestamp_unix_nanos, anomaly_score,
			is_resolved, resolution_notes, created_at_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SubjectID, rec.Latitude, rec.Longitude, rec.Timestamp.UnixNano(), rec.AnomalyScore,
		rec.Resolved, rec.ResolutionNotes, createdAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert anomaly record: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLStore) CountSince(ctx context.Context, subjectID string, since time.Time) (int, error) {
	var n int
	err := s.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM anomaly_alerts WHERE subject_id = ? AND timestamp_unix_nanos >= ?`,
		subjectID, since.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count anomaly records: %w", err)
	}
	return n, nil
}

func (s *SQLStore) ListUnresolved(ctx context.Context) ([]models.AnomalyRecord, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT id, subject_id, latitude, longitude, timestamp_unix_nanos, anomaly_score,
			is_resolved, resolution_notes, created_at_unix_nanos
		FROM anomaly_alerts
		WHERE is_resolved = 0
		ORDER BY timestamp_unix_nanos DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomaly records: %w", err)
	}
	defer rows.Close()

	records := []models.AnomalyRecord{}
	for rows.Next() {
		var rec models.AnomalyRecord
		var ts, created int64
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Latitude, &rec.Longitude, &ts,
			&rec.AnomalyScore, &rec.Resolved, &rec.ResolutionNotes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly record: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		rec.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLStore) Resolve(ctx context.Context, id int64, notes string) error {
	res, err := s.ExecContext(ctx,
		`UPDATE anomaly_alerts SET is_resolved = 1, resolution_notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		return fmt.Errorf("failed to resolve anomaly record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteForSubject(ctx context.Context, subjectID string) (int64, error) {
	res, err := s.ExecContext(ctx, `DELETE FROM anomaly_alerts WHERE subject_id = ?`, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete anomaly records: %w", err)
	}
	return res.RowsAffected()
}
