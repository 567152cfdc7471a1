// Package db provides structured access and migrations for the export history store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"tracepayload/internal/models"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
	driver string
}

// New opens a database connection for driver and dsn
func New(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	if driver == DriverSQLite && dsn != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     db,
		driver: driver,
	}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS payload_exports (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			reference_date TEXT NOT NULL,
			transaction_pairs INTEGER NOT NULL DEFAULT 0,
			discount_pairs INTEGER NOT NULL DEFAULT 0,
			diagnostics INTEGER NOT NULL DEFAULT 0,
			file_path TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payload_exports_transaction ON payload_exports(transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payload_exports_created ON payload_exports(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// RecordExport stores one export record
func (db *DB) RecordExport(ctx context.Context, rec models.ExportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := db.ExecContext(ctx, db.rebind(`INSERT INTO payload_exports
		(id, transaction_id, reference_date, transaction_pairs, discount_pairs, diagnostics, file_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.TransactionID, rec.ReferenceDate, rec.TransactionPairs, rec.DiscountPairs,
		rec.Diagnostics, rec.FilePath, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// ListExports returns the exports of transactionID, newest first. An empty id lists every export.
func (db *DB) ListExports(ctx context.Context, transactionID string, limit int) ([]models.ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, transaction_id, reference_date, transaction_pairs, discount_pairs, diagnostics,
		COALESCE(file_path, ''), created_at FROM payload_exports`
	args := []interface{}{}
	if transactionID != "" {
		query += ` WHERE transaction_id = ?`
		args = append(args, transactionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var records []models.ExportRecord
	for rows.Next() {
		var rec models.ExportRecord
		if err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.ReferenceDate, &rec.TransactionPairs,
			&rec.DiscountPairs, &rec.Diagnostics, &rec.FilePath, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	return records, nil
}

// rebind rewrites ? placeholders into the driver's placeholder syntax.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
