// Package identity persists the anonymous user a scanning application
// attaches to its results, so one user is created per application and
// reused across runs.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scanstream/internal/identity/migrations"
	"scanstream/internal/recognition"
)

// ErrNotFound is returned when no user is stored for an application.
var ErrNotFound = errors.New("identity: user not found")

// Store persists anonymous users in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// StorageKey is the key an application's user is stored under.
func StorageKey(appID string) string {
	return "scanthng-" + appID
}

// Open opens a SQLite identity store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the user stored for appID.
func (s *Store) Load(ctx context.Context, appID string) (recognition.User, error) {
	if err := ctx.Err(); err != nil {
		return recognition.User{}, err
	}
	var user recognition.User
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, api_key FROM anonymous_users WHERE storage_key = ?`,
		StorageKey(appID),
	).Scan(&user.ID, &user.APIKey)
	if errors.Is(err, sql.ErrNoRows) {
		return recognition.User{}, ErrNotFound
	}
	if err != nil {
		return recognition.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Save stores user for appID, replacing any previous one.
func (s *Store) Save(ctx context.Context, appID string, user recognition.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(user.APIKey) == "" {
		return fmt.Errorf("user api key is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO anonymous_users (storage_key, user_id, api_key, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET
		   user_id = excluded.user_id,
		   api_key = excluded.api_key,
		   created_at = excluded.created_at`,
		StorageKey(appID),
		user.ID,
		user.APIKey,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

const migrationTable = "schema_migrations"

// applyMigrations runs each embedded file's Up section at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var found int
		err := sqlDB.QueryRow(`SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, up)
	if start == -1 {
		return content
	}
	content = content[start+len(up):]
	if end := strings.Index(content, down); end != -1 {
		content = content[:end]
	}
	return content
}
