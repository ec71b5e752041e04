package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding persisted preferences and the
// boot restore record.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "devsettings.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// The boot receiver and the daemon may open the same file concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Preferences ---

func (s *Store) SetString(namespace, key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetString returns the stored value, or ErrNotFound if the key was never written.
func (s *Store) GetString(namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE namespace = ? AND key = ?", namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// Contains reports whether key has ever been written in namespace.
func (s *Store) Contains(namespace, key string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM preferences WHERE namespace = ? AND key = ?", namespace, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) SetBool(namespace, key string, value bool) error {
	return s.SetString(namespace, key, strconv.FormatBool(value))
}

// GetBool returns the stored boolean. A missing key is created with def.
func (s *Store) GetBool(namespace, key string, def bool) (bool, error) {
	raw, err := s.GetString(namespace, key)
	if err == ErrNotFound {
		return def, s.SetBool(namespace, key, def)
	}
	if err != nil {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("preference %s/%s=%q is not a bool: %w", namespace, key, raw, err)
	}
	return v, nil
}

func (s *Store) SetInt(namespace, key string, value int) error {
	return s.SetString(namespace, key, strconv.Itoa(value))
}

// GetInt returns the stored integer. A missing key is created with def.
func (s *Store) GetInt(namespace, key string, def int) (int, error) {
	raw, err := s.GetString(namespace, key)
	if err == ErrNotFound {
		return def, s.SetInt(namespace, key, def)
	}
	if err != nil {
		return def, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("preference %s/%s=%q is not an integer: %w", namespace, key, raw, err)
	}
	return v, nil
}

// ListPreferences returns every preference in namespace ordered by key.
func (s *Store) ListPreferences(namespace string) ([]Preference, error) {
	rows, err := s.db.Query(`
		SELECT namespace, key, value, updated_at FROM preferences
		WHERE namespace = ? ORDER BY key ASC`, namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Preference
	for rows.Next() {
		var p Preference
		var updatedAt string
		if err := rows.Scan(&p.Namespace, &p.Key, &p.Value, &updatedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		p.UpdatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Boot runs ---

// RecordBoot marks bootID as restored. It returns false if the boot was
// already recorded, leaving the existing record untouched.
func (s *Store) RecordBoot(bootID, summary string) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO boot_runs (boot_id, restored_at, summary) VALUES (?, ?, ?)
		ON CONFLICT(boot_id) DO NOTHING`,
		bootID, time.Now().UTC().Format(time.RFC3339), summary,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetBootRun(bootID string) (BootRun, error) {
	var b BootRun
	var restoredAt string
	err := s.db.QueryRow(`SELECT boot_id, restored_at, summary FROM boot_runs WHERE boot_id = ?`, bootID).
		Scan(&b.BootID, &restoredAt, &b.Summary)
	if err == sql.ErrNoRows {
		return BootRun{}, ErrNotFound
	}
	if err != nil {
		return BootRun{}, err
	}
	t, err := time.Parse(time.RFC3339, restoredAt)
	if err != nil {
		return BootRun{}, fmt.Errorf("parsing restored_at: %w", err)
	}
	b.RestoredAt = t
	return b, nil
}

// ForgetBoot removes the record for bootID so the next restore runs again.
func (s *Store) ForgetBoot(bootID string) error {
	_, err := s.db.Exec(`DELETE FROM boot_runs WHERE boot_id = ?`, bootID)
	return err
}

// LastBootRun returns the most recent restore record.
func (s *Store) LastBootRun() (BootRun, error) {
	var b BootRun
	var restoredAt string
	err := s.db.QueryRow(`SELECT boot_id, restored_at, summary FROM boot_runs ORDER BY restored_at DESC LIMIT 1`).
		Scan(&b.BootID, &restoredAt, &b.Summary)
	if err == sql.ErrNoRows {
		return BootRun{}, ErrNotFound
	}
	if err != nil {
		return BootRun{}, err
	}
	t, err := time.Parse(time.RFC3339, restoredAt)
	if err != nil {
		return BootRun{}, fmt.Errorf("parsing restored_at: %w", err)
	}
	b.RestoredAt = t
	return b, nil
}
