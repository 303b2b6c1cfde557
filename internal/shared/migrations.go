package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration is one schema version, loaded from sql/NNNN_<name>_up.sql and its _down.sql pair.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// parseMigrationName splits "0001_plan_stops_up.sql" into 1, "plan_stops" and "up".
func parseMigrationName(file string) (version int, name, direction string, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", "", false
	}

	prefix, rest, found := strings.Cut(base, "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", "", false
	}

	switch {
	case strings.HasSuffix(rest, "_up"):
		return version, strings.TrimSuffix(rest, "_up"), "up", true
	case strings.HasSuffix(rest, "_down"):
		return version, strings.TrimSuffix(rest, "_down"), "down", true
	}
	return 0, "", "", false
}

// loadMigrations reads the embedded scripts sorted by version. Every version needs both halves.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, direction, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", m.Version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, nil
}

// Migrator applies and reverts the embedded schema, tracking versions in schema_migrations.
type Migrator struct {
	db     *sql.DB
	logger *log.Logger
}

// NewMigrator creates a Migrator. A nil logger discards output.
func NewMigrator(db *sql.DB, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = DiscardLogger()
	}
	return &Migrator{db: db, logger: WithLogger(logger, "component", "migrations")}
}

// RunMigrations applies every pending migration without logging.
func RunMigrations(db *sql.DB) error {
	_, err := NewMigrator(db, nil).Up()
	return err
}

// Up applies pending migrations in version order and returns the versions it applied.
func (m *Migrator) Up() ([]Migration, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := m.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		err := m.inTx(migration.Up, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name)
		if err != nil {
			return done, fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		m.logger.Info("applied migration", "version", migration.Version, "name", migration.Name)
		done = append(done, migration)
	}
	return done, nil
}

// Rollback reverts the newest applied migration and returns it.
func (m *Migrator) Rollback() (*Migration, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := m.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, ok, err := m.Version()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no migrations to roll back", ErrInvalidArgument)
	}

	i := slices.IndexFunc(migrations, func(mg Migration) bool { return mg.Version == current })
	if i < 0 {
		return nil, fmt.Errorf("migration version %d not found", current)
	}
	migration := migrations[i]

	if err := m.inTx(migration.Down, "DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
		return nil, fmt.Errorf("failed to roll back migration %d (%s): %w", migration.Version, migration.Name, err)
	}
	m.logger.Info("rolled back migration", "version", migration.Version, "name", migration.Name)
	return &migration, nil
}

// Version reports the newest applied version; ok is false when nothing is applied.
func (m *Migrator) Version() (version int, ok bool, err error) {
	var v sql.NullInt64
	if err := m.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), v.Valid, nil
}

func (m *Migrator) ensureTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// inTx runs script and the bookkeeping statement in one transaction.
func (m *Migrator) inTx(script, record string, args ...any) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(script) {
		m.logger.Debug("exec", "sql", stmt)
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	if _, err := tx.Exec(record, args...); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements drops `--` comments and blank lines and splits the script on semicolons.
func splitStatements(script string) []string {
	var lines []string
	for line := range strings.SplitSeq(script, "\n") {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var out []string
	for stmt := range strings.SplitSeq(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
