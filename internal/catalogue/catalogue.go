// Package catalogue implements the local state catalogue: a SQLite-backed
// cache of two relations, "local" (paths seen by the last scan) and
// "glacier" (paths known to be backed up, with their content hash and
// mtime). It answers the five diff queries the reconciliation engine
// needs and is otherwise reconstructible from the metadata store and
// object store (see Bootstrap in package engine).
package catalogue

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LocalFile is a path seen during the current scan.
type LocalFile struct {
	Path  string
	MTime time.Time
}

// GlacierFile is a path known to have been uploaded.
type GlacierFile struct {
	Path        string
	ContentHash string
	MTime       time.Time
}

// Catalogue wraps a single SQLite connection. Per spec's concurrency
// model the catalogue is accessed through one connection and its
// operations are serialised by capping the pool at one open connection.
type Catalogue struct {
	db     *sql.DB
	logger *slog.Logger

	localStmts   localStatements
	glacierStmts glacierStatements
}

type localStatements struct {
	insert, truncate *sql.Stmt
}

type glacierStatements struct {
	get, upsert, delete, truncate, newFiles, changedFiles, missingFiles, isEmpty, all *sql.Stmt
}

// Open creates or migrates the catalogue database at dbPath ("" or
// ":memory:" for an in-memory instance used by tests) and prepares all
// statements.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Catalogue, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	logger.Info("catalogue: opening database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("catalogue: open sqlite: %w", err)
	}

	// Single connection: catalogue operations are serialised by the pool,
	// not by an engine-side mutex (per the concurrency model).
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	c := &Catalogue{db: db, logger: logger}

	if err := c.prepareAll(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalogue: prepare statements: %w", err)
	}

	logger.Info("catalogue: ready", "path", dbPath)

	return c, nil
}

// Close releases prepared statements and the database connection.
func (c *Catalogue) Close() error {
	return c.db.Close()
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("catalogue: set pragma %q: %w", p, err)
		}
	}

	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("catalogue: migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("catalogue: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("catalogue: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("catalogue: applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

const (
	sqlInsertLocal   = `INSERT INTO local (path, mtime) VALUES (?, ?)`
	sqlTruncateLocal = `DELETE FROM local`

	sqlGetGlacier      = `SELECT path, content_hash, mtime FROM glacier WHERE path = ?`
	sqlUpsertGlacier   = `INSERT INTO glacier (path, content_hash, mtime) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash, mtime = excluded.mtime`
	sqlDeleteGlacier   = `DELETE FROM glacier WHERE path = ?`
	sqlTruncateGlacier = `DELETE FROM glacier`
	sqlGlacierIsEmpty  = `SELECT NOT EXISTS(SELECT 1 FROM glacier)`
	sqlGlacierAll      = `SELECT path, content_hash, mtime FROM glacier`

	sqlNewFiles = `SELECT l.path, l.mtime FROM local l
		LEFT JOIN glacier g ON g.path = l.path
		WHERE g.path IS NULL`

	sqlChangedFiles = `SELECT l.path, l.mtime, g.content_hash FROM local l
		JOIN glacier g ON g.path = l.path
		WHERE l.mtime > g.mtime`

	sqlMissingFiles = `SELECT g.path, g.content_hash, g.mtime FROM glacier g
		LEFT JOIN local l ON l.path = g.path
		WHERE l.path IS NULL`
)

func (c *Catalogue) prepareAll(ctx context.Context) error {
	if err := prepareAll(ctx, c.db, []stmtDef{
		{&c.localStmts.insert, sqlInsertLocal, "insertLocal"},
		{&c.localStmts.truncate, sqlTruncateLocal, "truncateLocal"},
	}); err != nil {
		return err
	}

	return prepareAll(ctx, c.db, []stmtDef{
		{&c.glacierStmts.get, sqlGetGlacier, "getGlacier"},
		{&c.glacierStmts.upsert, sqlUpsertGlacier, "upsertGlacier"},
		{&c.glacierStmts.delete, sqlDeleteGlacier, "deleteGlacier"},
		{&c.glacierStmts.truncate, sqlTruncateGlacier, "truncateGlacier"},
		{&c.glacierStmts.newFiles, sqlNewFiles, "newFiles"},
		{&c.glacierStmts.changedFiles, sqlChangedFiles, "changedFiles"},
		{&c.glacierStmts.missingFiles, sqlMissingFiles, "missingFiles"},
		{&c.glacierStmts.isEmpty, sqlGlacierIsEmpty, "glacierIsEmpty"},
		{&c.glacierStmts.all, sqlGlacierAll, "glacierAll"},
	})
}

// --- local relation ---

// InsertLocal records a path seen by the scanner this run.
func (c *Catalogue) InsertLocal(ctx context.Context, path string, mtime time.Time) error {
	_, err := c.localStmts.insert.ExecContext(ctx, path, mtime.Unix())
	if err != nil {
		return fmt.Errorf("catalogue: insert local %s: %w", path, err)
	}

	return nil
}

// TruncateLocal empties the local relation. Called at the start and end
// of every run per the LocalFile lifetime invariant.
func (c *Catalogue) TruncateLocal(ctx context.Context) error {
	if _, err := c.localStmts.truncate.ExecContext(ctx); err != nil {
		return fmt.Errorf("catalogue: truncate local: %w", err)
	}

	return nil
}

// --- glacier relation ---

// GetGlacier returns the GlacierFile at path, or (nil, nil) if absent.
func (c *Catalogue) GetGlacier(ctx context.Context, path string) (*GlacierFile, error) {
	var (
		g       GlacierFile
		mtime   int64
	)

	err := c.glacierStmts.get.QueryRowContext(ctx, path).Scan(&g.Path, &g.ContentHash, &mtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("catalogue: get glacier %s: %w", path, err)
	}

	g.MTime = time.Unix(mtime, 0).UTC()

	return &g, nil
}

// UpsertGlacier inserts or updates a GlacierFile row.
func (c *Catalogue) UpsertGlacier(ctx context.Context, g GlacierFile) error {
	_, err := c.glacierStmts.upsert.ExecContext(ctx, g.Path, g.ContentHash, g.MTime.Unix())
	if err != nil {
		return fmt.Errorf("catalogue: upsert glacier %s: %w", g.Path, err)
	}

	return nil
}

// DeleteGlacier removes the GlacierFile row at path, if any.
func (c *Catalogue) DeleteGlacier(ctx context.Context, path string) error {
	if _, err := c.glacierStmts.delete.ExecContext(ctx, path); err != nil {
		return fmt.Errorf("catalogue: delete glacier %s: %w", path, err)
	}

	return nil
}

// TruncateGlacier empties the glacier relation (used by "clear-database").
func (c *Catalogue) TruncateGlacier(ctx context.Context) error {
	if _, err := c.glacierStmts.truncate.ExecContext(ctx); err != nil {
		return fmt.Errorf("catalogue: truncate glacier: %w", err)
	}

	return nil
}

// GlacierEmpty reports whether no GlacierFile rows exist, triggering
// bootstrap from the metadata store.
func (c *Catalogue) GlacierEmpty(ctx context.Context) (bool, error) {
	var empty bool
	if err := c.glacierStmts.isEmpty.QueryRowContext(ctx).Scan(&empty); err != nil {
		return false, fmt.Errorf("catalogue: glacier_empty: %w", err)
	}

	return empty, nil
}

// AllGlacier returns every GlacierFile row, used by the repair pass
// (engine.Repair) to look for rows the metadata store no longer backs.
func (c *Catalogue) AllGlacier(ctx context.Context) ([]GlacierFile, error) {
	rows, err := c.glacierStmts.all.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalogue: all glacier: %w", err)
	}
	defer rows.Close()

	return scanGlacierRows(rows)
}

// NewFiles returns LocalFile rows whose path has no GlacierFile row.
func (c *Catalogue) NewFiles(ctx context.Context) ([]LocalFile, error) {
	rows, err := c.glacierStmts.newFiles.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalogue: new_files: %w", err)
	}
	defer rows.Close()

	var out []LocalFile

	for rows.Next() {
		var (
			f     LocalFile
			mtime int64
		)

		if err := rows.Scan(&f.Path, &mtime); err != nil {
			return nil, fmt.Errorf("catalogue: scan new_files: %w", err)
		}

		f.MTime = time.Unix(mtime, 0).UTC()
		out = append(out, f)
	}

	return out, rows.Err()
}

// ChangedFile pairs a LocalFile whose mtime moved forward with the
// content hash it previously resolved to.
type ChangedFile struct {
	Path    string
	MTime   time.Time
	OldHash string
}

// ChangedFiles returns LocalFile rows joined to a GlacierFile where
// local.mtime > glacier.mtime.
func (c *Catalogue) ChangedFiles(ctx context.Context) ([]ChangedFile, error) {
	rows, err := c.glacierStmts.changedFiles.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalogue: changed_files: %w", err)
	}
	defer rows.Close()

	var out []ChangedFile

	for rows.Next() {
		var (
			f     ChangedFile
			mtime int64
		)

		if err := rows.Scan(&f.Path, &mtime, &f.OldHash); err != nil {
			return nil, fmt.Errorf("catalogue: scan changed_files: %w", err)
		}

		f.MTime = time.Unix(mtime, 0).UTC()
		out = append(out, f)
	}

	return out, rows.Err()
}

// MissingFiles returns GlacierFile rows whose path has no LocalFile row.
func (c *Catalogue) MissingFiles(ctx context.Context) ([]GlacierFile, error) {
	rows, err := c.glacierStmts.missingFiles.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalogue: missing_files: %w", err)
	}
	defer rows.Close()

	return scanGlacierRows(rows)
}

func scanGlacierRows(rows *sql.Rows) ([]GlacierFile, error) {
	var out []GlacierFile

	for rows.Next() {
		var (
			g     GlacierFile
			mtime int64
		)

		if err := rows.Scan(&g.Path, &g.ContentHash, &mtime); err != nil {
			return nil, fmt.Errorf("catalogue: scan glacier row: %w", err)
		}

		g.MTime = time.Unix(mtime, 0).UTC()
		out = append(out, g)
	}

	return out, rows.Err()
}
