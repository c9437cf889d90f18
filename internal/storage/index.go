/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storymark/internal/dialogue"
	applog "storymark/internal/log"
	"storymark/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project ephemeral/index data under the project root.
	IndexDirName  = ".smk"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .smk/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// The returned *sql.DB is ready for use. Callers may close it when no longer needed.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .smk dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .smk dir: %w", err)
	}

	path := IndexPath(projectRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ensure WAL mode is active.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enforce foreign keys; the graph tables reference documents.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	// Ensure core index schema exists (documents, FTS, graph tables, snapshots)
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	// Run migrations to bring DB schema up to date
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	// Create tables if not exist
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	// Check if a version row exists
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Insert new row with current schemaVersion for a fresh DB
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just log and continue
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Add lookup indexes for graph traversal and optimize FTS
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_choices_to ON choices(to_name);`,
				`CREATE INDEX IF NOT EXISTS idx_choices_from ON choices(script, from_name);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_documents(fts_documents) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		default:
			// Unknown future step; break
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// Core documents table: one row per content item of a parsed script
		// (plain text, styled text, unreserved signals) plus project metadata.
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id    INTEGER PRIMARY KEY,
			script    TEXT    NOT NULL,
			kind      TEXT    NOT NULL,
			start_off INTEGER NOT NULL DEFAULT 0,
			end_off   INTEGER NOT NULL DEFAULT 0,
			style     TEXT,
			text      TEXT
		);`,
		// Helpful indices for lookup
		`CREATE INDEX IF NOT EXISTS idx_documents_script ON documents(script);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);`,

		// Contentless FTS5 index fed from documents via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,

		// Bookmarks registered per script (graph nodes)
		`CREATE TABLE IF NOT EXISTS bookmarks (
			script   TEXT    NOT NULL,
			name     TEXT    NOT NULL,
			offset   INTEGER NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY(script, name)
		);`,

		// Choice edges per script (graph edges; from_name '' is the implicit root)
		`CREATE TABLE IF NOT EXISTS choices (
			script    TEXT    NOT NULL,
			from_name TEXT    NOT NULL,
			to_name   TEXT    NOT NULL,
			offset    INTEGER NOT NULL,
			position  INTEGER NOT NULL
		);`,

		// Script snapshots (history of script text for change tracking)
		`CREATE TABLE IF NOT EXISTS script_snapshots (
			id     INTEGER PRIMARY KEY,
			script TEXT    NOT NULL,
			ts     TEXT    NOT NULL,
			text   TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_script_snapshots_ts ON script_snapshots(script, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with documents.text
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, ph *ProjectHandle) (bool, error) {
	path := IndexPath(ph.Root)
	// Try to open DB; if fails, attempt backup+delete+rebuild
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, ph); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	// quick_check for corruption
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	// Probe core table
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM documents LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	// Backup and remove existing DB file
	backupIndexFile(path)
	_ = os.Remove(path)
	// Rebuild
	if err := RebuildIndex(ctx, ph); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .smk/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty performs a minimal index build when the documents table has
// no rows yet. It ensures the DB exists and populates it from the manifest and
// every referenced script that parses cleanly.
func BuildIndexIfEmpty(ctx context.Context, ph *ProjectHandle) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	// Check if documents has any rows
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents;").Scan(&cnt); err != nil {
		return fmt.Errorf("check documents count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildFromProject(ctx, db, ph)
}

// UpdateIndex updates the embedded index with changes from the project manifest.
// Minimal safe implementation: replace all content derived from the manifest.
func UpdateIndex(ctx context.Context, ph *ProjectHandle) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildFromProject(ctx, db, ph)
}

// RebuildIndex drops and recreates core index tables and rebuilds content from the manifest.
// It preserves meta/version tables. This is a safe operation; the index is derived from
// story.json and the script files.
func RebuildIndex(ctx context.Context, ph *ProjectHandle) error {
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer db.Close()
	// Drop core tables inside a transaction and recreate schema
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS bookmarks;",
		"DROP TABLE IF EXISTS choices;",
		"DROP TABLE IF EXISTS script_snapshots;",
		"DROP TRIGGER IF EXISTS documents_ai;",
		"DROP TRIGGER IF EXISTS documents_ad;",
		"DROP TRIGGER IF EXISTS documents_au;",
		"DROP TABLE IF EXISTS documents;",
		"DROP TABLE IF EXISTS fts_documents;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	// Recreate schema and populate
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildFromProject(ctx, db, ph)
}

// rebuildFromProject replaces all indexed content from the manifest and the
// referenced script files. Scripts that fail to parse are skipped; the parse
// is all-or-nothing so a failing script contributes no rows at all.
func rebuildFromProject(ctx context.Context, db *sql.DB, ph *ProjectHandle) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_rebuild")
	proj := ph.Project

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{"DELETE FROM documents;", "DELETE FROM bookmarks;", "DELETE FROM choices;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear index: %w", err)
		}
	}

	// Project-level metadata rows
	meta := []struct{ kind, text string }{
		{"project_name", strings.TrimSpace(proj.Name)},
		{"project_series", strings.TrimSpace(proj.Metadata.Series)},
		{"project_writers", strings.TrimSpace(proj.Metadata.Writers)},
		{"project_notes", strings.TrimSpace(proj.Metadata.Notes)},
	}
	for _, m := range meta {
		if m.text == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents(script, kind, text) VALUES('', ?, ?)`, m.kind, m.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert metadata row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	// Per-script content; each script is indexed in its own transaction.
	for _, ref := range proj.Scripts {
		src, err := os.ReadFile(ph.ScriptPath(ref))
		if err != nil {
			l.Warn("script unreadable, skipped", slog.String("script", ref.Name), slog.Any("err", err))
			continue
		}
		doc, graph, err := dialogue.Parse(string(src))
		if err != nil {
			l.Warn("script failed to parse, skipped", slog.String("script", ref.Name), slog.Any("err", err))
			continue
		}
		if err := indexScriptTx(ctx, db, ref.Name, doc, graph); err != nil {
			return fmt.Errorf("index script %s: %w", ref.Name, err)
		}
	}
	return nil
}

// IndexScript replaces the indexed rows for one script with content derived
// from an already-parsed document and graph.
func IndexScript(ctx context.Context, projectRoot, script string, doc *dialogue.Document, graph *dialogue.Graph) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return indexScriptTx(ctx, db, script, doc, graph)
}

func indexScriptTx(ctx context.Context, db *sql.DB, script string, doc *dialogue.Document, graph *dialogue.Graph) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{
		"DELETE FROM documents WHERE script=?;",
		"DELETE FROM bookmarks WHERE script=?;",
		"DELETE FROM choices WHERE script=?;",
	} {
		if _, err := tx.ExecContext(ctx, q, script); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear script rows: %w", err)
		}
	}

	ins, err := tx.PrepareContext(ctx, `INSERT INTO documents(script, kind, start_off, end_off, style, text) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, it := range doc.Items {
		var kind, style, text string
		switch it.Kind {
		case dialogue.ItemText:
			kind, text = "text", doc.TextOf(it)
		case dialogue.ItemStyledText:
			kind, text = "styled_text", doc.TextOf(it)
			style = it.Style.String()
		case dialogue.ItemSignal:
			kind = "signal"
			text = it.Prompt
		}
		if _, err := ins.ExecContext(ctx, script, kind, it.Span.Start, it.Span.End, style, text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert document row: %w", err)
		}
	}

	for i, name := range graph.Order {
		bm := graph.Bookmarks[name]
		if _, err := tx.ExecContext(ctx, `INSERT INTO bookmarks(script, name, offset, position) VALUES(?,?,?,?)`,
			script, bm.Name, bm.Offset, i); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert bookmark row: %w", err)
		}
	}
	for i, e := range graph.Edges {
		if _, err := tx.ExecContext(ctx, `INSERT INTO choices(script, from_name, to_name, offset, position) VALUES(?,?,?,?,?)`,
			script, e.From, e.To, e.Offset, i); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert choice row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReadGraph loads the indexed bookmarks and choice edges for one script,
// in their original document order.
func ReadGraph(ctx context.Context, db *sql.DB, script string) ([]dialogue.Bookmark, []dialogue.Edge, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, offset FROM bookmarks WHERE script=? ORDER BY position`, script)
	if err != nil {
		return nil, nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()
	var bms []dialogue.Bookmark
	for rows.Next() {
		var bm dialogue.Bookmark
		if err := rows.Scan(&bm.Name, &bm.Offset); err != nil {
			return nil, nil, fmt.Errorf("scan bookmark: %w", err)
		}
		bms = append(bms, bm)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("bookmarks rows: %w", err)
	}

	erows, err := db.QueryContext(ctx, `SELECT from_name, to_name, offset FROM choices WHERE script=? ORDER BY position`, script)
	if err != nil {
		return nil, nil, fmt.Errorf("query choices: %w", err)
	}
	defer erows.Close()
	var edges []dialogue.Edge
	for erows.Next() {
		var e dialogue.Edge
		if err := erows.Scan(&e.From, &e.To, &e.Offset); err != nil {
			return nil, nil, fmt.Errorf("scan choice: %w", err)
		}
		edges = append(edges, e)
	}
	if err := erows.Err(); err != nil {
		return nil, nil, fmt.Errorf("choices rows: %w", err)
	}
	return bms, edges, nil
}
