// Package store archives digest runs in SQLite. The archive is only written by
// the pipeline and read by the history command; ingestion never consults it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
	_ "modernc.org/sqlite"
)

// Schema is the SQLite schema for the run archive.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    date          TEXT NOT NULL,
    source        TEXT NOT NULL,
    sample        INTEGER NOT NULL DEFAULT 0,
    article_count INTEGER NOT NULL DEFAULT 0,
    journal_count INTEGER NOT NULL DEFAULT 0,
    summary       TEXT,
    report_path   TEXT,
    emailed       INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    title     TEXT NOT NULL,
    link      TEXT,
    journal   TEXT,
    provider  TEXT,
    published TEXT,
    abstract  TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(date);
CREATE INDEX IF NOT EXISTS idx_articles_run ON articles(run_id);
`

// Run is one archived pipeline execution.
type Run struct {
	ID           int64
	Date         string // YYYY-MM-DD
	Source       string
	Sample       bool
	ArticleCount int
	JournalCount int
	Summary      string
	ReportPath   string
	Emailed      bool
	CreatedAt    time.Time
	Articles     []sources.Article // written by SaveRun, not loaded by RecentRuns
}

// Store provides run persistence.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the archive at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection keeps :memory: databases consistent across calls
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRun stores a run and its articles in one transaction and returns the run ID.
func (s *Store) SaveRun(ctx context.Context, run Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (date, source, sample, article_count, journal_count, summary, report_path, emailed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Date, run.Source, run.Sample, run.ArticleCount, run.JournalCount, run.Summary, run.ReportPath, run.Emailed, run.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (run_id, title, link, journal, provider, published, abstract)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare article insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range run.Articles {
		if _, err := stmt.ExecContext(ctx, id, a.Title, a.Link, a.Journal, string(a.Provider), a.Published, a.Abstract); err != nil {
			return 0, fmt.Errorf("insert article %q: %w", a.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, source, sample, article_count, journal_count, summary, report_path, emailed, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var summary, path sql.NullString
		var created string
		if err := rows.Scan(&r.ID, &r.Date, &r.Source, &r.Sample, &r.ArticleCount, &r.JournalCount,
			&summary, &path, &r.Emailed, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Summary, r.ReportPath = summary.String, path.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunArticles returns the articles archived with a run, in insertion order.
func (s *Store) RunArticles(ctx context.Context, runID int64) ([]sources.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, link, journal, provider, published, abstract
		FROM articles WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []sources.Article
	for rows.Next() {
		var a sources.Article
		var link, journal, provider, published, abstract sql.NullString
		if err := rows.Scan(&a.Title, &link, &journal, &provider, &published, &abstract); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.Link, a.Journal, a.Provider = link.String, journal.String, sources.Provider(provider.String)
		a.Published, a.Abstract = published.String, abstract.String
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
