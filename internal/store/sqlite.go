package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	pkmserr "github.com/ashishacharya123/PKMS-sub000/internal/errors"
)

// ErrNotFound is returned when a document does not exist in the store.
var ErrNotFound = errors.New("document not found")

const documentSchema = `
CREATE TABLE IF NOT EXISTS documents (
	type        TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	owner       TEXT    NOT NULL,
	title       TEXT    NOT NULL DEFAULT '',
	preview     TEXT    NOT NULL DEFAULT '',
	tags_text   TEXT    NOT NULL DEFAULT '',
	filename    TEXT    NOT NULL DEFAULT '',
	location    TEXT    NOT NULL DEFAULT '',
	mime_family TEXT    NOT NULL DEFAULT '',
	status      TEXT    NOT NULL DEFAULT '',
	priority    INTEGER NOT NULL DEFAULT 0,
	size_bytes  INTEGER NOT NULL DEFAULT 0,
	is_favorite INTEGER NOT NULL DEFAULT 0,
	is_archived INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner, type);

CREATE TABLE IF NOT EXISTS record_tags (
	owner       TEXT NOT NULL,
	record_type TEXT NOT NULL,
	record_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	PRIMARY KEY (owner, record_type, record_id, name)
);
`

const documentColumns = `type, id, owner, title, preview, tags_text, filename, location,
	mime_family, status, priority, size_bytes, is_favorite, is_archived, created_at, updated_at`

// SQLiteStore holds the searchable document projections and the reference
// tag table. It is the source of truth the inverted indexes are enriched
// from: an index hit with no row here is an orphan and is dropped.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the document database at path.
// An empty path opens an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, pkmserr.InternalError("create data directory", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, pkmserr.InternalError("open document store", err)
	}

	// modernc.org/sqlite serializes access; a single connection avoids
	// database-locked errors and keeps transactions on one conn.
	db.SetMaxOpenConns(1)

	// WAL mode must be set via PRAGMA, DSN params may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, pkmserr.InternalError("configure document store", err)
		}
	}

	if _, err := db.Exec(documentSchema); err != nil {
		_ = db.Close()
		return nil, pkmserr.InternalError("create document schema", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// BeginTx starts a write transaction over the document table. The
// synchronizer pairs it with the index write so that a failed index
// replacement rolls the projection back too.
func (s *SQLiteStore) BeginTx(ctx context.Context) (*DocTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pkmserr.InternalError("begin transaction", err)
	}
	return &DocTx{tx: tx}, nil
}

// Get returns the document for (typ, id), or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, typ ContentType, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE type = ? AND id = ?`, string(typ), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkmserr.InternalError("load document", err)
	}
	return doc, nil
}

// GetBatch loads the documents for the given ids of one type, keyed by id.
// Missing ids are simply absent from the result.
func (s *SQLiteStore) GetBatch(ctx context.Context, typ ContentType, ids []string) (map[string]*Document, error) {
	out := make(map[string]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(typ))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE type = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, pkmserr.InternalError("load documents", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, pkmserr.InternalError("scan document", err)
		}
		out[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, pkmserr.InternalError("iterate documents", err)
	}
	return out, nil
}

// ListByOwner returns up to limit of the owner's documents of one type,
// most recently updated first. The fuzzy path uses it to widen the
// candidate pool when exact ranking finds too little.
func (s *SQLiteStore) ListByOwner(ctx context.Context, typ ContentType, owner string, limit int) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE type = ? AND owner = ?
		 ORDER BY updated_at DESC, id ASC LIMIT ?`, string(typ), owner, limit)
	if err != nil {
		return nil, pkmserr.InternalError("list documents", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, pkmserr.InternalError("scan document", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CountByType returns the number of stored documents per content type.
func (s *SQLiteStore) CountByType(ctx context.Context) (map[ContentType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM documents GROUP BY type`)
	if err != nil {
		return nil, pkmserr.InternalError("count documents", err)
	}
	defer rows.Close()

	out := make(map[ContentType]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, pkmserr.InternalError("scan count", err)
		}
		out[ContentType(typ)] = n
	}
	return out, rows.Err()
}

// DB exposes the underlying handle so sibling subsystems (telemetry) can
// share the database file instead of opening a second connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DocTx is an open write transaction over the document table.
type DocTx struct {
	tx   *sql.Tx
	done bool
}

// Put fully replaces the row for (doc.Type, doc.ID).
func (t *DocTx) Put(ctx context.Context, doc *Document) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET
			owner       = excluded.owner,
			title       = excluded.title,
			preview     = excluded.preview,
			tags_text   = excluded.tags_text,
			filename    = excluded.filename,
			location    = excluded.location,
			mime_family = excluded.mime_family,
			status      = excluded.status,
			priority    = excluded.priority,
			size_bytes  = excluded.size_bytes,
			is_favorite = excluded.is_favorite,
			is_archived = excluded.is_archived,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at`,
		string(doc.Type), doc.ID, doc.Owner, doc.Title, doc.Preview, doc.TagsText,
		doc.Filename, doc.Location, doc.MimeFamily, doc.Status, doc.Priority,
		doc.SizeBytes, boolToInt(doc.IsFavorite), boolToInt(doc.IsArchived),
		doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli())
	if err != nil {
		return pkmserr.SyncFailure(fmt.Sprintf("store %s/%s", doc.Type, doc.ID), err)
	}
	return nil
}

// Delete removes the row for (typ, id). Deleting a missing row is a no-op.
func (t *DocTx) Delete(ctx context.Context, typ ContentType, id string) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM documents WHERE type = ? AND id = ?`, string(typ), id); err != nil {
		return pkmserr.SyncFailure(fmt.Sprintf("delete %s/%s", typ, id), err)
	}
	return nil
}

// Commit commits the transaction.
func (t *DocTx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return pkmserr.InternalError("commit transaction", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to defer after Commit.
func (t *DocTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// SQLiteTagStore is the reference TagSource, backed by the record_tags
// table in the same database. Deployments with an external tag system
// supply their own TagSource instead.
type SQLiteTagStore struct {
	db *sql.DB
}

// NewSQLiteTagStore wraps the document database's tag table.
func NewSQLiteTagStore(s *SQLiteStore) *SQLiteTagStore {
	return &SQLiteTagStore{db: s.db}
}

// SetTags replaces the record's tag set with names.
func (ts *SQLiteTagStore) SetTags(ctx context.Context, owner string, typ ContentType, id string, names []string) error {
	tx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return pkmserr.InternalError("begin tag transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM record_tags WHERE owner = ? AND record_type = ? AND record_id = ?`,
		owner, string(typ), id); err != nil {
		return pkmserr.InternalError("clear tags", err)
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO record_tags (owner, record_type, record_id, name)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(owner, record_type, record_id, name) DO NOTHING`,
			owner, string(typ), id, name); err != nil {
			return pkmserr.InternalError("insert tag", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return pkmserr.InternalError("commit tags", err)
	}
	return nil
}

// TagsFor returns the record's tag names sorted by name.
func (ts *SQLiteTagStore) TagsFor(ctx context.Context, owner string, typ ContentType, id string) ([]string, error) {
	rows, err := ts.db.QueryContext(ctx, `
		SELECT name FROM record_tags
		WHERE owner = ? AND record_type = ? AND record_id = ?
		ORDER BY name`, owner, string(typ), id)
	if err != nil {
		return nil, pkmserr.InternalError("load tags", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, pkmserr.InternalError("scan tag", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ TagSource = (*SQLiteTagStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc                  Document
		typ                  string
		favorite, archived   int
		createdMS, updatedMS int64
	)
	err := row.Scan(&typ, &doc.ID, &doc.Owner, &doc.Title, &doc.Preview,
		&doc.TagsText, &doc.Filename, &doc.Location, &doc.MimeFamily,
		&doc.Status, &doc.Priority, &doc.SizeBytes, &favorite, &archived,
		&createdMS, &updatedMS)
	if err != nil {
		return nil, err
	}
	doc.Type = ContentType(typ)
	doc.IsFavorite = favorite != 0
	doc.IsArchived = archived != 0
	doc.CreatedAt = msToTime(createdMS)
	doc.UpdatedAt = msToTime(updatedMS)
	return &doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
