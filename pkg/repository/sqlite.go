package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kyohei-s/kiroku/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// SQLiteRepo persists entries and embeddings in a local SQLite database.
// Vectors are stored as JSON-encoded float32 arrays keyed by model, so the
// same entry can carry one vector per embedding model.
type SQLiteRepo struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);

CREATE TABLE IF NOT EXISTS embeddings (
  entry_id INTEGER NOT NULL,
  model_key TEXT NOT NULL,
  vector_json TEXT NOT NULL,
  created_at TEXT NOT NULL,
  PRIMARY KEY (entry_id, model_key),
  FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
);
`

// NewSQLite opens (creating if needed) the journal database at dbPath.
func NewSQLite(dbPath string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", dbPath))
	}

	// Single writer, many readers. The driver serializes writes; one open
	// connection keeps the locking behavior predictable.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate schema")
	}

	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepo) PutEntry(ctx context.Context, entry *model.Entry) (model.EntryID, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO entries(date, title, content, created_at) VALUES (?, ?, ?, ?)",
		entry.Date, entry.Title, entry.Content, createdAt.Format(time.RFC3339))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to insert entry")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to get inserted entry id")
	}
	return model.EntryID(id), nil
}

func (r *SQLiteRepo) PutEmbedding(ctx context.Context, emb *model.EntryEmbedding) error {
	if err := emb.Validate(); err != nil {
		return err
	}

	vectorJSON, err := json.Marshal(emb.Vector)
	if err != nil {
		return goerr.Wrap(err, "failed to encode vector")
	}

	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO embeddings(entry_id, model_key, vector_json, created_at) VALUES (?, ?, ?, ?)",
		int64(emb.EntryID), emb.ModelKey, string(vectorJSON), createdAt.Format(time.RFC3339))
	if err != nil {
		return goerr.Wrap(err, "failed to upsert embedding",
			goerr.V("entryID", emb.EntryID), goerr.V("modelKey", emb.ModelKey))
	}
	return nil
}

func (r *SQLiteRepo) ListCandidates(ctx context.Context, date, modelKey string) ([]*Candidate, error) {
	query := `
		SELECT e.id, e.date, e.title, e.content, e.created_at, em.vector_json
		FROM entries e
		LEFT JOIN embeddings em ON em.entry_id = e.id AND em.model_key = ?`
	args := []any{modelKey}
	if date != "" {
		query += " WHERE e.date = ?"
		args = append(args, date)
	}
	query += " ORDER BY e.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query entries")
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		var (
			c          Candidate
			id         int64
			createdAt  string
			vectorJSON sql.NullString
		)
		if err := rows.Scan(&id, &c.Entry.Date, &c.Entry.Title, &c.Entry.Content, &createdAt, &vectorJSON); err != nil {
			return nil, goerr.Wrap(err, "failed to scan entry row")
		}
		c.Entry.ID = model.EntryID(id)
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			c.Entry.CreatedAt = t
		}
		if vectorJSON.Valid {
			c.Vector = decodeVector(vectorJSON.String)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read entry rows")
	}
	return out, nil
}

// decodeVector parses a stored vector. Unparseable or suspiciously short
// vectors are treated as absent, which degrades that entry's score to zero
// instead of failing the query.
func decodeVector(s string) []float32 {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	if len(v) < model.MinVectorLen {
		return nil
	}
	return v
}
