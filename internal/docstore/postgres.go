package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path            TEXT PRIMARY KEY,
	collection_path TEXT NOT NULL,
	collection_id   TEXT NOT NULL,
	doc_id          TEXT NOT NULL,
	data            JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_collection_path_idx ON documents (collection_path);
CREATE INDEX IF NOT EXISTS documents_collection_id_idx ON documents (collection_id);
`

// Postgres stores documents as JSONB rows keyed by path.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// EnsureSchema creates the documents table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := docPath(path); err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `SELECT path, doc_id, data FROM documents WHERE path = $1`, clean(path))
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func (p *Postgres) Set(ctx context.Context, path string, data map[string]any, opts ...SetOption) error {
	coll, id, err := docPath(path)
	if err != nil {
		return err
	}
	key := clean(path)
	fresh := normalize(data, p.now().UTC()).(map[string]any)
	o := applySetOptions(opts)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if o.merge {
		var raw []byte
		err := tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = $1 FOR UPDATE`, key).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			var existing map[string]any
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("docstore: decode %s: %w", key, err)
			}
			fresh = mergeInto(existing, fresh)
		}
	}

	payload, err := json.Marshal(fresh)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", key, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, collection_path, collection_id, doc_id, data)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (path) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, key, coll, lastSegment(coll), id, string(payload))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	coll, err := collectionPath(collection)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := p.Set(ctx, coll+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	coll, err := collectionPath(collection)
	if err != nil {
		return nil, err
	}
	return p.Query(ctx, Query{Collection: coll})
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *doc)
	}
	return res, rows.Err()
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var doc Document
	var raw []byte
	if err := s.Scan(&doc.Path, &doc.ID, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("docstore: decode %s: %w", doc.Path, err)
	}
	if doc.Data == nil {
		doc.Data = map[string]any{}
	}
	return &doc, nil
}

// buildQuery renders q as SQL over the documents table.
func buildQuery(q Query) (string, []any, error) {
	args := []any{}
	clauses := []string{}
	if q.Group {
		if q.Collection == "" {
			return "", nil, fmt.Errorf("%w: empty collection group", ErrInvalidPath)
		}
		args = append(args, q.Collection)
		clauses = append(clauses, "collection_id = $1")
	} else {
		coll, err := collectionPath(q.Collection)
		if err != nil {
			return "", nil, err
		}
		args = append(args, coll)
		clauses = append(clauses, "collection_path = $1")
	}

	for _, f := range q.Filters {
		field := "$" + itoa(len(args)+1)
		args = append(args, f.Field)
		value := "$" + itoa(len(args)+1)
		switch f.Op {
		case "==", "!=":
			encoded, err := json.Marshal(normalize(f.Value, time.Time{}))
			if err != nil {
				return "", nil, err
			}
			args = append(args, string(encoded))
			op := "="
			if f.Op == "!=" {
				op = "<>"
			}
			clauses = append(clauses, "data -> "+field+"::text "+op+" "+value+"::jsonb")
		case "<", "<=", ">", ">=":
			switch v := normalize(f.Value, time.Time{}).(type) {
			case string:
				args = append(args, v)
				clauses = append(clauses, "data ->> "+field+"::text "+f.Op+" "+value+"::text")
			case time.Time:
				args = append(args, v.Format(time.RFC3339Nano))
				clauses = append(clauses, "data ->> "+field+"::text "+f.Op+" "+value+"::text")
			case int64, float64:
				args = append(args, v)
				clauses = append(clauses, "(data ->> "+field+"::text)::numeric "+f.Op+" "+value+"::numeric")
			default:
				return "", nil, fmt.Errorf("docstore: unsupported range value %T for %s", f.Value, f.Field)
			}
		default:
			return "", nil, fmt.Errorf("docstore: unsupported operator %q", f.Op)
		}
	}

	query := `SELECT path, doc_id, data FROM documents WHERE ` + joinClauses(clauses, " AND ")
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		query += " ORDER BY data ->> $" + itoa(len(args)) + "::text"
		if q.Desc {
			query += " DESC"
		}
		query += ", path"
	} else {
		query += " ORDER BY path"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + itoa(len(args))
	}
	return query, args, nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
