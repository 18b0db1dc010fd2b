// Package docstore is the narrow document-database surface the service needs:
// path-addressed documents, merge writes, sub-collection listing and simple
// equality/range queries, optionally across every collection sharing an id.
// Firestore is the production backend; Postgres (JSONB) and memory mirror its semantics.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// ErrInvalidPath is returned for empty segments or a wrong segment count.
var ErrInvalidPath = errors.New("docstore: invalid path")

type serverTimestamp struct{}

// ServerTimestamp, used as a field value, is replaced with the write time by the backend.
var ServerTimestamp = serverTimestamp{}

// Document is a snapshot of one stored document.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

// Filter is one where-clause. Op is one of ==, !=, <, <=, >, >=.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query selects documents from one collection path, or with Group set, from every
// collection whose last segment equals Collection.
type Query struct {
	Collection string
	Group      bool
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Where appends a filter and returns the query for chaining.
func (q Query) Where(field, op string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

type setOptions struct {
	merge bool
}

// SetOption tunes Set.
type SetOption func(*setOptions)

// Merge deep-merges the given fields into an existing document instead of replacing it.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, data map[string]any, opts ...SetOption) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Close() error
}

// Join builds a slash path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// docPath validates a document path (even number of segments) and returns its
// parent collection path and id.
func docPath(path string) (collection, id string, err error) {
	parts, err := splitPath(path)
	if err != nil {
		return "", "", err
	}
	if len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

func collectionPath(path string) (string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return "", err
	}
	if len(parts)%2 != 1 {
		return "", fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return strings.Join(parts, "/"), nil
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
