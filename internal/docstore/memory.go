package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]any), now: time.Now}
}

// WithClock sets the time used for ServerTimestamp values.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := docPath(path); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[clean(path)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshot(clean(path), data), nil
}

func (m *Memory) Set(ctx context.Context, path string, data map[string]any, opts ...SetOption) error {
	if _, _, err := docPath(path); err != nil {
		return err
	}
	o := applySetOptions(opts)
	fresh := normalize(data, m.now().UTC()).(map[string]any)

	m.mu.Lock()
	defer m.mu.Unlock()
	key := clean(path)
	if existing, ok := m.docs[key]; ok && o.merge {
		m.docs[key] = mergeInto(existing, fresh)
		return nil
	}
	m.docs[key] = fresh
	return nil
}

func (m *Memory) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	coll, err := collectionPath(collection)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := m.Set(ctx, coll+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	coll, err := collectionPath(collection)
	if err != nil {
		return nil, err
	}
	return m.Query(ctx, Query{Collection: coll})
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if q.Group {
		if q.Collection == "" {
			return nil, fmt.Errorf("%w: empty collection group", ErrInvalidPath)
		}
	} else if _, err := collectionPath(q.Collection); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Document
	for path, data := range m.docs {
		parent, _, _ := docPath(path)
		if q.Group {
			if lastSegment(parent) != q.Collection {
				continue
			}
		} else if parent != clean(q.Collection) {
			continue
		}
		if !matchesAll(data, q.Filters) {
			continue
		}
		out = append(out, *m.snapshot(path, data))
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c, ok := compare(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if ok && c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].Path < out[j].Path
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

// Len reports the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) snapshot(path string, data map[string]any) *Document {
	_, id, _ := docPath(path)
	return &Document{ID: id, Path: path, Data: normalize(data, time.Time{}).(map[string]any)}
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matches(data, f) {
			return false
		}
	}
	return true
}

func clean(path string) string {
	parts, err := splitPath(path)
	if err != nil {
		return path
	}
	return Join(parts...)
}
