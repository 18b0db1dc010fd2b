package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore adapts a Cloud Firestore client to Store.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore wraps an existing client. Close closes the client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := docPath(path); err != nil {
		return nil, err
	}
	snap, err := f.client.Doc(clean(path)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromSnapshot(snap), nil
}

func (f *Firestore) Set(ctx context.Context, path string, data map[string]any, opts ...SetOption) error {
	if _, _, err := docPath(path); err != nil {
		return err
	}
	ref := f.client.Doc(clean(path))
	payload := toFirestore(data).(map[string]any)
	var err error
	if applySetOptions(opts).merge {
		_, err = ref.Set(ctx, payload, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, payload)
	}
	return err
}

func (f *Firestore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	coll, err := collectionPath(collection)
	if err != nil {
		return "", err
	}
	ref, _, err := f.client.Collection(coll).Add(ctx, toFirestore(data).(map[string]any))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (f *Firestore) List(ctx context.Context, collection string) ([]Document, error) {
	coll, err := collectionPath(collection)
	if err != nil {
		return nil, err
	}
	return f.run(ctx, f.client.Collection(coll).Query)
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]Document, error) {
	var fq firestore.Query
	if q.Group {
		if q.Collection == "" {
			return nil, fmt.Errorf("%w: empty collection group", ErrInvalidPath)
		}
		fq = f.client.CollectionGroup(q.Collection).Query
	} else {
		coll, err := collectionPath(q.Collection)
		if err != nil {
			return nil, err
		}
		fq = f.client.Collection(coll).Query
	}
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Field, flt.Op, flt.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return f.run(ctx, fq)
}

func (f *Firestore) run(ctx context.Context, q firestore.Query) ([]Document, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *fromSnapshot(snap))
	}
	return out, nil
}

func (f *Firestore) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

func fromSnapshot(snap *firestore.DocumentSnapshot) *Document {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}
	return &Document{ID: snap.Ref.ID, Path: relativePath(snap.Ref.Path), Data: data}
}

// relativePath strips the "projects/{p}/databases/{d}/documents/" prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if i := strings.Index(full, marker); i >= 0 {
		return full[i+len(marker):]
	}
	return full
}

func toFirestore(v any) any {
	switch t := v.(type) {
	case serverTimestamp:
		return firestore.ServerTimestamp
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = toFirestore(inner)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = toFirestore(inner)
		}
		return out
	default:
		return t
	}
}
