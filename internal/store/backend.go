package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"classroom/internal/config"
	"classroom/internal/docstore"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Backend is the document store selected by configuration and the clients behind it.
type Backend struct {
	Docs     docstore.Store
	Firebase *Firebase
	DB       *DB
}

// OpenBackend connects the configured document store. Firebase auth is initialised
// whenever the Firebase app is, and also on its own when AUTH_MODE is firebase.
func OpenBackend(ctx context.Context, cfg config.App, log *zap.Logger) (*Backend, error) {
	withAuth := cfg.AuthMode == "firebase"
	b := &Backend{}
	switch cfg.StoreBackend {
	case BackendFirestore:
		fb, err := NewFirebase(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials, withAuth)
		if err != nil {
			return nil, err
		}
		b.Firebase = fb
		b.Docs = docstore.NewFirestore(fb.Firestore)
	case BackendPostgres:
		db, err := NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pg := docstore.NewPostgres(db.Client)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		b.DB = db
		b.Docs = pg
	case BackendMemory:
		log.Warn("using in-memory document store, data is lost on restart")
		b.Docs = docstore.NewMemory()
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if withAuth && b.Firebase == nil {
		fb, err := NewFirebase(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials, true)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Firebase = fb
	}
	log.Info("document store ready", zap.String("backend", cfg.StoreBackend))
	return b, nil
}

// Healthy reports whether the SQL backend answers. Firestore and memory have no probe.
func (b *Backend) Healthy(ctx context.Context) bool {
	if b.DB != nil {
		return b.DB.Healthy(ctx)
	}
	return b.Docs != nil
}

// Close releases every client.
func (b *Backend) Close() error {
	var errs []error
	if b.Docs != nil {
		errs = append(errs, b.Docs.Close())
	}
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	if b.Firebase != nil && b.Firebase.Firestore != nil && b.Docs != nil {
		if _, ok := b.Docs.(*docstore.Firestore); !ok {
			errs = append(errs, b.Firebase.Firestore.Close())
		}
	}
	return errors.Join(errs...)
}
