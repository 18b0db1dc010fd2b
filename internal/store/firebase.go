package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Firebase holds the clients built from one firebase app.
type Firebase struct {
	App       *firebase.App
	Firestore *firestore.Client
	Auth      *auth.Client
}

// NewFirebase initialises the app from a credentials file, or application default
// credentials when credsFile is empty. Auth is only built when withAuth is set.
func NewFirebase(ctx context.Context, projectID, credsFile string, withAuth bool) (*Firebase, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	fb := &Firebase{App: app, Firestore: fs}
	if withAuth {
		fb.Auth, err = app.Auth(ctx)
		if err != nil {
			_ = fs.Close()
			return nil, fmt.Errorf("auth client: %w", err)
		}
	}
	return fb, nil
}
