// Package firestore implements the document store on Google Cloud Firestore.
package firestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"geousers/pkg/models"
)

// Store is a DocumentStore backed by a Firestore client.
type Store struct {
	client *firestore.Client
}

// DecodeCredentials turns a base64 encoded service-account JSON into raw
// JSON and the project id it names.
func DecodeCredentials(b64 string) ([]byte, string, error) {
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return nil, "", errors.New("FIREBASE_ADMIN_SDK_BASE64 is not set")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, "", fmt.Errorf("decode firebase credentials: %w", err)
	}
	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, "", fmt.Errorf("parse firebase credentials: %w", err)
	}
	return raw, sa.ProjectID, nil
}

// New connects to Firestore with the given service-account JSON. projectID
// may be empty to use the one named in the credentials.
func New(ctx context.Context, credentialsJSON []byte, projectID string) (*Store, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client (e.g. one pointed at the emulator).
func NewFromClient(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	doc[models.FieldCreatedAt] = firestore.ServerTimestamp
	doc[models.FieldUpdatedAt] = firestore.ServerTimestamp

	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("firestore get %s/%s: %w", collection, id, err)
	}
	if !snap.Exists() {
		return nil, false, nil
	}
	return snap.Data(), true, nil
}

// Update applies each top-level key as its own field path, so keys that
// contain dots are not treated as nested paths.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	updates = append(updates, firestore.Update{
		FieldPath: firestore.FieldPath{models.FieldUpdatedAt},
		Value:     firestore.ServerTimestamp,
	})

	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("firestore update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Ping reads at most one document from collection.
func (s *Store) Ping(ctx context.Context, collection string) error {
	iter := s.client.Collection(collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore query: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
