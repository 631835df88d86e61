package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"geousers/pkg/models"

	goredis "github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 3

// DocumentStore keeps each document as a JSON string under
// "<collection>:<id>". Timestamps are stamped by the store in UTC.
type DocumentStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewDocumentStore(client *goredis.Client) *DocumentStore {
	return &DocumentStore{client: client, now: time.Now}
}

func documentKey(collection, id string) string {
	return collection + ":" + id
}

func (s *DocumentStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	now := s.now().UTC()
	doc[models.FieldCreatedAt] = now
	doc[models.FieldUpdatedAt] = now

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s/%s: %w", collection, id, err)
	}
	if err := s.client.Set(ctx, documentKey(collection, id), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (map[string]any, bool, error) {
	raw, err := s.client.Get(ctx, documentKey(collection, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s/%s: %w", collection, id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
	}
	return doc, true, nil
}

// Update merges fields into the stored document inside WATCH/MULTI so a
// concurrent write to the same key aborts and retries the merge.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	key := documentKey(collection, id)

	merge := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("document %s/%s does not exist", collection, id)
		}
		if err != nil {
			return err
		}

		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("unmarshal document %s/%s: %w", collection, id, err)
		}
		for k, v := range fields {
			doc[k] = v
		}
		doc[models.FieldUpdatedAt] = s.now().UTC()

		merged, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxUpdateAttempts; i++ {
		err = s.client.Watch(ctx, merge, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.Del(ctx, documentKey(collection, id)).Err(); err != nil {
		return fmt.Errorf("redis del %s/%s: %w", collection, id, err)
	}
	return nil
}
