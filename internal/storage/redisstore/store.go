// Package redisstore keeps the draft and the submission list under the same
// two keys the browser used, so several service instances share one slot.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
)

// Store implements storage.Store on Redis. Submissions live in a list so
// appends are a single RPUSH.
type Store struct {
	client *redis.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces both keys, e.g. per municipality.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect dials addr and verifies the connection with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (s *Store) draftKey() string       { return s.prefix + storage.DraftKey }
func (s *Store) submissionsKey() string { return s.prefix + storage.SubmissionsKey }

func (s *Store) LoadDraft(ctx context.Context) (*model.DraftApplication, error) {
	data, err := s.client.Get(ctx, s.draftKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return storage.DecodeDraft(data)
}

func (s *Store) SaveDraft(ctx context.Context, draft model.DraftApplication) error {
	data, err := storage.EncodeDraft(draft)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.draftKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}

// PutRawDraft stores bytes in the draft slot as-is.
func (s *Store) PutRawDraft(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.draftKey(), data, 0).Err()
}

func (s *Store) ClearDraft(ctx context.Context) error {
	if err := s.client.Del(ctx, s.draftKey()).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *Store) AppendSubmission(ctx context.Context, app model.SubmittedApplication) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	if err := s.client.RPush(ctx, s.submissionsKey(), data).Err(); err != nil {
		return fmt.Errorf("append submission: %w", err)
	}
	return nil
}

func (s *Store) ListSubmissions(ctx context.Context) ([]model.SubmittedApplication, error) {
	items, err := s.client.LRange(ctx, s.submissionsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	apps := make([]model.SubmittedApplication, 0, len(items))
	for i, item := range items {
		var app model.SubmittedApplication
		if err := json.Unmarshal([]byte(item), &app); err != nil {
			return nil, fmt.Errorf("decode submission %d: %w", i, err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (model.SubmittedApplication, error) {
	apps, err := s.ListSubmissions(ctx)
	if err != nil {
		return model.SubmittedApplication{}, err
	}
	return storage.FindSubmission(apps, id)
}
