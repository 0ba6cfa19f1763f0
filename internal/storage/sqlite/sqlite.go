// Package sqlite stores the draft and the submission list in a single-file
// key/value table, the on-disk counterpart of browser local storage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	// one connection serializes writers; appends are read-modify-write
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// uriEscaper escapes the characters SQLite's URI parser would take as
// query, fragment or escape delimiters.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

func dsn(path string) string {
	u := url.URL{
		Scheme:   "file",
		Opaque:   uriEscaper.Replace(path),
		RawQuery: url.Values{"_busy_timeout": {"5000"}}.Encode(),
	}
	return u.String()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutRaw writes value under key without encoding.
func (s *Store) PutRaw(ctx context.Context, key, value string) error {
	return put(ctx, s.db, key, value)
}

func (s *Store) LoadDraft(ctx context.Context) (*model.DraftApplication, error) {
	value, ok, err := get(ctx, s.db, storage.DraftKey)
	if err != nil || !ok {
		return nil, err
	}
	return storage.DecodeDraft([]byte(value))
}

func (s *Store) SaveDraft(ctx context.Context, draft model.DraftApplication) error {
	data, err := storage.EncodeDraft(draft)
	if err != nil {
		return err
	}
	return put(ctx, s.db, storage.DraftKey, string(data))
}

func (s *Store) ClearDraft(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, storage.DraftKey); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}

// AppendSubmission rewrites the JSON array inside one transaction.
func (s *Store) AppendSubmission(ctx context.Context, app model.SubmittedApplication) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	apps, err := list(ctx, tx)
	if err != nil {
		return err
	}
	apps = append(apps, app)
	data, err := json.Marshal(apps)
	if err != nil {
		return fmt.Errorf("encode submissions: %w", err)
	}
	if err := put(ctx, tx, storage.SubmissionsKey, string(data)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *Store) ListSubmissions(ctx context.Context) ([]model.SubmittedApplication, error) {
	return list(ctx, s.db)
}

func (s *Store) GetSubmission(ctx context.Context, id string) (model.SubmittedApplication, error) {
	apps, err := list(ctx, s.db)
	if err != nil {
		return model.SubmittedApplication{}, err
	}
	return storage.FindSubmission(apps, id)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func put(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func list(ctx context.Context, q querier) ([]model.SubmittedApplication, error) {
	value, ok, err := get(ctx, q, storage.SubmissionsKey)
	if err != nil {
		return nil, err
	}
	apps := []model.SubmittedApplication{}
	if !ok {
		return apps, nil
	}
	if err := json.Unmarshal([]byte(value), &apps); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}
	return apps, nil
}
