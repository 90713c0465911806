package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/logger"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "knowledge.db"

// timeLayout is fixed width so that text comparison orders by time.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed entity store, relationship store, search index
// and satellite-record store. It holds no per-request state and is safe for
// concurrent use.
type Store struct {
	db       *sqlx.DB
	ids      IDGenerator
	now      func() time.Time
	dims     int
	validate *validator.Validate
	log      *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for new records.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock replaces time.Now for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithEmbeddingDims requires every embedding to have exactly n components.
// Zero leaves the length unconstrained.
func WithEmbeddingDims(n int) Option {
	return func(s *Store) { s.dims = n }
}

// WithLogger sets the logger used for storage failures.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// OpenDir opens the knowledge database inside dataDir, creating the
// directory if needed.
func OpenDir(dataDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return Open(filepath.Join(dataDir, DBFileName), opts...)
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite3", "file:"+dbPath+dsnPragmas)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "open knowledge db: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, "ping knowledge db: %v", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate knowledge db: %w", err)
	}
	if _, err := db.Exec(Triggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create triggers: %w", err)
	}

	s := &Store{
		db:       db,
		ids:      UUIDGenerator{},
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the datastore is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, "ping: %v", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// fail maps a driver error onto the error taxonomy.
func (s *Store) fail(op string, err error) error {
	switch {
	case isNoRows(err):
		return apperr.Wrap(apperr.ErrNotFound, "%s", op)
	case errors.Is(err, sqlite3.CONSTRAINT):
		return apperr.Wrap(apperr.ErrConflict, "%s: %v", op, err)
	default:
		s.log.Error("storage operation failed", "op", op, "error", err)
		return apperr.Wrap(apperr.ErrStorageUnavailable, "%s: %v", op, err)
	}
}

// check runs struct validation and reports failures as invalid arguments.
func (s *Store) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.ErrInvalidArgument, "%v", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrInvalidArgument, "encode json: %v", err)
	}
	return string(data), nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	return encodeJSON(v)
}

func encodeMap(v map[string]any) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	return encodeJSON(v)
}

func decodeStrings(v string) []string {
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func decodeMap(v string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(v), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
