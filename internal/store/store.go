// File: internal/store/store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts the pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store persists captured API traffic and learned page knowledge in Postgres.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlCreateAPIRequests = `
    CREATE TABLE IF NOT EXISTS api_requests (
        id UUID PRIMARY KEY,
        method TEXT NOT NULL,
        url TEXT NOT NULL,
        request_headers JSONB NOT NULL DEFAULT '{}',
        request_body TEXT NOT NULL DEFAULT '',
        response_status INT NOT NULL DEFAULT 0,
        response_headers JSONB NOT NULL DEFAULT '{}',
        response_body TEXT NOT NULL DEFAULT '',
        mime_type TEXT NOT NULL DEFAULT '',
        captured_at TIMESTAMPTZ NOT NULL,
        notes TEXT NOT NULL DEFAULT ''
    );
`

const sqlCreateLearnedInfo = `
    CREATE TABLE IF NOT EXISTS learned_info (
        id UUID PRIMARY KEY,
        topic TEXT NOT NULL,
        content TEXT NOT NULL,
        source TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL
    );
`

// EnsureSchema creates the tables when they do not exist yet. Sessions are
// opened lazily, so this runs on every open; IF NOT EXISTS keeps it cheap.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{sqlCreateAPIRequests, sqlCreateLearnedInfo} {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

const sqlInsertAPIRequest = `
    INSERT INTO api_requests (id, method, url, request_headers, request_body, response_status, response_headers, response_body, mime_type, captured_at, notes)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    ON CONFLICT (id) DO NOTHING;
`

// InsertAPIRequest persists one captured request/response pair. A missing id
// gets a fresh one; captures are immutable so id conflicts are ignored.
func (s *Store) InsertAPIRequest(ctx context.Context, rec *schemas.APIInteraction) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	reqHeaders, err := marshalHeaders(rec.RequestHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal request headers: %w", err)
	}
	respHeaders, err := marshalHeaders(rec.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("failed to marshal response headers: %w", err)
	}

	capturedAt := rec.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	_, err = s.pool.Exec(ctx, sqlInsertAPIRequest,
		id, rec.Method, rec.URL,
		reqHeaders, rec.RequestBody,
		rec.StatusCode, respHeaders, rec.ResponseBody, rec.MimeType,
		capturedAt.UTC(), rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert api request: %w", err)
	}
	return nil
}

const sqlInsertLearnedInfo = `
    INSERT INTO learned_info (id, topic, content, source, created_at)
    VALUES ($1, $2, $3, $4, $5);
`

// InsertLearnedInfo persists one learned insight about a page or API.
func (s *Store) InsertLearnedInfo(ctx context.Context, info *schemas.LearnedInfo) error {
	id := info.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := info.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, sqlInsertLearnedInfo,
		id, info.Topic, info.Content, info.Source, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert learned info: %w", err)
	}
	return nil
}

const sqlRecentAPIRequests = `
    SELECT id, method, url, request_headers, request_body, response_status, response_headers, response_body, mime_type, captured_at, notes
    FROM api_requests
    ORDER BY captured_at DESC
    LIMIT $1;
`

// RecentAPIRequests returns the latest captures, newest first. A non-positive
// limit falls back to 10.
func (s *Store) RecentAPIRequests(ctx context.Context, limit int) ([]schemas.APIInteraction, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, sqlRecentAPIRequests, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query api requests: %w", err)
	}
	defer rows.Close()

	var interactions []schemas.APIInteraction
	for rows.Next() {
		var (
			rec         schemas.APIInteraction
			reqHeaders  []byte
			respHeaders []byte
		)
		err := rows.Scan(
			&rec.ID, &rec.Method, &rec.URL,
			&reqHeaders, &rec.RequestBody,
			&rec.StatusCode, &respHeaders, &rec.ResponseBody, &rec.MimeType,
			&rec.CapturedAt, &rec.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api request row: %w", err)
		}
		if rec.RequestHeaders, err = unmarshalHeaders(reqHeaders); err != nil {
			return nil, fmt.Errorf("failed to decode request headers for %s: %w", rec.ID, err)
		}
		if rec.ResponseHeaders, err = unmarshalHeaders(respHeaders); err != nil {
			return nil, fmt.Errorf("failed to decode response headers for %s: %w", rec.ID, err)
		}
		interactions = append(interactions, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return interactions, nil
}

// marshalHeaders normalizes nil and empty maps to a JSON object so the jsonb
// columns never see SQL-visible null.
func marshalHeaders(h map[string]string) ([]byte, error) {
	if len(h) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(h)
}

func unmarshalHeaders(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var h map[string]string
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return h, nil
}
