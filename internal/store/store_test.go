// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/api/schemas"
	"github.com/voidmaw/wayfarer/internal/config"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyTime accepts any value, used for timestamps we cannot predict exactly.
var anyTime = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

// anyUUID accepts any string that parses as a UUID.
var anyUUID = ArgumentMatcherFunc(func(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return uuid.Validate(s) == nil
})

func setupStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	st, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return mockPool, st
}

// -- Test Cases --

func TestNew(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("creates both tables", func(t *testing.T) {
		mockPool, st := setupStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateAPIRequests)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateLearnedInfo)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, st.EnsureSchema(ctx))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("propagates DDL failure", func(t *testing.T) {
		mockPool, st := setupStore(t)

		ddlErr := errors.New("permission denied")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateAPIRequests)).
			WillReturnError(ddlErr)

		err := st.EnsureSchema(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ddlErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestInsertAPIRequest(t *testing.T) {
	ctx := context.Background()
	capturedAt := time.Date(2026, 8, 20, 12, 30, 0, 0, time.UTC)

	t.Run("inserts a full record with JSONB headers", func(t *testing.T) {
		mockPool, st := setupStore(t)

		rec := &schemas.APIInteraction{
			ID:              "0b1f0c0e-6a6f-4c5d-9f6a-9a4f4b1c2d3e",
			Method:          "POST",
			URL:             "https://api.example.com/v1/search",
			RequestHeaders:  map[string]string{"Content-Type": "application/json"},
			RequestBody:     `{"q":"flights"}`,
			StatusCode:      201,
			ResponseHeaders: map[string]string{"Server": "nginx"},
			ResponseBody:    `{"results":[]}`,
			MimeType:        "application/json",
			CapturedAt:      capturedAt,
			Notes:           "search endpoint",
		}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertAPIRequest)).
			WithArgs(
				rec.ID, rec.Method, rec.URL,
				[]byte(`{"Content-Type":"application/json"}`), rec.RequestBody,
				rec.StatusCode, []byte(`{"Server":"nginx"}`), rec.ResponseBody, rec.MimeType,
				capturedAt, rec.Notes,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, st.InsertAPIRequest(ctx, rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("generates an id and normalizes nil headers", func(t *testing.T) {
		mockPool, st := setupStore(t)

		rec := &schemas.APIInteraction{
			Method: "GET",
			URL:    "https://example.com/feed",
		}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertAPIRequest)).
			WithArgs(
				anyUUID, rec.Method, rec.URL,
				[]byte(`{}`), "",
				0, []byte(`{}`), "", "",
				anyTime, "",
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, st.InsertAPIRequest(ctx, rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("propagates exec failure", func(t *testing.T) {
		mockPool, st := setupStore(t)

		execErr := errors.New("unique violation")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertAPIRequest)).
			WithArgs(anyUUID, "GET", "https://example.com", []byte(`{}`), "", 0, []byte(`{}`), "", "", anyTime, "").
			WillReturnError(execErr)

		err := st.InsertAPIRequest(ctx, &schemas.APIInteraction{Method: "GET", URL: "https://example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, execErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestInsertLearnedInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts with provided id and timestamp", func(t *testing.T) {
		mockPool, st := setupStore(t)

		createdAt := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
		info := &schemas.LearnedInfo{
			ID:        "7d9a3f34-98cd-4a0f-8f38-2f1f1a2b3c4d",
			Topic:     "https://example.com/login",
			Content:   "Login form posts credentials to /api/auth as JSON.",
			Source:    "ui_analysis",
			CreatedAt: createdAt,
		}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertLearnedInfo)).
			WithArgs(info.ID, info.Topic, info.Content, info.Source, createdAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, st.InsertLearnedInfo(ctx, info))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("fills missing id and timestamp", func(t *testing.T) {
		mockPool, st := setupStore(t)

		info := &schemas.LearnedInfo{
			Topic:   "https://example.com",
			Content: "Landing page.",
		}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertLearnedInfo)).
			WithArgs(anyUUID, info.Topic, info.Content, "", anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, st.InsertLearnedInfo(ctx, info))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRecentAPIRequests(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "method", "url", "request_headers", "request_body", "response_status", "response_headers", "response_body", "mime_type", "captured_at", "notes"}

	t.Run("defaults the limit to 10", func(t *testing.T) {
		mockPool, st := setupStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentAPIRequests)).
			WithArgs(10).
			WillReturnRows(pgxmock.NewRows(columns))

		recs, err := st.RecentAPIRequests(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("passes an explicit limit through", func(t *testing.T) {
		mockPool, st := setupStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentAPIRequests)).
			WithArgs(25).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := st.RecentAPIRequests(ctx, 25)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("decodes rows including JSONB headers", func(t *testing.T) {
		mockPool, st := setupStore(t)

		now := time.Now().UTC()
		rows := pgxmock.NewRows(columns).
			AddRow(
				"req-1", "GET", "https://api.example.com/items",
				[]byte(`{"Accept":"application/json"}`), "",
				200, []byte(`{"Content-Type":"application/json"}`), `{"items":[]}`, "application/json",
				now, "listing endpoint",
			)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentAPIRequests)).
			WithArgs(10).
			WillReturnRows(rows)

		recs, err := st.RecentAPIRequests(ctx, 0)
		require.NoError(t, err)
		require.Len(t, recs, 1)

		assert.Equal(t, "req-1", recs[0].ID)
		assert.Equal(t, "GET", recs[0].Method)
		assert.Equal(t, map[string]string{"Accept": "application/json"}, recs[0].RequestHeaders)
		assert.Equal(t, map[string]string{"Content-Type": "application/json"}, recs[0].ResponseHeaders)
		assert.Equal(t, 200, recs[0].StatusCode)
		assert.True(t, recs[0].CapturedAt.Equal(now))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rejects corrupt header JSON", func(t *testing.T) {
		mockPool, st := setupStore(t)

		rows := pgxmock.NewRows(columns).
			AddRow("req-1", "GET", "https://example.com", []byte(`{broken`), "", 200, []byte(`{}`), "", "", time.Now(), "")

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentAPIRequests)).
			WithArgs(10).
			WillReturnRows(rows)

		_, err := st.RecentAPIRequests(ctx, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode request headers")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("propagates query failure", func(t *testing.T) {
		mockPool, st := setupStore(t)

		queryErr := errors.New("connection reset")
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentAPIRequests)).
			WithArgs(10).
			WillReturnError(queryErr)

		_, err := st.RecentAPIRequests(ctx, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSessionFactory(t *testing.T) {
	t.Run("disabled database yields ErrPersistenceDisabled", func(t *testing.T) {
		factory := NewSessionFactory(config.DatabaseConfig{}, zap.NewNop())

		sess, err := factory(context.Background())
		assert.Nil(t, sess)
		assert.ErrorIs(t, err, ErrPersistenceDisabled)
	})

	t.Run("nil session close is safe", func(t *testing.T) {
		var sess *Session
		sess.Close()
	})
}
