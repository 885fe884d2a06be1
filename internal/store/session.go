// File: internal/store/session.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/voidmaw/wayfarer/internal/config"
)

// ErrPersistenceDisabled marks a factory with no database configured. Callers
// that can work without persistence treat it as "skip", not as a failure.
var ErrPersistenceDisabled = errors.New("persistence is not configured")

// Session bundles a Store with the pool it owns. The holder opens it at the
// point of use and is responsible for Close.
type Session struct {
	*Store
	pool *pgxpool.Pool
}

// Close releases the session's connection pool. Nil-safe so a failed open can
// still be deferred.
func (s *Session) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SessionFactory opens a short-lived persistence session on demand. It is the
// capability to reach the database, handed to components that must not hold a
// live connection for their whole lifetime.
type SessionFactory func(ctx context.Context) (*Session, error)

// NewSessionFactory binds a factory to the configured database. An empty DSN
// yields a factory that always reports ErrPersistenceDisabled.
func NewSessionFactory(cfg config.DatabaseConfig, logger *zap.Logger) SessionFactory {
	if !cfg.Enabled() {
		return func(context.Context) (*Session, error) {
			return nil, ErrPersistenceDisabled
		}
	}

	return func(ctx context.Context) (*Session, error) {
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database pool: %w", err)
		}

		st, err := New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}

		return &Session{Store: st, pool: pool}, nil
	}
}
