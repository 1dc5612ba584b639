package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/manorfm/healthshield-mfa/internal/infrastructure/config"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	connectAttempts = 6
	connectBackoff  = 250 * time.Millisecond
	connectMaxWait  = 5 * time.Second
)

// Postgres represents a PostgreSQL database connection
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// ConnString builds the keyword/value connection string for cfg
func ConnString(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		quoteConnValue(cfg.DBHost), cfg.DBPort, quoteConnValue(cfg.DBUser),
		quoteConnValue(cfg.DBPassword), quoteConnValue(cfg.DBName),
	)
}

// quoteConnValue single-quotes a keyword/value entry, escaping quotes and
// backslashes
func quoteConnValue(v string) string {
	return "'" + connValueEscaper.Replace(v) + "'"
}

var connValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// NewPostgres creates a new PostgreSQL connection pool. The first ping is
// retried with Fibonacci backoff so the service tolerates a database that is
// still starting.
func NewPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	backoff := retry.WithCappedDuration(connectMaxWait, retry.NewFibonacci(connectBackoff))
	backoff = retry.WithMaxRetries(connectAttempts, backoff)

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			log.Warn("database not ready, retrying", zap.String("host", cfg.DBHost), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return &Postgres{
		pool: pool,
		log:  log,
	}, nil
}

// Close closes the database connection
func (p *Postgres) Close() {
	p.pool.Close()
}

// Exec executes a query without returning any rows
func (p *Postgres) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		// args may carry secrets
		p.log.Error("Exec error", zap.String("sql", sql), zap.Int("args", len(args)), zap.Error(err))
	}
	return err
}

// ExecRaw executes a query and returns the command tag
func (p *Postgres) ExecRaw(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return p.pool.Exec(ctx, sql, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (p *Postgres) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// Ping checks if the database connection is alive
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}
