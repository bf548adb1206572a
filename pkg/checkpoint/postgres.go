package checkpoint

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/errors"
)

// DefaultTable is the checkpoint table used when none is configured.
const DefaultTable = "sync_checkpoints"

// PostgresStore keeps checkpoints in a table keyed by (agency, kind).
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	agency string
	logger *zap.Logger
}

// NewPostgresStore connects to dsn and creates the checkpoint table if it
// is missing.
func NewPostgresStore(ctx context.Context, dsn, table, agency string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == "" {
		table = DefaultTable
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid checkpoint dsn")
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to checkpoint database")
	}

	s := &PostgresStore{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		agency: agency,
		logger: logger.With(zap.String("component", "checkpoint_postgres")),
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		agency        TEXT        NOT NULL,
		kind          TEXT        NOT NULL,
		checkpoint_at TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (agency, kind)
	)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create checkpoint table")
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, kind string) (time.Time, bool, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT checkpoint_at FROM `+s.table+` WHERE agency = $1 AND kind = $2`,
		s.agency, kind).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load checkpoint").
			WithDetail("kind", kind)
	}
	return t.UTC(), true, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, kind string, t time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (agency, kind, checkpoint_at) VALUES ($1, $2, $3)
		ON CONFLICT (agency, kind) DO UPDATE
		SET checkpoint_at = GREATEST(`+s.table+`.checkpoint_at, EXCLUDED.checkpoint_at),
		    updated_at = now()`,
		s.agency, kind, t.UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to save checkpoint").
			WithDetail("kind", kind)
	}
	s.logger.Debug("checkpoint saved", zap.String("kind", kind), zap.Time("checkpoint", t))
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
