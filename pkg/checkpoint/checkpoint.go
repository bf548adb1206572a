// Package checkpoint remembers, per kind, the latest source update time a
// sync run has successfully processed. The next run starts its window from
// that time.
package checkpoint

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/errors"
)

// Store loads and saves checkpoints. Save never moves a checkpoint
// backwards.
type Store interface {
	// Load returns the checkpoint for kind; false when none was saved.
	Load(ctx context.Context, kind string) (time.Time, bool, error)
	// Save records t for kind if it is later than the stored value.
	Save(ctx context.Context, kind string, t time.Time) error
	Close() error
}

// New creates the store selected by cfg.
func New(ctx context.Context, cfg config.CheckpointConfig, agency string, logger *zap.Logger) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return NopStore{}, nil
	case "file":
		if cfg.Path == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "checkpoint path is required for the file store")
		}
		s, err := NewFileStore(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "checkpoint dsn is required for the postgres store")
		}
		s, err := NewPostgresStore(ctx, cfg.DSN, cfg.Table, agency, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown checkpoint type %q", cfg.Type)
	}
}

// NopStore keeps nothing.
type NopStore struct{}

func (NopStore) Load(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (NopStore) Save(context.Context, string, time.Time) error { return nil }

func (NopStore) Close() error { return nil }
