// Package archive writes entity batches as compressed JSON lines, one
// object per batch named <prefix>/<kind>/<run-id>.jsonl<ext>.
package archive

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/compression"
	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/json"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// Sink stores one batch of entities and returns where it was written.
type Sink interface {
	Write(ctx context.Context, kind string, entities []*models.Entity) (string, error)
}

// New creates the sink selected by cfg. runID names the objects written
// during this run; an empty runID gets a random one.
func New(ctx context.Context, cfg config.ArchiveConfig, runID string, logger *zap.Logger) (Sink, error) {
	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid archive compression")
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	switch cfg.Type {
	case "", "none":
		return NopSink{}, nil
	case "local":
		if cfg.Dir == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "archive dir is required for the local sink")
		}
		return NewLocalSink(cfg.Dir, runID, algo, logger), nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "archive bucket is required for the s3 sink")
		}
		s, err := NewS3Sink(ctx, cfg, runID, algo, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown archive type %q", cfg.Type)
	}
}

// NopSink discards every batch.
type NopSink struct{}

// Write implements Sink.
func (NopSink) Write(context.Context, string, []*models.Entity) (string, error) { return "", nil }

// objectName returns the relative name of the batch object for kind.
func objectName(kind, runID string, algo compression.Algorithm) string {
	return path.Join(kind, runID+".jsonl"+algo.Extension())
}

// encode renders entities as compressed JSON lines.
func encode(entities []*models.Entity, algo compression.Algorithm) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	w, err := compression.NewWriter(&buf, algo, compression.Default)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create compressor")
	}
	enc := json.NewEncoder(w)
	for _, ent := range entities {
		if err := enc.Encode(ent); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode entity").
				WithDetail("tx_type_src_id", ent.TxTypeSrcID)
		}
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to flush compressor")
	}
	return &buf, nil
}

// Read decodes a batch written by any sink.
func Read(r io.Reader, algo compression.Algorithm) ([]*models.Entity, error) {
	zr, err := compression.NewReader(r, algo)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to open archive")
	}
	defer zr.Close()
	return json.UnmarshalLines[*models.Entity](zr)
}
