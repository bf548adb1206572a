package archive

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/compression"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// LocalSink writes batches under a directory.
type LocalSink struct {
	dir    string
	runID  string
	algo   compression.Algorithm
	logger *zap.Logger
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(dir, runID string, algo compression.Algorithm, logger *zap.Logger) *LocalSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalSink{
		dir:    dir,
		runID:  runID,
		algo:   algo,
		logger: logger.With(zap.String("component", "archive_local")),
	}
}

// Write implements Sink.
func (s *LocalSink) Write(_ context.Context, kind string, entities []*models.Entity) (string, error) {
	buf, err := encode(entities, s.algo)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(objectName(kind, s.runID, s.algo)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to create archive directory")
	}
	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to write archive").
			WithDetail("path", target)
	}

	s.logger.Info("batch archived",
		zap.String("kind", kind),
		zap.String("path", target),
		zap.Int("entities", len(entities)),
		zap.Int("bytes", buf.Len()))
	return target, nil
}
