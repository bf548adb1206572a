package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nsagency/pkg/errors"
)

// FileStore keeps checkpoints in a YAML file of kind -> RFC 3339 time.
// The whole file is rewritten on every Save.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	points map[string]time.Time
}

// NewFileStore opens path, creating an empty store when it does not exist.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{
		path:   path,
		logger: logger.With(zap.String("component", "checkpoint_file")),
		points: make(map[string]time.Time),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read checkpoint file")
	}
	if err := yaml.Unmarshal(data, &s.points); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse checkpoint file").
			WithDetail("path", path)
	}
	if s.points == nil {
		s.points = make(map[string]time.Time)
	}
	return s, nil
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, kind string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.points[kind]
	return t, ok, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, kind string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.points[kind]; ok && !t.After(prev) {
		return nil
	}
	s.points[kind] = t.UTC()

	data, err := yaml.Marshal(s.points)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode checkpoints")
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create checkpoint directory")
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write checkpoints")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to replace checkpoint file")
	}

	s.logger.Debug("checkpoint saved", zap.String("kind", kind), zap.Time("checkpoint", t))
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
