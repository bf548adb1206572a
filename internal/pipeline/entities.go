package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/base"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/logger"
	"github.com/ajitpratap0/nsagency/pkg/mapping"
	"github.com/ajitpratap0/nsagency/pkg/metrics"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

const productKind = "product"

// SyncEntities fetches the window for kind and transforms every raw record
// into an Entity using the mapping registered under mappingKey. Only an
// unsupported kind, a missing mapping or a retrieval failure is returned
// as an error; per-record failures are recorded on the entity.
func (e *Engine) SyncEntities(ctx context.Context, kind string, w models.Window, mappingKey string) ([]*models.Entity, error) {
	if e.source == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "no source connector configured")
	}
	recordType, family, err := e.resolveKind(kind)
	if err != nil {
		return nil, err
	}
	w.Kind = kind
	w.RecordType = recordType
	w.Family = family

	ctx = logger.WithKind(ctx, kind)
	log := logger.FromContext(ctx, e.logger)

	spec, err := e.mappingFor(ctx, kind, w, mappingKey)
	if err != nil {
		return nil, err
	}

	raws, err := e.window.FetchWindow(ctx, recordType, w, nil)
	if err != nil {
		return nil, err
	}
	metrics.RecordsFetched.WithLabelValues(kind).Add(float64(len(raws)))
	log.Info("records fetched",
		zap.String("window", w.String()),
		zap.Int("records", len(raws)))

	md := e.cfg.MetadataFor(kind)
	progress := base.NewProgressReporter(log, metrics.StageTransform)
	entities, err := runBounded(ctx, metrics.StageTransform, len(raws), e.cfg.Engine.RecordPoolWidth,
		func(_ context.Context, i int) (*models.Entity, error) {
			ent := e.buildEntity(log, kind, md, raws[i], spec, w)
			metrics.ObserveEntity(metrics.StageTransform, kind, ent.Failed())
			return ent, nil
		}, progress.Observe)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// mappingFor returns the spec for kind. Product specs come from the
// source's metadata endpoint once per batch, layered over any configured
// product mapping.
func (e *Engine) mappingFor(ctx context.Context, kind string, w models.Window, mappingKey string) (mapping.Spec, error) {
	spec, ok := e.cfg.Mappings.Lookup(mappingKey, kind)
	if kind == productKind {
		if ms, isMeta := e.source.(core.ProductMetadataSource); isMeta {
			meta, err := ms.ProductMetadata(ctx, w)
			if err != nil {
				return nil, err
			}
			merged := make(mapping.Spec, len(spec)+len(meta))
			for field, rule := range spec {
				merged[field] = rule
			}
			for field, rule := range meta {
				merged[field] = rule
			}
			spec, ok = merged, len(merged) > 0
		}
	}
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "no mapping for kind %s", kind).
			WithDetail("kind", kind).
			WithDetail("mapping_key", mappingKey)
	}
	return spec, nil
}

func (e *Engine) buildEntity(log *zap.Logger, kind string, md config.SrcMetadata, raw models.RawRecord, spec mapping.Spec, w models.Window) *models.Entity {
	ent := &models.Entity{Data: raw.Clone()}

	if err := envelope(ent, kind, md, raw); err != nil {
		e.isolate(log, ent, err)
		return ent
	}

	data, err := e.transformer.Transform(raw, spec)
	if err == nil {
		data, err = postProcess(kind, data, w)
	}
	if err != nil {
		e.isolate(log, ent, err)
		return ent
	}
	ent.Data = data
	return ent
}

func (e *Engine) isolate(log *zap.Logger, ent *models.Entity, err error) {
	ent.Fail(errors.Describe(err))
	log.Error("record failed",
		zap.String("src_id", ent.SrcID),
		zap.String("tx_type_src_id", ent.TxTypeSrcID),
		zap.String("error_type", string(errors.TypeOf(err))),
		zap.Error(err))
}

// envelope fills the entity's identifiers and timestamps from raw.
func envelope(ent *models.Entity, kind string, md config.SrcMetadata, raw models.RawRecord) error {
	id, ok := mapping.Lookup(raw, md.SrcID)
	if !ok || id == nil {
		return errors.Newf(errors.ErrorTypeMapping, "source id %s is missing", md.SrcID).
			WithDetail("path", md.SrcID)
	}
	ent.SrcID = scalarString(id)
	ent.TxTypeSrcID = models.CompositeID(kind, ent.SrcID)

	for _, f := range []struct {
		path string
		dst  *time.Time
	}{
		{md.CreatedAt, &ent.CreatedAt},
		{md.UpdatedAt, &ent.UpdatedAt},
	} {
		v, ok := mapping.Lookup(raw, f.path)
		if !ok || v == nil {
			return errors.Newf(errors.ErrorTypeMapping, "timestamp %s is missing", f.path).
				WithDetail("path", f.path)
		}
		t, err := mapping.ParseTime(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeMapping, "invalid timestamp "+f.path)
		}
		*f.dst = t.UTC()
	}
	return nil
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
