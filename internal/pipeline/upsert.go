package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/connector/base"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/logger"
	"github.com/ajitpratap0/nsagency/pkg/metrics"
	"github.com/ajitpratap0/nsagency/pkg/models"
	"github.com/ajitpratap0/nsagency/pkg/observability"
)

// UpsertEntities writes every entity to the target, choosing the
// transaction or person variant from the entity kind's family. Only a
// missing target is returned as an error; every per-entity failure is
// recorded on the entity with TgtID set to models.UnwrittenTargetID.
func (e *Engine) UpsertEntities(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	return e.upsert(ctx, "", entities)
}

// UpsertTransactions writes entities with the transaction variant.
func (e *Engine) UpsertTransactions(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	return e.upsert(ctx, models.FamilyTransaction, entities)
}

// UpsertPersons writes entities with the person variant.
func (e *Engine) UpsertPersons(ctx context.Context, entities []*models.Entity) ([]*models.Entity, error) {
	return e.upsert(ctx, models.FamilyPerson, entities)
}

func (e *Engine) upsert(ctx context.Context, variant models.Family, entities []*models.Entity) ([]*models.Entity, error) {
	if e.target == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "no target connector configured")
	}

	log := logger.FromContext(ctx, e.logger)
	progress := base.NewProgressReporter(log, metrics.StageUpsert)
	_, err := runBounded(ctx, metrics.StageUpsert, len(entities), e.cfg.Engine.UpsertPoolWidth,
		func(ctx context.Context, i int) (struct{}, error) {
			ent := entities[i]
			if err := e.upsertOne(ctx, variant, ent); err != nil {
				ent.TgtID = models.UnwrittenTargetID
				if !ent.Failed() {
					ent.Fail(errors.Describe(err))
				}
				log.Error("upsert failed",
					zap.String("tx_type_src_id", ent.TxTypeSrcID),
					zap.String("error_type", string(errors.TypeOf(err))),
					zap.Error(err))
			}
			metrics.ObserveEntity(metrics.StageUpsert, ent.Kind(), ent.Failed())
			return struct{}{}, nil
		}, progress.Observe)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// errAlreadyFailed marks entities that failed before reaching the upsert
// stage. Their original failure is kept.
var errAlreadyFailed = errors.New(errors.ErrorTypeValidation, "entity failed transform")

func (e *Engine) upsertOne(ctx context.Context, variant models.Family, ent *models.Entity) error {
	if ent.Failed() {
		return errAlreadyFailed
	}

	kind := ent.Kind()
	recordType, family, err := e.resolveKind(kind)
	if err != nil {
		return err
	}
	if variant == "" {
		variant = family
	}

	ctx, span := observability.StartSpan(ctx, "upsert."+string(variant))
	span.SetAttribute("kind", kind)
	span.SetAttribute("record_type", recordType)

	var tgtID string
	switch variant {
	case models.FamilyTransaction:
		data, lerr := enrichTransaction(e.tables, ent.Data)
		if lerr != nil {
			err = lerr
			break
		}
		if tgtID, err = e.target.UpsertTransaction(ctx, recordType, data); err == nil {
			ent.Data = data
		}
	case models.FamilyPerson:
		if err = validatePerson(kind, ent.SrcID, ent.Data); err != nil {
			break
		}
		tgtID, err = e.target.UpsertPerson(ctx, recordType, ent.Data)
	default:
		err = errors.Newf(errors.ErrorTypeUnsupportedKind, "kind %s has no upsert variant", kind).
			WithDetail("family", string(variant))
	}
	span.Finish(err)
	if err != nil {
		return err
	}

	ent.TgtID = tgtID
	ent.TxStatus = models.StatusSuccess
	ent.TxNote = ""
	ent.Failure = nil
	return nil
}
