package pipeline

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/metrics"
	"github.com/ajitpratap0/nsagency/pkg/models"
	"github.com/ajitpratap0/nsagency/pkg/observability"
)

// WindowParams are the caller-supplied bounds of a window before the kind
// is resolved.
type WindowParams struct {
	CutDate    time.Time
	Hours      float64
	Limit      int
	Subsidiary string
	Filters    map[string]interface{}
}

// DefaultLimit is the page size used when WindowParams.Limit is zero.
const DefaultLimit = 100

// WindowController widens an empty window until it returns records or its
// end date reaches the current time.
type WindowController struct {
	fetcher  *Fetcher
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewWindowController creates a controller over fetcher.
func NewWindowController(fetcher *Fetcher, location *time.Location, now func() time.Time, logger *zap.Logger) *WindowController {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowController{
		fetcher:  fetcher,
		location: location,
		now:      now,
		logger:   logger.With(zap.String("component", "window_controller")),
	}
}

// FetchWindow fetches w, widening it by w.Hours after every empty result
// while its end date is still before the time observed at entry. With
// Hours == 0 it fetches exactly once. Cancelling ctx stops the widening
// loop before the next fetch.
func (c *WindowController) FetchWindow(ctx context.Context, recordType string, w models.Window, post PageFunc) ([]models.RawRecord, error) {
	if w.Hours != 0 && w.Step() <= 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "hours %g does not advance the window", w.Hours).
			WithDetail("kind", w.Kind)
	}

	ctx, span := observability.StartSpan(ctx, "window.fetch")
	span.SetAttribute("kind", w.Kind)
	span.SetAttribute("record_type", recordType)

	current := c.now().In(c.location)
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			err = errors.Wrap(err, errors.ErrorTypeTransport, "window fetch canceled")
			c.logger.Warn("window fetch canceled",
				zap.String("window", w.String()),
				zap.Int("attempts", attempts))
			span.Finish(err)
			return nil, err
		}
		attempts++
		records, err := c.fetcher.FetchAll(ctx, recordType, w, post)
		if err != nil {
			c.logger.Error("window fetch failed",
				zap.String("kind", w.Kind),
				zap.String("record_type", recordType),
				zap.Time("cut_date", w.CutDate),
				zap.Time("end_date", w.EndDate),
				zap.Float64("hours", w.Hours),
				zap.Int("limit", w.Limit),
				zap.String("subsidiary", w.Subsidiary),
				zap.Int("attempt", attempts),
				zap.Error(err))
			span.Finish(err)
			return nil, err
		}

		if w.Hours == 0 || len(records) > 0 || !w.EndDate.Before(current) {
			c.logger.Debug("window accepted",
				zap.String("window", w.String()),
				zap.Int("records", len(records)),
				zap.Int("attempts", attempts))
			span.SetAttribute("attempts", attempts)
			span.SetAttribute("records", len(records))
			span.Finish(nil)
			return records, nil
		}

		w = w.Widen()
		metrics.WindowWidenings.WithLabelValues(w.Kind).Inc()
		c.logger.Debug("window empty, widening", zap.String("window", w.String()))
	}
}

// NewWindow builds the window for kind from p. The end date is
// CutDate+Hours when Hours > 0, else the current time in the configured
// zone.
func (e *Engine) NewWindow(kind string, p WindowParams) (models.Window, error) {
	recordType, family, err := e.resolveKind(kind)
	if err != nil {
		return models.Window{}, err
	}
	if p.Hours < 0 || math.IsNaN(p.Hours) || math.IsInf(p.Hours, 0) {
		return models.Window{}, errors.Newf(errors.ErrorTypeValidation, "hours must be a finite non-negative number: %g", p.Hours)
	}
	if p.CutDate.IsZero() {
		return models.Window{}, errors.New(errors.ErrorTypeValidation, "cut date is required")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	w := models.Window{
		Kind:       kind,
		RecordType: recordType,
		Family:     family,
		CutDate:    p.CutDate.In(e.location),
		Hours:      p.Hours,
		Limit:      limit,
		Subsidiary: p.Subsidiary,
		Filters:    make(map[string]interface{}, len(p.Filters)+1),
	}
	for k, v := range p.Filters {
		w.Filters[k] = v
	}
	if family == models.FamilyAsset {
		if _, ok := w.Filters["last_qty_available_change"]; !ok {
			w.Filters["last_qty_available_change"] = true
		}
	}

	if p.Hours > 0 {
		if w.Step() <= 0 {
			return models.Window{}, errors.Newf(errors.ErrorTypeValidation, "hours %g is below the clock resolution", p.Hours)
		}
		w.EndDate = w.CutDate.Add(w.Step())
	} else {
		w.EndDate = e.now().In(e.location)
	}
	if w.EndDate.Before(w.CutDate) {
		return models.Window{}, errors.New(errors.ErrorTypeValidation, "cut date is in the future").
			WithDetail("cut_date", w.CutDate).
			WithDetail("end_date", w.EndDate)
	}
	return w, nil
}
