package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/base"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/mapping"
	"github.com/ajitpratap0/nsagency/pkg/metrics"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

const version = "1.0.0"

// Source reads records from the ERP search API.
type Source struct {
	*base.BaseConnector
	location *time.Location
}

var (
	_ core.Source                = (*Source)(nil)
	_ core.ProductMetadataSource = (*Source)(nil)
)

// NewSource creates a REST source. loc is the zone query dates are
// rendered in.
func NewSource(ctx context.Context, cfg config.ConnectorConfig, loc *time.Location, logger *zap.Logger) (*Source, error) {
	bc, err := base.NewBaseConnector(ctx, "rest", core.ConnectorTypeSource, version, cfg, logger)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Source{BaseConnector: bc, location: loc}, nil
}

// Probe runs the search for w and returns page one.
func (s *Source) Probe(ctx context.Context, recordType string, w models.Window) (*models.PageResult, error) {
	var out models.PageResult
	path := fmt.Sprintf("/search/%s/%s", w.Family, url.PathEscape(recordType))

	err := s.Call(ctx, "probe", func(ctx context.Context) error {
		timer := metrics.NewTimer("probe")
		defer func() {
			metrics.PageFetchSeconds.WithLabelValues(recordType).Observe(timer.Stop().Seconds())
		}()
		return s.Client().DoJSON(ctx, http.MethodPost, path, nil, newSearchQuery(w, s.location), &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPage reads one page of the search identified by searchID.
func (s *Source) FetchPage(ctx context.Context, recordType, searchID string, page int, w models.Window) ([]models.RawRecord, error) {
	var out pageResponse
	path := fmt.Sprintf("/search/%s/%s/%s/pages/%d", w.Family, url.PathEscape(recordType), url.PathEscape(searchID), page)

	err := s.Call(ctx, "fetch_page", func(ctx context.Context) error {
		timer := metrics.NewTimer("fetch_page")
		defer func() {
			metrics.PageFetchSeconds.WithLabelValues(recordType).Observe(timer.Stop().Seconds())
		}()
		return s.Client().DoJSON(ctx, http.MethodPost, path, nil, newSearchQuery(w, s.location), &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Records, nil
}

// ProductMetadata returns the item field metadata published by the ERP as
// a mapping spec.
func (s *Source) ProductMetadata(ctx context.Context, w models.Window) (mapping.Spec, error) {
	var spec mapping.Spec
	query := url.Values{}
	if w.Subsidiary != "" {
		query.Set("subsidiary", w.Subsidiary)
	}

	err := s.Call(ctx, "product_metadata", func(ctx context.Context) error {
		return s.Client().DoJSON(ctx, http.MethodGet, "/metadata/product", query, nil, &spec)
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}
