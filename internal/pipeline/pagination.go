package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// PageFunc shapes the records accumulated for one window. The identity
// function is used when nil.
type PageFunc func(recordType string, records []models.RawRecord, w models.Window) ([]models.RawRecord, error)

// Fetcher retrieves every page of one query. Page one comes from the
// probe; pages 2..N are fetched concurrently with the probe's search id.
type Fetcher struct {
	source  core.Source
	pageCap int
	width   int
	logger  *zap.Logger
}

// NewFetcher creates a fetcher. pageCap 0 means every page is fetched.
func NewFetcher(source core.Source, pageCap, width int, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		source:  source,
		pageCap: pageCap,
		width:   width,
		logger:  logger.With(zap.String("component", "pagination_fetcher")),
	}
}

// EffectivePages returns how many pages are fetched for totalPages.
func (f *Fetcher) EffectivePages(totalPages int) int {
	if f.pageCap == 0 || f.pageCap > totalPages {
		return totalPages
	}
	return f.pageCap
}

// FetchAll probes the query and collects every page it is allowed to
// fetch. Pages are concatenated in page-index order. Any page failure
// aborts the call.
func (f *Fetcher) FetchAll(ctx context.Context, recordType string, w models.Window, post PageFunc) ([]models.RawRecord, error) {
	if post == nil {
		post = identityPage
	}

	res, err := f.source.Probe(ctx, recordType, w)
	if err != nil {
		return nil, err
	}
	if res.TotalRecords == 0 {
		return []models.RawRecord{}, nil
	}
	if res.TotalPages <= 1 {
		return post(recordType, res.Records, w)
	}

	effective := f.EffectivePages(res.TotalPages)
	f.logger.Debug("fetching remaining pages",
		zap.String("record_type", recordType),
		zap.Int("total_records", res.TotalRecords),
		zap.Int("total_pages", res.TotalPages),
		zap.Int("effective_pages", effective))

	pages, err := runBounded(ctx, "page_fetch", effective-1, f.width,
		func(ctx context.Context, i int) ([]models.RawRecord, error) {
			// task i fetches page i+2
			return f.source.FetchPage(ctx, recordType, res.SearchID, i+2, w)
		}, nil)
	if err != nil {
		return nil, err
	}

	size := len(res.Records)
	for _, p := range pages {
		size += len(p)
	}
	all := make([]models.RawRecord, 0, size)
	all = append(all, res.Records...)
	for _, p := range pages {
		all = append(all, p...)
	}
	return post(recordType, all, w)
}

func identityPage(_ string, records []models.RawRecord, _ models.Window) ([]models.RawRecord, error) {
	return records, nil
}
