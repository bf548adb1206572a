package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/mapping"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// fakeSource serves a fixed result set. probe decides the page result for
// each probe call; pages holds pages 2..N.
type fakeSource struct {
	mu sync.Mutex

	probe   func(call int, w models.Window) (*models.PageResult, error)
	pages   map[int][]models.RawRecord
	pageErr map[int]error
	delay   time.Duration

	probes      []models.Window
	fetched     []int
	inFlight    int
	maxInFlight int
}

func (s *fakeSource) Probe(_ context.Context, _ string, w models.Window) (*models.PageResult, error) {
	s.mu.Lock()
	s.probes = append(s.probes, w)
	call := len(s.probes)
	s.mu.Unlock()
	return s.probe(call, w)
}

func (s *fakeSource) FetchPage(_ context.Context, _ string, searchID string, page int, _ models.Window) ([]models.RawRecord, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, page)
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if searchID != "search-1" {
		return nil, errors.Newf(errors.ErrorTypeTransport, "unknown search id %s", searchID)
	}
	if err := s.pageErr[page]; err != nil {
		return nil, err
	}
	return s.pages[page], nil
}

func (s *fakeSource) Close(context.Context) error { return nil }

func (s *fakeSource) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.probes)
}

// metaSource adds product metadata to fakeSource.
type metaSource struct {
	*fakeSource
	spec  mapping.Spec
	calls int
}

func (s *metaSource) ProductMetadata(context.Context, models.Window) (mapping.Spec, error) {
	s.calls++
	return s.spec, nil
}

// fakeTarget records upserts and fails for the configured source ids.
type fakeTarget struct {
	mu    sync.Mutex
	calls []targetCall
	fail  map[string]error
}

type targetCall struct {
	variant    models.Family
	recordType string
	data       map[string]interface{}
}

func (t *fakeTarget) upsert(variant models.Family, recordType string, data map[string]interface{}) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, targetCall{variant: variant, recordType: recordType, data: data})
	id, _ := data["id"].(string)
	if err := t.fail[id]; err != nil {
		return "", err
	}
	return "tgt-" + id, nil
}

func (t *fakeTarget) UpsertTransaction(_ context.Context, recordType string, data map[string]interface{}) (string, error) {
	return t.upsert(models.FamilyTransaction, recordType, data)
}

func (t *fakeTarget) UpsertPerson(_ context.Context, recordType string, data map[string]interface{}) (string, error) {
	return t.upsert(models.FamilyPerson, recordType, data)
}

func (t *fakeTarget) Close(context.Context) error { return nil }

// pageOf builds n raw order records starting at id first.
func pageOf(first, n int) []models.RawRecord {
	out := make([]models.RawRecord, n)
	for i := range out {
		id := first + i
		out[i] = models.RawRecord{
			"internalId":       itoa(id),
			"tranId":           "SO-" + itoa(id),
			"createdDate":      "2024-01-01T01:00:00Z",
			"lastModifiedDate": time.Date(2024, 1, 1, 2, 0, i, 0, time.UTC).Format(time.RFC3339),
		}
	}
	return out
}

func itoa(i int) string {
	return scalarString(float64(i))
}

// singlePage returns a probe that always answers with records as page one.
func singlePage(records []models.RawRecord) func(int, models.Window) (*models.PageResult, error) {
	return func(int, models.Window) (*models.PageResult, error) {
		if len(records) == 0 {
			return &models.PageResult{}, nil
		}
		return &models.PageResult{TotalRecords: len(records), TotalPages: 1, SearchID: "search-1", Records: records}, nil
	}
}

var testNow = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func testConfig() *config.SyncConfig {
	cfg := config.NewSyncConfig("test")
	cfg.Engine.RecordPoolWidth = 4
	cfg.Engine.UpsertPoolWidth = 2
	cfg.Mappings = mapping.Table{
		mapping.DefaultTarget: {
			"order": {
				"id":              {Type: mapping.RuleField, Source: "internalId", Required: true},
				"number":          {Type: mapping.RuleField, Source: "tranId", Required: true},
				"paymentMethod":   {Type: mapping.RuleField, Source: "paymentMethod"},
				"shipMethod":      {Type: mapping.RuleField, Source: "shipMethod"},
				"billingAddress":  {Type: mapping.RuleField, Source: "billingAddress"},
				"shippingAddress": {Type: mapping.RuleField, Source: "shippingAddress"},
			},
			"customer": {
				"id":    {Type: mapping.RuleField, Source: "internalId", Required: true},
				"email": {Type: mapping.RuleField, Source: "email"},
			},
			"inventory": {
				"locations": {Type: mapping.RuleList, Source: "locations"},
			},
			"inventorylot": {
				"inventoryNumbers": {Type: mapping.RuleList, Source: "inventoryNumbers"},
			},
			"pricelevel": {
				"pricelevels": {Type: mapping.RulePath, Source: "pricingMatrix.pricing"},
			},
			"product": {
				"sku": {Type: mapping.RuleField, Source: "itemId"},
			},
		},
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.SyncConfig, src core.Source, tgt core.Target) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, src, tgt,
		WithClock(func() time.Time { return testNow }),
		WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return e
}
