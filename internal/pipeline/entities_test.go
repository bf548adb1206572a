package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nsagency/pkg/errors"
	"github.com/ajitpratap0/nsagency/pkg/mapping"
	"github.com/ajitpratap0/nsagency/pkg/metrics"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

var cut = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func orderWindow(t *testing.T, e *Engine) models.Window {
	w, err := e.NewWindow("order", WindowParams{CutDate: cut, Hours: 4, Limit: 100})
	require.NoError(t, err)
	return w
}

func TestSyncEntitiesIsolatesRecordFailures(t *testing.T) {
	records := pageOf(1001, 6)
	delete(records[3], "tranId")

	src := &fakeSource{probe: singlePage(records)}
	e := newTestEngine(t, testConfig(), src, nil)

	failedBefore := testutil.ToFloat64(metrics.EntitiesTotal.WithLabelValues(metrics.StageTransform, "order", metrics.StatusFailure))
	entities, err := e.SyncEntities(context.Background(), "order", orderWindow(t, e), "")
	require.NoError(t, err)
	require.Len(t, entities, 6)

	for i, ent := range entities {
		assert.Equal(t, "order-"+itoa(1001+i), ent.TxTypeSrcID)
		assert.Equal(t, itoa(1001+i), ent.SrcID)
		if i == 3 {
			assert.Equal(t, models.StatusFailed, ent.TxStatus)
			require.NotNil(t, ent.Failure)
			assert.Equal(t, string(errors.ErrorTypeMapping), ent.Failure.Type)
			assert.Contains(t, ent.TxNote, "mapping: ")
			assert.Equal(t, records[3]["internalId"], ent.Data["internalId"], "failed entities carry the raw record")
			continue
		}
		assert.Equal(t, models.StatusUnset, ent.TxStatus)
		assert.Empty(t, ent.TxNote)
		assert.Equal(t, "SO-"+itoa(1001+i), ent.Data["number"])
		assert.Equal(t, time.UTC, ent.UpdatedAt.Location())
	}
	assert.Equal(t, failedBefore+1,
		testutil.ToFloat64(metrics.EntitiesTotal.WithLabelValues(metrics.StageTransform, "order", metrics.StatusFailure)))
}

func TestSyncEntitiesEnvelopeFailureIsIsolated(t *testing.T) {
	records := pageOf(1, 3)
	records[1]["lastModifiedDate"] = "yesterday"
	delete(records[2], "internalId")

	e := newTestEngine(t, testConfig(), &fakeSource{probe: singlePage(records)}, nil)
	entities, err := e.SyncEntities(context.Background(), "order", orderWindow(t, e), "")
	require.NoError(t, err)
	require.Len(t, entities, 3)

	assert.False(t, entities[0].Failed())
	assert.True(t, entities[1].Failed())
	assert.Equal(t, "order-2", entities[1].TxTypeSrcID)
	assert.True(t, entities[2].Failed())
	assert.Empty(t, entities[2].SrcID)
}

func TestSyncEntitiesDoesNotMutateRaw(t *testing.T) {
	records := pageOf(1, 1)
	before := records[0].Clone()

	e := newTestEngine(t, testConfig(), &fakeSource{probe: singlePage(records)}, nil)
	_, err := e.SyncEntities(context.Background(), "order", orderWindow(t, e), "")
	require.NoError(t, err)
	assert.Equal(t, before, records[0])
}

func TestSyncEntitiesUnsupportedKind(t *testing.T) {
	src := &fakeSource{probe: singlePage(pageOf(1, 1))}
	e := newTestEngine(t, testConfig(), src, nil)

	_, err := e.SyncEntities(context.Background(), "widget", models.Window{}, "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedKind))
	assert.Zero(t, src.probeCount())
}

func TestSyncEntitiesMissingMappingFailsFast(t *testing.T) {
	src := &fakeSource{probe: singlePage(pageOf(1, 1))}
	e := newTestEngine(t, testConfig(), src, nil)

	w, err := e.NewWindow("invoice", WindowParams{CutDate: cut})
	require.NoError(t, err)
	_, err = e.SyncEntities(context.Background(), "invoice", w, "")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Zero(t, src.probeCount(), "nothing is fetched without a mapping")
}

func TestSyncEntitiesRetrievalFailureIsFatal(t *testing.T) {
	src := &fakeSource{probe: func(int, models.Window) (*models.PageResult, error) {
		return nil, errors.New(errors.ErrorTypeTransport, "search failed")
	}}
	e := newTestEngine(t, testConfig(), src, nil)

	entities, err := e.SyncEntities(context.Background(), "order", orderWindow(t, e), "")
	require.Error(t, err)
	assert.Nil(t, entities)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestSyncEntitiesMappingKey(t *testing.T) {
	cfg := testConfig()
	cfg.Mappings["warehouse"] = map[string]mapping.Spec{
		"order": {"ref": {Type: mapping.RuleField, Source: "tranId"}},
	}
	e := newTestEngine(t, cfg, &fakeSource{probe: singlePage(pageOf(7, 1))}, nil)

	entities, err := e.SyncEntities(context.Background(), "order", orderWindow(t, e), "warehouse")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, map[string]interface{}{"ref": "SO-7"}, entities[0].Data)
}

func TestSyncEntitiesProductMetadataOncePerBatch(t *testing.T) {
	records := make([]models.RawRecord, 4)
	for i := range records {
		records[i] = models.RawRecord{
			"internalId":       itoa(i + 1),
			"itemId":           "SKU-" + itoa(i+1),
			"displayName":      "Widget " + itoa(i+1),
			"createdDate":      "2024-01-01T01:00:00Z",
			"lastModifiedDate": "2024-01-01T02:00:00Z",
		}
	}
	src := &metaSource{
		fakeSource: &fakeSource{probe: singlePage(records)},
		spec:       mapping.Spec{"name": {Type: mapping.RuleField, Source: "displayName"}},
	}
	e := newTestEngine(t, testConfig(), src, nil)

	w, err := e.NewWindow("product", WindowParams{CutDate: cut})
	require.NoError(t, err)
	entities, err := e.SyncEntities(context.Background(), "product", w, "")
	require.NoError(t, err)
	require.Len(t, entities, 4)
	assert.Equal(t, 1, src.calls)
	for i, ent := range entities {
		assert.Equal(t, "SKU-"+itoa(i+1), ent.Data["sku"])
		assert.Equal(t, "Widget "+itoa(i+1), ent.Data["name"])
	}
}

func TestSyncEntitiesPersonMetadataPaths(t *testing.T) {
	raw := models.RawRecord{
		"internalId":       "55",
		"email":            "buyer@example.com",
		"dateCreated":      "2023-12-31T23:00:00-08:00",
		"lastModifiedDate": "2024-01-01 03:00:00",
	}
	e := newTestEngine(t, testConfig(), &fakeSource{probe: singlePage([]models.RawRecord{raw})}, nil)

	w, err := e.NewWindow("customer", WindowParams{CutDate: cut})
	require.NoError(t, err)
	entities, err := e.SyncEntities(context.Background(), "customer", w, "")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	ent := entities[0]
	assert.False(t, ent.Failed())
	assert.Equal(t, "customer-55", ent.TxTypeSrcID)
	assert.True(t, ent.CreatedAt.Equal(time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)))
	assert.True(t, ent.UpdatedAt.Equal(time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)))
}

// An empty source is polled until the window reaches now and yields no
// entities.
func TestSyncEntitiesEmptySourceEndToEnd(t *testing.T) {
	src := &fakeSource{probe: singlePage(nil)}
	e := newTestEngine(t, testConfig(), src, nil)

	entities, err := e.SyncEntities(context.Background(), "order", orderWindow(t, e), "")
	require.NoError(t, err)
	assert.Empty(t, entities)

	// now is 10:00, so windows end at 04:00, 08:00 and 12:00
	assert.Equal(t, 3, src.probeCount())
	for i, w := range src.probes {
		assert.True(t, w.CutDate.Equal(cut))
		assert.True(t, w.EndDate.Equal(cut.Add(time.Duration(4*(i+1))*time.Hour)))
		assert.Equal(t, 100, w.Limit)
	}
}
