package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nsagency/pkg/compression"
	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

func sampleEntities() []*models.Entity {
	return []*models.Entity{
		{SrcID: "1", TxTypeSrcID: "order-1", UpdatedAt: time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), Data: map[string]interface{}{"id": "1"}},
		{SrcID: "2", TxTypeSrcID: "customer-2", Data: map[string]interface{}{"email": "a@b.c"}},
	}
}

func TestReadEntitiesFormats(t *testing.T) {
	dir := t.TempDir()

	array := filepath.Join(dir, "entities.json")
	require.NoError(t, os.WriteFile(array, []byte(`[{"src_id":"1","tx_type_src_id":"order-1","data":{"id":"1"}}]`), 0o600))

	lines := filepath.Join(dir, "entities.jsonl")
	require.NoError(t, os.WriteFile(lines, []byte("{\"src_id\":\"1\",\"tx_type_src_id\":\"order-1\"}\n{\"src_id\":\"2\",\"tx_type_src_id\":\"customer-2\"}\n"), 0o600))

	got, err := readEntities(array)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order", got[0].Kind())
	assert.Equal(t, "1", got[0].Data["id"])

	got, err = readEntities(lines)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "customer", got[1].Kind())
}

func TestReadEntitiesArchive(t *testing.T) {
	var buf bytes.Buffer
	zw, err := compression.NewWriter(&buf, compression.Zstd, compression.Default)
	require.NoError(t, err)
	for _, line := range []string{
		`{"src_id":"1","tx_type_src_id":"order-1"}`,
		`{"src_id":"2","tx_type_src_id":"order-2"}`,
	} {
		_, err = zw.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "run.jsonl"+compression.Zstd.Extension())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := readEntities(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].SrcID)
}

func TestReadEntitiesMissingFile(t *testing.T) {
	_, err := readEntities(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	assert.Nil(t, parseFilters(nil))
	assert.Equal(t, map[string]interface{}{
		"active_only": true,
		"item_detail": false,
		"vendor_id":   "42",
	}, parseFilters(map[string]string{"active_only": "true", "item_detail": "false", "vendor_id": "42"}))
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: acme\nengine:\n  page_cap: 3\n"), 0o600))

	v := viper.New()
	v.Set("config", path)
	v.Set("page-cap", 0)
	v.Set("record-pool-width", 8)
	v.Set("time-zone", "America/Chicago")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Name)
	assert.Equal(t, 0, cfg.Engine.PageCap)
	assert.Equal(t, 8, cfg.Engine.RecordPoolWidth)
	assert.Equal(t, "America/Chicago", cfg.TimeZone)
	assert.Equal(t, 2, cfg.Engine.PagePoolWidth)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agency.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: acme\n"), 0o600))

	v := viper.New()
	v.Set("config", path)
	v.Set("page-cap", -1)
	v.Set("time-zone", "Mars/Olympus")

	_, err := loadConfig(v)
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, sampleEntities()))
	assert.Contains(t, buf.String(), `"tx_type_src_id": "order-1"`)
}

func TestTargetWanted(t *testing.T) {
	cfg := config.NewSyncConfig("default")
	require.Empty(t, cfg.Target.BaseURL)

	assert.False(t, targetWanted(cfg, false), "plain sync with no target configured")
	assert.True(t, targetWanted(cfg, true))

	cfg.Target.BaseURL = "https://target.example.com"
	assert.True(t, targetWanted(cfg, false))

	cfg.Target.Type = ""
	assert.False(t, targetWanted(cfg, true))
}
