// Package config provides the configuration of a sync agency: the kind
// catalog, source metadata paths, mapping tables, code translation tables,
// engine widths and the connector, checkpoint and archive settings.
//
// Example usage:
//
//	cfg := config.NewSyncConfig("netsuite")
//	if err := config.Load("agency.yaml", cfg); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/nsagency/pkg/logger"
	"github.com/ajitpratap0/nsagency/pkg/lookup"
	"github.com/ajitpratap0/nsagency/pkg/mapping"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// SyncConfig is the single configuration structure for one agency.
type SyncConfig struct {
	// Name identifies the agency instance
	Name string `yaml:"name" json:"name"`
	// TimeZone is the IANA zone used for "now" and for source query dates
	TimeZone string `yaml:"time_zone" json:"time_zone"`

	// Engine controls fan-out widths and the page cap
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// RecordTypes maps a kind to the source record type name
	RecordTypes map[string]string `yaml:"record_types" json:"record_types"`
	// Families maps a kind to the source query family it uses
	Families map[string]models.Family `yaml:"families" json:"families"`
	// SrcMetadata names the envelope paths per kind
	SrcMetadata map[string]SrcMetadata `yaml:"src_metadata" json:"src_metadata"`
	// Mappings is target -> kind -> spec
	Mappings mapping.Table `yaml:"mappings" json:"mappings"`

	// Lookup holds payment method, ship method, country and term tables
	Lookup lookup.Tables `yaml:",inline" json:"lookup"`

	Source     ConnectorConfig  `yaml:"source" json:"source"`
	Target     ConnectorConfig  `yaml:"target" json:"target"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Archive    ArchiveConfig    `yaml:"archive" json:"archive"`
	Logging    logger.Config    `yaml:"logging" json:"logging"`
}

// EngineConfig contains the concurrency settings of the engine.
type EngineConfig struct {
	// PageCap limits pages fetched per window (0 = unlimited)
	PageCap int `yaml:"page_cap" json:"page_cap"`
	// RecordPoolWidth bounds concurrent record transforms
	RecordPoolWidth int `yaml:"record_pool_width" json:"record_pool_width"`
	// PagePoolWidth bounds concurrent page fetches
	PagePoolWidth int `yaml:"page_pool_width" json:"page_pool_width"`
	// UpsertPoolWidth bounds concurrent target upserts
	UpsertPoolWidth int `yaml:"upsert_pool_width" json:"upsert_pool_width"`
}

// SrcMetadata names where the envelope fields live in a raw record.
type SrcMetadata struct {
	SrcID     string `yaml:"src_id" json:"src_id"`
	CreatedAt string `yaml:"created_at" json:"created_at"`
	UpdatedAt string `yaml:"updated_at" json:"updated_at"`
}

// DefaultRecordTypes is the kind catalog of the source ERP.
var DefaultRecordTypes = map[string]string{
	"order":           "salesOrder",
	"invoice":         "invoice",
	"purchaseorder":   "purchaseOrder",
	"quote":           "estimate",
	"opportunity":     "opportunity",
	"rma":             "returnAuthorization",
	"itemfulfillment": "itemFulfillment",
	"itemreceipt":     "itemReceipt",
	"billcredit":      "vendorCredit",
	"payment":         "vendorPayment",
	"customer":        "customer",
	"vendor":          "vendor",
	"product":         "product",
	"inventory":       "inventory",
	"inventorylot":    "inventoryLot",
	"pricelevel":      "priceLevel",
}

// DefaultFamilies assigns every default kind to its query family.
var DefaultFamilies = map[string]models.Family{
	"order":           models.FamilyTransaction,
	"invoice":         models.FamilyTransaction,
	"purchaseorder":   models.FamilyTransaction,
	"quote":           models.FamilyTransaction,
	"opportunity":     models.FamilyTransaction,
	"rma":             models.FamilyTransaction,
	"itemfulfillment": models.FamilyTransaction,
	"itemreceipt":     models.FamilyTransaction,
	"billcredit":      models.FamilyTransaction,
	"payment":         models.FamilyTransaction,
	"customer":        models.FamilyPerson,
	"vendor":          models.FamilyPerson,
	"product":         models.FamilyAsset,
	"inventory":       models.FamilyAsset,
	"inventorylot":    models.FamilyAsset,
	"pricelevel":      models.FamilyAsset,
}

// DefaultSrcMetadata is used for kinds without an explicit entry.
var DefaultSrcMetadata = SrcMetadata{
	SrcID:     "internalId",
	CreatedAt: "createdDate",
	UpdatedAt: "lastModifiedDate",
}

// NewSyncConfig creates a SyncConfig with the agency defaults. Load
// overlays file values on top of it.
func NewSyncConfig(name string) *SyncConfig {
	return &SyncConfig{
		Name:     name,
		TimeZone: "UTC",
		Engine: EngineConfig{
			PageCap:         3,
			RecordPoolWidth: 50,
			PagePoolWidth:   2,
			UpsertPoolWidth: 1,
		},
		RecordTypes: copyMap(DefaultRecordTypes),
		Families:    copyMap(DefaultFamilies),
		SrcMetadata: map[string]SrcMetadata{
			"customer": {SrcID: "internalId", CreatedAt: "dateCreated", UpdatedAt: "lastModifiedDate"},
			"vendor":   {SrcID: "internalId", CreatedAt: "dateCreated", UpdatedAt: "lastModifiedDate"},
		},
		Mappings: mapping.Table{},
		Source:   NewConnectorConfig("rest"),
		Target:   NewConnectorConfig("rest"),
		Checkpoint: CheckpointConfig{
			Type:  "none",
			Table: "sync_checkpoints",
		},
		Archive: ArchiveConfig{
			Type:        "none",
			Compression: "gzip",
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks the configuration for correctness.
func (c *SyncConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Engine.PageCap < 0 {
		return fmt.Errorf("page_cap cannot be negative")
	}
	if c.Engine.RecordPoolWidth <= 0 {
		return fmt.Errorf("record_pool_width must be positive")
	}
	if c.Engine.PagePoolWidth <= 0 {
		return fmt.Errorf("page_pool_width must be positive")
	}
	if c.Engine.UpsertPoolWidth <= 0 {
		return fmt.Errorf("upsert_pool_width must be positive")
	}
	if len(c.RecordTypes) == 0 {
		return fmt.Errorf("record_types cannot be empty")
	}
	for kind := range c.RecordTypes {
		switch c.Families[kind] {
		case models.FamilyTransaction, models.FamilyAsset, models.FamilyPerson:
		default:
			return fmt.Errorf("kind %s has no valid family", kind)
		}
	}
	return nil
}

// Location resolves TimeZone, defaulting to UTC.
func (c *SyncConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// MetadataFor returns the envelope paths for kind.
func (c *SyncConfig) MetadataFor(kind string) SrcMetadata {
	if md, ok := c.SrcMetadata[kind]; ok {
		return md
	}
	return DefaultSrcMetadata
}

// Tables returns the lookup tables with defaults applied.
func (c *SyncConfig) Tables() lookup.Tables {
	return c.Lookup.WithDefaults()
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
