// Package core defines the interfaces the sync engine consumes from the ERP
// side: a paginated Source for retrieval and a Target for upserts.
package core

import (
	"context"

	"github.com/ajitpratap0/nsagency/pkg/mapping"
	"github.com/ajitpratap0/nsagency/pkg/models"
)

// ConnectorType represents the role of a connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
	ConnectorTypeTarget ConnectorType = "target"
)

// Source retrieves records page by page. Implementations choose the query
// by w.Family and apply the family filters from w.Filters.
type Source interface {
	// Probe runs the query for w and returns page 1 with pagination metadata.
	Probe(ctx context.Context, recordType string, w models.Window) (*models.PageResult, error)

	// FetchPage returns one page (1-based) of an earlier probe's search.
	FetchPage(ctx context.Context, recordType, searchID string, page int, w models.Window) ([]models.RawRecord, error)

	Close(ctx context.Context) error
}

// ProductMetadataSource is implemented by sources that publish the item
// field metadata driving the product mapping. The engine calls it once per
// product batch.
type ProductMetadataSource interface {
	ProductMetadata(ctx context.Context, w models.Window) (mapping.Spec, error)
}

// Target writes transformed records and returns the target identifier.
type Target interface {
	UpsertTransaction(ctx context.Context, recordType string, data map[string]interface{}) (string, error)
	UpsertPerson(ctx context.Context, recordType string, data map[string]interface{}) (string, error)
	Close(ctx context.Context) error
}

// Connector is implemented by connectors that report their identity.
type Connector interface {
	Name() string
	Type() ConnectorType
	Version() string
}
