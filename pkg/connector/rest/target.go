package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nsagency/pkg/config"
	"github.com/ajitpratap0/nsagency/pkg/connector/base"
	"github.com/ajitpratap0/nsagency/pkg/connector/core"
	"github.com/ajitpratap0/nsagency/pkg/errors"
)

// Target writes records through the ERP upsert API. The ERP matches on the
// external id carried in data, so repeated upserts are idempotent.
type Target struct {
	*base.BaseConnector
}

var _ core.Target = (*Target)(nil)

// NewTarget creates a REST target.
func NewTarget(ctx context.Context, cfg config.ConnectorConfig, logger *zap.Logger) (*Target, error) {
	bc, err := base.NewBaseConnector(ctx, "rest", core.ConnectorTypeTarget, version, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Target{BaseConnector: bc}, nil
}

// UpsertTransaction inserts or updates one transaction record.
func (t *Target) UpsertTransaction(ctx context.Context, recordType string, data map[string]interface{}) (string, error) {
	return t.upsert(ctx, "transaction", recordType, data)
}

// UpsertPerson inserts or updates one customer or vendor record.
func (t *Target) UpsertPerson(ctx context.Context, recordType string, data map[string]interface{}) (string, error) {
	return t.upsert(ctx, "person", recordType, data)
}

func (t *Target) upsert(ctx context.Context, family, recordType string, data map[string]interface{}) (string, error) {
	var out upsertResponse
	path := fmt.Sprintf("/records/%s/%s", family, url.PathEscape(recordType))

	err := t.Call(ctx, "upsert_"+family, func(ctx context.Context) error {
		return t.Client().DoJSON(ctx, http.MethodPut, path, nil, data, &out)
	})
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New(errors.ErrorTypeTransport, "upsert response carried no id").
			WithDetail("record_type", recordType)
	}
	return out.ID, nil
}
