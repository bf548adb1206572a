// Package rest implements the ERP source and target over a JSON HTTP
// gateway. Searches are created with a POST per record type; later pages
// are read by search id:
//
//	POST /search/{family}/{recordType}            -> page 1 + totals
//	POST /search/{family}/{recordType}/{searchID}/pages/{n}
//	GET  /metadata/product                        -> product mapping spec
//	PUT  /records/{transaction|person}/{recordType}
package rest

import (
	"time"

	"github.com/ajitpratap0/nsagency/pkg/models"
)

// queryDateLayout is the date format the ERP search expects.
const queryDateLayout = "2006-01-02 15:04:05"

// searchQuery is the body of every search request.
type searchQuery struct {
	CutDate    string                 `json:"cut_date"`
	EndDate    string                 `json:"end_date"`
	Hours      float64                `json:"hours"`
	Limit      int                    `json:"limit"`
	Subsidiary string                 `json:"subsidiary,omitempty"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
}

func newSearchQuery(w models.Window, loc *time.Location) searchQuery {
	return searchQuery{
		CutDate:    w.CutDate.In(loc).Format(queryDateLayout),
		EndDate:    w.EndDate.In(loc).Format(queryDateLayout),
		Hours:      w.Hours,
		Limit:      w.Limit,
		Subsidiary: w.Subsidiary,
		Filters:    familyFilters(w),
	}
}

// familyFilters keeps only the options the window's family understands.
func familyFilters(w models.Window) map[string]interface{} {
	var names []string
	switch w.Family {
	case models.FamilyTransaction:
		names = []string{"vendor_id", "item_detail"}
	case models.FamilyAsset:
		names = []string{"item_types", "last_qty_available_change"}
		if w.Kind == "product" {
			names = append(names, "active_only", "vendor_name")
		}
	}

	out := make(map[string]interface{})
	for _, name := range names {
		if v, ok := w.Filters[name]; ok && v != nil {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type pageResponse struct {
	Records []models.RawRecord `json:"records"`
}

type upsertResponse struct {
	ID string `json:"id"`
}
