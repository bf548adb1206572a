package models

import (
	"fmt"
	"time"
)

// Family groups kinds that share one source query.
type Family string

const (
	FamilyTransaction Family = "transaction"
	FamilyAsset       Family = "asset"
	FamilyPerson      Family = "person"
)

// Window bounds one retrieval attempt. Hours == 0 means a single pass with no
// widening; otherwise EndDate >= CutDate and EndDate grows by Hours on each
// empty fetch.
type Window struct {
	Kind       string    `json:"kind" yaml:"kind"`
	RecordType string    `json:"record_type" yaml:"record_type"`
	Family     Family    `json:"family" yaml:"family"`
	CutDate    time.Time `json:"cut_date" yaml:"cut_date"`
	EndDate    time.Time `json:"end_date" yaml:"end_date"`
	Hours      float64   `json:"hours" yaml:"hours"`
	Limit      int       `json:"limit" yaml:"limit"`
	Subsidiary string    `json:"subsidiary,omitempty" yaml:"subsidiary,omitempty"`

	// Filters carries family-specific options such as vendor_id,
	// item_detail, item_types or active_only.
	Filters map[string]interface{} `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// Step returns the widening increment.
func (w Window) Step() time.Duration {
	return time.Duration(w.Hours * float64(time.Hour))
}

// Widen returns a copy of the window with EndDate advanced by one step.
func (w Window) Widen() Window {
	w.EndDate = w.EndDate.Add(w.Step())
	return w
}

// Filter returns the named filter value, or def when absent.
func (w Window) Filter(name string, def interface{}) interface{} {
	if v, ok := w.Filters[name]; ok && v != nil {
		return v
	}
	return def
}

// String renders the window for log lines.
func (w Window) String() string {
	return fmt.Sprintf("%s/%s [%s, %s] hours=%g limit=%d",
		w.Kind, w.RecordType,
		w.CutDate.Format(time.RFC3339), w.EndDate.Format(time.RFC3339),
		w.Hours, w.Limit)
}

// PageResult is the answer to a page probe: page one plus pagination
// metadata. SearchID is required to fetch pages 2..N.
type PageResult struct {
	TotalRecords int         `json:"total_records"`
	TotalPages   int         `json:"total_pages"`
	SearchID     string      `json:"search_id"`
	Records      []RawRecord `json:"records"`
}
