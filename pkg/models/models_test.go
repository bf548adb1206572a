package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowWiden(t *testing.T) {
	cut := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := Window{CutDate: cut, EndDate: cut.Add(6 * time.Hour), Hours: 6}

	wider := w.Widen()
	assert.Equal(t, cut.Add(12*time.Hour), wider.EndDate)
	assert.Equal(t, cut.Add(6*time.Hour), w.EndDate, "receiver is a copy")
	assert.Equal(t, cut, wider.CutDate)

	half := Window{Hours: 0.5}
	assert.Equal(t, 30*time.Minute, half.Step())
}

func TestWindowFilter(t *testing.T) {
	w := Window{Filters: map[string]interface{}{"vendor_id": "42", "active_only": nil}}
	assert.Equal(t, "42", w.Filter("vendor_id", ""))
	assert.Equal(t, true, w.Filter("active_only", true))
	assert.Equal(t, false, w.Filter("item_detail", false))
	assert.Equal(t, 1, Window{}.Filter("x", 1))
}

func TestEntityKindAndFail(t *testing.T) {
	e := &Entity{SrcID: "7", TxTypeSrcID: CompositeID("purchaseorder", "7")}
	assert.Equal(t, "purchaseorder-7", e.TxTypeSrcID)
	assert.Equal(t, "purchaseorder", e.Kind())
	assert.False(t, e.Failed())

	e.Fail(&Failure{Type: "mapping", Message: "tranId is required"})
	assert.True(t, e.Failed())
	assert.Equal(t, StatusFailed, e.TxStatus)
	assert.Equal(t, "mapping: tranId is required", e.TxNote)

	var none *Failure
	assert.Equal(t, "", none.String())
}

func TestRawRecordClone(t *testing.T) {
	r := RawRecord{"internalId": "1"}
	c := r.Clone()
	c["internalId"] = "2"
	assert.Equal(t, "1", r.Get("internalId"))
	assert.Nil(t, RawRecord(nil).Get("x"))
	assert.Nil(t, RawRecord(nil).Clone())
}
