package models

import (
	"strings"
	"time"
)

// Status is the final outcome of one entity.
type Status string

const (
	StatusUnset   Status = ""
	StatusSuccess Status = "S"
	StatusFailed  Status = "F"
)

// UnwrittenTargetID marks an entity that never reached the target.
const UnwrittenTargetID = "####"

// Failure is the structured error attached to a failed entity.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// String formats the failure as "<type>: <message>".
func (f *Failure) String() string {
	if f == nil {
		return ""
	}
	return f.Type + ": " + f.Message
}

// Entity is the engine's unit of work: one record plus its sync envelope.
type Entity struct {
	SrcID       string                 `json:"src_id"`
	TxTypeSrcID string                 `json:"tx_type_src_id"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Data        map[string]interface{} `json:"data"`
	TxStatus    Status                 `json:"tx_status,omitempty"`
	TxNote      string                 `json:"tx_note,omitempty"`
	Failure     *Failure               `json:"failure,omitempty"`
	TgtID       string                 `json:"tgt_id,omitempty"`
}

// CompositeID builds the "<kind>-<src-id>" identifier.
func CompositeID(kind, srcID string) string {
	return kind + "-" + srcID
}

// Kind derives the kind from the composite identifier.
func (e *Entity) Kind() string {
	kind, _, _ := strings.Cut(e.TxTypeSrcID, "-")
	return kind
}

// Fail marks the entity failed and records f.
func (e *Entity) Fail(f *Failure) {
	e.TxStatus = StatusFailed
	e.Failure = f
	e.TxNote = f.String()
}

// Failed reports whether the entity carries a failure.
func (e *Entity) Failed() bool {
	return e.TxStatus == StatusFailed
}
