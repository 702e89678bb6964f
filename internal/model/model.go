package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventCreate is the feed's event type for a newly mapped element.
const EventCreate = "create"

// NodePrefix marks OSM nodes (point features) in composite element ids.
const NodePrefix = "node:"

// Community is a named area with a GeoJSON boundary.
type Community struct {
	ID      string
	Name    string
	GeoJSON json.RawMessage // tags.geo_json, nil when absent
}

// ChangeEvent is one upstream create/update/delete record.
type ChangeEvent struct {
	Type      string
	ElementID string // "<kind>:<id>", e.g. "node:42"
	CreatedAt time.Time
}

// Element is a point of interest resolved from a ChangeEvent.
type Element struct {
	ID   string
	Lon  float64
	Lat  float64
	Name *string // osm_json.tags.name, nil when absent
}

// DisplayName returns the element name or "" when it has none.
func (e Element) DisplayName() string {
	if e.Name == nil {
		return ""
	}
	return *e.Name
}

// FlexibleID decodes a JSON string or number into its verbatim text.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: want string or number, got %s", string(b))
	}
	*f = FlexibleID(n.String())
	return nil
}
