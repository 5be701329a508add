package provider

import (
	"encoding/json"
	"time"
)

// Record is the canonical internal shape of one provider record. Zero values
// mean "absent": the normalizer never rejects input, the sync engine does.
type Record struct {
	ID        string
	Name      string
	EventTime *time.Time
	Status    string
	Venue     *VenueRef
	Raw       map[string]any // preserved verbatim for diagnostics
}

// VenueRef is a venue as referenced by a provider record. ID is empty when
// the provider sent only a name (or a bare string).
type VenueRef struct {
	ID   string
	Name string
}

// nameFields and timeFields are the ordered candidate field names tolerated
// across provider record shapes; first hit wins.
var (
	nameFields = []string{"name", "title"}
	timeFields = []string{"event_time", "date", "start"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime tries the known layouts in order. ok is false when none match;
// callers treat that as an explicit absent state, not an error.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Normalize maps a raw provider payload into a Record. Malformed or missing
// fields degrade to zero values; it never fails.
func Normalize(raw json.RawMessage) Record {
	rec := Record{Status: "open"}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return rec
	}
	rec.Raw = m

	rec.ID = stringField(m, "id")

	for _, f := range nameFields {
		if v := stringField(m, f); v != "" {
			rec.Name = v
			break
		}
	}

	for _, f := range timeFields {
		v := stringField(m, f)
		if v == "" {
			continue
		}
		if t, ok := ParseTime(v); ok {
			rec.EventTime = &t
			break
		}
	}

	if v := stringField(m, "status"); v != "" {
		rec.Status = v
	}

	switch venue := m["venue"].(type) {
	case map[string]any:
		rec.Venue = &VenueRef{
			ID:   stringField(venue, "id"),
			Name: stringField(venue, "name"),
		}
	case string:
		if venue != "" {
			rec.Venue = &VenueRef{Name: venue}
		}
	}

	return rec
}

// ChangedAt extracts the best-effort "changed" timestamp of a raw payload,
// used as the sync cursor: changed_at, then updated_at, then event_time.
func ChangedAt(m map[string]any) *time.Time {
	for _, f := range []string{"changed_at", "updated_at", "event_time"} {
		v := stringField(m, f)
		if v == "" {
			continue
		}
		if t, ok := ParseTime(v); ok {
			return &t
		}
	}

	return nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}

	return ""
}
