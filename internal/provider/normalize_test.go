package provider

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeFieldFallbacks(t *testing.T) {
	rec := Normalize(json.RawMessage(`{"id":"e1","title":"Gopher Meetup","date":"2024-05-01"}`))
	if rec.ID != "e1" {
		t.Fatalf("id: got %q", rec.ID)
	}
	if rec.Name != "Gopher Meetup" {
		t.Fatalf("title fallback: got %q", rec.Name)
	}
	if rec.EventTime == nil || !rec.EventTime.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date fallback: got %v", rec.EventTime)
	}
}

func TestNormalizePrefersPrimaryFields(t *testing.T) {
	rec := Normalize(json.RawMessage(`{"name":"A","title":"B","event_time":"2024-05-01T10:00:00Z","date":"2020-01-01"}`))
	if rec.Name != "A" {
		t.Fatalf("name should win over title, got %q", rec.Name)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if rec.EventTime == nil || !rec.EventTime.Equal(want) {
		t.Fatalf("event_time should win over date, got %v", rec.EventTime)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	rec := Normalize(json.RawMessage(`{"name":"X","event_time":"not a time"}`))
	if rec.Status != "open" {
		t.Fatalf("default status: got %q", rec.Status)
	}
	if rec.EventTime != nil {
		t.Fatalf("unparseable time should stay nil, got %v", rec.EventTime)
	}
	if rec.Venue != nil {
		t.Fatalf("absent venue should stay nil, got %+v", rec.Venue)
	}
}

func TestNormalizeVenueShapes(t *testing.T) {
	rec := Normalize(json.RawMessage(`{"name":"X","venue":{"id":"v1","name":"Hall A"}}`))
	if rec.Venue == nil || rec.Venue.ID != "v1" || rec.Venue.Name != "Hall A" {
		t.Fatalf("venue object: got %+v", rec.Venue)
	}

	rec = Normalize(json.RawMessage(`{"name":"X","venue":"Hall B"}`))
	if rec.Venue == nil || rec.Venue.ID != "" || rec.Venue.Name != "Hall B" {
		t.Fatalf("venue string: got %+v", rec.Venue)
	}

	rec = Normalize(json.RawMessage(`{"name":"X","venue":42}`))
	if rec.Venue != nil {
		t.Fatalf("numeric venue should be ignored, got %+v", rec.Venue)
	}
}

func TestNormalizeMalformedPayload(t *testing.T) {
	rec := Normalize(json.RawMessage(`"not an object"`))
	if rec.ID != "" || rec.Name != "" || rec.Status != "open" {
		t.Fatalf("malformed payload should degrade to zero record, got %+v", rec)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	cases := []string{
		"2024-05-01T10:00:00.123456789Z",
		"2024-05-01T10:00:00Z",
		"2024-05-01T10:00:00",
		"2024-05-01 10:00:00",
		"2024-05-01",
	}
	for _, s := range cases {
		if _, ok := ParseTime(s); !ok {
			t.Fatalf("ParseTime(%q) should succeed", s)
		}
	}
	if _, ok := ParseTime("May 1st 2024"); ok {
		t.Fatal("ParseTime should reject unknown layouts")
	}
}

func TestChangedAtPrecedence(t *testing.T) {
	m := map[string]any{
		"changed_at": "2024-06-01T00:00:00Z",
		"updated_at": "2024-01-01T00:00:00Z",
		"event_time": "2020-01-01T00:00:00Z",
	}
	got := ChangedAt(m)
	if got == nil || !got.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("changed_at should win, got %v", got)
	}

	delete(m, "changed_at")
	got = ChangedAt(m)
	if got == nil || !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("updated_at should win next, got %v", got)
	}

	if got := ChangedAt(map[string]any{"name": "x"}); got != nil {
		t.Fatalf("no timestamp fields should yield nil, got %v", got)
	}
}
