package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string, maxRetries int) *Client {
	return New(Config{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		MaxRetries:  maxRetries,
		BackoffUnit: time.Millisecond,
	}, nil)
}

func TestFetchPageRetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}))
	defer srv.Close()

	page, err := testClient(srv.URL, 3).FetchPage(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).FetchPage(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestRecordsFollowsCursorAndClearsParams(t *testing.T) {
	var mux http.ServeMux
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	var secondQuery string
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("changed_at") != "2024-05-01" {
			t.Errorf("first page missing changed_at param, got query %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"id": "1"}, {"id": "2"}},
			"next":    srv.URL + "/events/page2",
		})
	})
	mux.HandleFunc("/events/page2", func(w http.ResponseWriter, r *http.Request) {
		secondQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"id": "3"}},
			"next":    nil,
		})
	})

	params := url.Values{}
	params.Set("changed_at", "2024-05-01")

	it := testClient(srv.URL+"/events", 1).Records(context.Background(), "", params)
	var got int
	for it.Next() {
		got++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected 3 records across pages, got %d", got)
	}
	if secondQuery != "" {
		t.Fatalf("cursor page should carry no extra params, got %q", secondQuery)
	}
}

func TestRecordsStopsWhenNextIsNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"id": "1"}},
			"next":    nil,
		})
	}))
	defer srv.Close()

	it := testClient(srv.URL, 1).Records(context.Background(), "", nil)
	var got int
	for it.Next() {
		got++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected a single record, got %d", got)
	}
}

func TestRecordsSurfacesFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	it := testClient(srv.URL, 2).Records(context.Background(), "", nil)
	if it.Next() {
		t.Fatal("expected no records from a failing provider")
	}
	if it.Err() == nil {
		t.Fatal("expected iterator error")
	}
}

func TestDecodePageShapes(t *testing.T) {
	// bare list
	page, err := decodePage([]byte(`[{"id":"1"},{"id":"2"}]`))
	if err != nil {
		t.Fatalf("bare list: %v", err)
	}
	if len(page.Records) != 2 || page.Next != "" {
		t.Fatalf("bare list: got %d records next=%q", len(page.Records), page.Next)
	}

	// results object with cursor
	page, err = decodePage([]byte(`{"results":[{"id":"1"}],"next":"http://x/page2"}`))
	if err != nil {
		t.Fatalf("results object: %v", err)
	}
	if len(page.Records) != 1 || page.Next != "http://x/page2" {
		t.Fatalf("results object: got %d records next=%q", len(page.Records), page.Next)
	}

	// first list-valued field
	page, err = decodePage([]byte(`{"meta":{"total":2},"items":[{"id":"1"},{"id":"2"}]}`))
	if err != nil {
		t.Fatalf("first list field: %v", err)
	}
	if len(page.Records) != 2 || page.Next != "" {
		t.Fatalf("first list field: got %d records next=%q", len(page.Records), page.Next)
	}

	// unknown shape
	if _, err := decodePage([]byte(`{"status":"ok"}`)); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := decodePage([]byte(`"just a string"`)); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat for scalar, got %v", err)
	}
}
