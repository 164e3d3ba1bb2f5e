package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearchParsesNominatimResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Kyoto Station" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		w.Write([]byte(`[
			{"display_name":"Kyoto Station, Kyoto, Japan","lat":"34.9858","lon":"135.7588"},
			{"display_name":"broken row","lat":"not-a-number","lon":"135"}
		]`))
	}))
	defer srv.Close()

	c := &Client{Endpoints: []string{srv.URL}, Logger: quietLogger()}
	places, err := c.Search(context.Background(), "Kyoto Station")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Rows with unparseable coordinates are skipped, not fatal.
	if len(places) != 1 {
		t.Fatalf("places = %+v", places)
	}
	if places[0].Name != "Kyoto Station, Kyoto, Japan" || places[0].Lat != 34.9858 {
		t.Fatalf("place = %+v", places[0])
	}
}

func TestSearchFallsBackToSecondEndpoint(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"display_name":"Osaka","lat":"34.69","lon":"135.50"}]`))
	}))
	defer fallback.Close()

	c := &Client{Endpoints: []string{primary.URL, fallback.URL}, Logger: quietLogger()}
	places, err := c.Search(context.Background(), "Osaka")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(places) != 1 || places[0].Name != "Osaka" {
		t.Fatalf("places = %+v", places)
	}
}

func TestSearchAllEndpointsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{Endpoints: []string{srv.URL, srv.URL}, Logger: quietLogger()}
	if _, err := c.Search(context.Background(), "anywhere"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	c := &Client{Endpoints: []string{"http://127.0.0.1:0"}, Logger: quietLogger()}
	if _, err := c.Search(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSearchMaxResultsPassedThrough(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := &Client{Endpoints: []string{srv.URL}, MaxResults: 2, Logger: quietLogger()}
	if _, err := c.Search(context.Background(), "somewhere"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotLimit != "2" {
		t.Fatalf("limit = %q", gotLimit)
	}
}
