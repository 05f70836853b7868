package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/pinboard/internal/apperr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Create(t *testing.T) {
	var got Snapshot
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/snapshots" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"snapshotId":"abc","version":3}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", "secret", nil, quietLogger())
	res, err := c.Create(context.Background(), snap("u1", "v1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.ID != "abc" || res.Version != 3 || !res.Success {
		t.Errorf("res = %+v", res)
	}
	if got.UserID != "u1" || got.ViewID != "v1" {
		t.Errorf("server received %+v", got)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestClient_CreateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil, quietLogger())
	if _, err := c.Create(context.Background(), snap("u1", "v1")); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_ListPassesFilter(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"success":true,"snapshots":[
			{"id":"s2","userId":"u1","viewId":"v1","version":2,"payload":{}},
			"garbage",
			{"id":"s1","userId":"u1","viewId":"v1","version":1,"payload":{}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil, quietLogger())
	got, err := c.List(context.Background(), Filter{UserID: "u1", ViewID: "v1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s2" || got[1].ID != "s1" {
		t.Errorf("got %+v", got)
	}
	if query != "userId=u1&viewId=v1" {
		t.Errorf("query = %q", query)
	}
}

func TestClient_ListEmptyOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	c := NewClient(srv.URL, "", nil, quietLogger())

	got, err := c.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty slice", got)
	}

	srv.Close()
	got, err = c.List(context.Background(), Filter{})
	if err != nil || len(got) != 0 {
		t.Errorf("closed server: got %v, %v", got, err)
	}
}

func TestClient_GetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL, "", nil, quietLogger())
	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
