package socialgraph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetMetrics(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/channels/base/metrics" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("metric") != "followers" {
			t.Errorf("metric = %s", r.URL.Query().Get("metric"))
		}
		if r.Header.Get("X-API-KEY") != "key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-SIGNATURE") == "" || r.Header.Get("X-TIMESTAMP") == "" {
			t.Errorf("missing signature headers")
		}
		_ = json.NewEncoder(w).Encode(Metrics{
			CurrentValue: 1200,
			StartValue:   1000,
			ChangeRate:   4.5,
			LastUpdated:  updated,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", time.Second)
	m, err := c.GetMetrics(context.Background(), KindChannel, "base", "followers")
	if err != nil {
		t.Fatalf("GetMetrics() error = %v", err)
	}
	if m.CurrentValue != 1200 || m.StartValue != 1000 || m.TargetID != "base" {
		t.Errorf("metrics = %+v", m)
	}
	if !m.LastUpdated.Equal(updated) {
		t.Errorf("last updated = %s", m.LastUpdated)
	}
}

func TestGetMetricsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/casts/missing/metrics" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "", time.Second)
	if _, err := c.GetMetrics(context.Background(), KindCast, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := c.GetMetrics(context.Background(), KindCast, "other", ""); err == nil {
		t.Error("expected error for 502")
	}
}

func TestSignRequestIsDeterministic(t *testing.T) {
	c := NewClient("", "key", "secret", 0)
	a := c.signRequest("1700000000", "GET", "/v1/casts/x/metrics", "")
	b := c.signRequest("1700000000", "GET", "/v1/casts/x/metrics", "")
	if a != b || a == "" {
		t.Errorf("signatures differ: %q vs %q", a, b)
	}
	if c.signRequest("1700000001", "GET", "/v1/casts/x/metrics", "") == a {
		t.Error("signature ignores timestamp")
	}
}
