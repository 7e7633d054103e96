package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHandler_NoCheckers(t *testing.T) {
	handler := NewHandler("test")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Fatalf("expected healthy status, got %s", resp.Status)
	}
	if resp.Version != "test" {
		t.Fatalf("expected version test, got %s", resp.Version)
	}
}

func TestHandler_UnhealthyChecker(t *testing.T) {
	handler := NewHandler("test")
	handler.RegisterChecker("kafka", CheckerFunc(func() Check {
		return Check{Name: "kafka", Status: StatusUnhealthy, Message: "no brokers"}
	}))
	handler.RegisterChecker("registry", CheckerFunc(func() Check {
		return Check{Name: "registry", Status: StatusHealthy}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy overall status, got %s", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks in report, got %d", len(resp.Checks))
	}
	if resp.Checks["kafka"].Message != "no brokers" {
		t.Fatalf("unexpected check message: %s", resp.Checks["kafka"].Message)
	}
}

func TestNewPingChecker(t *testing.T) {
	ok := NewPingChecker("db", time.Second, func(ctx context.Context) error { return nil })
	if check := ok.Check(); check.Status != StatusHealthy {
		t.Fatalf("expected healthy ping, got %s", check.Status)
	}

	failing := NewPingChecker("db", time.Second, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	check := failing.Check()
	if check.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy ping, got %s", check.Status)
	}
	if check.Message != "connection refused" {
		t.Fatalf("unexpected message: %s", check.Message)
	}
}

func TestNewPingChecker_Timeout(t *testing.T) {
	checker := NewPingChecker("db", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if check := checker.Check(); check.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy on timeout, got %s", check.Status)
	}
}
