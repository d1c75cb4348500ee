package uiautomator2

import (
	"context"
	"net/http"
	"testing"
)

func TestBack(t *testing.T) {
	client, server := newTestClientWithSession(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/session/test-session/back" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{"value": nil})
	})
	defer server.Close()

	if err := client.Back(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSource(t *testing.T) {
	xml := `<?xml version="1.0"?><hierarchy><node text="Go" /></hierarchy>`
	client, server := newTestClientWithSession(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/test-session/source" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{"value": xml})
	})
	defer server.Close()

	got, err := client.Source(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != xml {
		t.Errorf("unexpected source %q", got)
	}
}

func TestSourceInvalidResponse(t *testing.T) {
	client, server := newTestClientWithSession(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": 42})
	})
	defer server.Close()

	if _, err := client.Source(context.Background()); err == nil {
		t.Error("expected error for non-string source")
	}
}

func TestCurrentPackage(t *testing.T) {
	client, server := newTestClientWithSession(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/test-session/appium/device/current_package" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{"value": "com.shop.mall"})
	})
	defer server.Close()

	pkg, err := client.CurrentPackage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg != "com.shop.mall" {
		t.Errorf("expected com.shop.mall, got %s", pkg)
	}
}

func TestDeviceRequestErrors(t *testing.T) {
	client := newErrorTestClient()
	ctx := context.Background()
	if _, err := client.Source(ctx); err == nil {
		t.Error("expected source error")
	}
	if _, err := client.CurrentPackage(ctx); err == nil {
		t.Error("expected current package error")
	}
}
