package oauth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestNewCallbackServer_RejectsNonLoopback(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"https scheme", "https://127.0.0.1:7171/callback"},
		{"public host", "http://example.com:7171/callback"},
		{"custom scheme", "myapp://callback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCallbackServer(tt.uri)
			var uriErr *RedirectURIError
			if !errors.As(err, &uriErr) {
				t.Errorf("NewCallbackServer(%q) error = %v, want RedirectURIError", tt.uri, err)
			}
		})
	}
}

func TestNewCallbackServer_AcceptsLoopback(t *testing.T) {
	for _, uri := range []string{
		"http://127.0.0.1:7171/callback",
		"http://localhost:7171/callback",
	} {
		if _, err := NewCallbackServer(uri); err != nil {
			t.Errorf("NewCallbackServer(%q) error = %v", uri, err)
		}
	}
}

func TestCallbackServer_ReceivesCallback(t *testing.T) {
	// Port 0 lets the OS pick; the bound address comes from Addr().
	cb, err := NewCallbackServer("http://127.0.0.1:0/callback")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer cb.Stop()

	resp, err := http.Get("http://" + cb.Addr() + "/callback?code=the-code&state=the-state")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	result, err := cb.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback() error = %v", err)
	}
	if result.Code != "the-code" || result.State != "the-state" {
		t.Errorf("result = %+v, want code/state from query", result)
	}
	if result.IsError() {
		t.Error("IsError() = true for a success callback")
	}
}

func TestCallbackServer_ProviderError(t *testing.T) {
	cb, err := NewCallbackServer("http://127.0.0.1:0/callback")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer cb.Stop()

	resp, err := http.Get("http://" + cb.Addr() + "/callback?error=access_denied&error_description=user+said+no")
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	result, err := cb.WaitForCallback(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError() || result.Error != "access_denied" {
		t.Errorf("result = %+v, want access_denied error", result)
	}
}

func TestCallbackServer_WaitTimesOut(t *testing.T) {
	cb, err := NewCallbackServer("http://127.0.0.1:0/callback")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := cb.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer cb.Stop()

	_, err = cb.WaitForCallback(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForCallback() error = %v, want deadline exceeded", err)
	}
}
