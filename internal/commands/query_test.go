package commands

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diogo/agentchat/internal/config"
	apierrors "github.com/diogo/agentchat/internal/errors"
)

func TestRunQuery_EmptyPrompt(t *testing.T) {
	if err := runQuery("   ", true); err == nil {
		t.Error("empty prompt should be rejected")
	}
}

func TestRunQuery_RawToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/" {
			t.Errorf("path = %q, want /chat/", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"response":"Go is a programming language.","model":"gemini-2.0-flash"}`))
	}))
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvBackendURL, srv.URL)

	outPath := filepath.Join(t.TempDir(), "reply.md")
	oldOutput := outputFlag
	defer func() { outputFlag = oldOutput }()
	outputFlag = outPath

	if err := runQuery("what is Go?", true); err != nil {
		t.Fatalf("runQuery() failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if string(data) != "Go is a programming language." {
		t.Errorf("output = %q", data)
	}
}

func TestRunQuery_BackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
	}))
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvBackendURL, srv.URL)

	err := runQuery("hello", true)
	if err == nil {
		t.Fatal("backend failure should propagate")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v, want the backend detail", err)
	}
}

func TestFormatErrorMessage(t *testing.T) {
	if got := formatErrorMessage(nil, "ctx"); got != "" {
		t.Errorf("nil error should format empty, got %q", got)
	}

	apiErr := apierrors.NewAPIError(429, "/chat/", "rate limited")
	got := formatErrorMessage(apiErr, "Request failed")
	if !strings.Contains(got, "429") {
		t.Error("status code missing from formatted error")
	}
	if !strings.Contains(got, "/chat/") {
		t.Error("endpoint missing from formatted error")
	}

	netErr := apierrors.NewNetworkError("post", "/chat/", os.ErrDeadlineExceeded)
	if got := formatErrorMessage(netErr, "Request failed"); !strings.Contains(got, "Hint") {
		t.Error("network errors should carry a hint")
	}
}
