package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func getStatus(t *testing.T, ts *httptest.Server) statusResponse {
	t.Helper()
	resp, err := http.Get(ts.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return out
}

func TestStatusIdle(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out := getStatus(t, ts)
	if out.State != "idle" {
		t.Errorf("state = %q, want idle", out.State)
	}
	if !out.ModelLoaded {
		t.Error("model_loaded = false for a loaded engine")
	}
	if out.ExecutionID != "" {
		t.Errorf("execution_id = %q while idle", out.ExecutionID)
	}
}

func TestStatusRunning(t *testing.T) {
	started := make(chan struct{})
	srv := newTestServer(t, blockingEngine(started))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	exec := startExecution(t, ts, `{"prompt":"busy"}`)
	<-started

	out := getStatus(t, ts)
	if out.State != "running" {
		t.Errorf("state = %q, want running", out.State)
	}
	if out.ExecutionID != exec["id"] {
		t.Errorf("execution_id = %q, want %q", out.ExecutionID, exec["id"])
	}

	cancelExecution(t, ts, exec["id"])
}

func TestPromptSynchronous(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/prompt", "application/json",
		bytes.NewBufferString(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("POST /v1/prompt: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out promptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Output != "echo: hi" {
		t.Errorf("output = %q", out.Output)
	}
}

func TestPromptRejectsPolicyViolation(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/prompt", "application/json",
		bytes.NewBufferString(`{"prompt":"hi","policy":{"allow_networking":true}}`))
	if err != nil {
		t.Fatalf("POST /v1/prompt: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPromptMissingBody(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/prompt", "application/json",
		bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST /v1/prompt: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
