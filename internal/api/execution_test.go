package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kekahyde/inferd/internal/infer"
	"github.com/kekahyde/inferd/internal/model"
)

// blockingEngine blocks until cancelled, signalling on started when running.
func blockingEngine(started chan struct{}) infer.Engine {
	return infer.Func(func(ctx context.Context, prompt string) (string, error) {
		if started != nil {
			close(started)
		}
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func startExecution(t *testing.T, ts *httptest.Server, body string) map[string]string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/executions", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/executions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func getSnapshot(t *testing.T, ts *httptest.Server, id string) (model.Snapshot, int) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/v1/executions/" + id)
	if err != nil {
		t.Fatalf("GET /v1/executions/%s: %v", id, err)
	}
	defer resp.Body.Close()

	var snap model.Snapshot
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
	}
	return snap, resp.StatusCode
}

func pollUntilState(t *testing.T, ts *httptest.Server, id, want string) model.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var snap model.Snapshot
	for time.Now().Before(deadline) {
		var status int
		snap, status = getSnapshot(t, ts, id)
		if status != http.StatusOK {
			t.Fatalf("GET status = %d", status)
		}
		if snap.State == want {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("execution never reached %s, last state %s", want, snap.State)
	return model.Snapshot{}
}

func TestStartExecutionCompletes(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out := startExecution(t, ts, `{"prompt":"hello"}`)
	if len(out["id"]) != 26 {
		t.Errorf("id length = %d, want 26 (ULID)", len(out["id"]))
	}
	if out["state"] != model.StateQueued {
		t.Errorf("state = %q, want Queued", out["state"])
	}

	snap := pollUntilState(t, ts, out["id"], model.StateCompleted)
	if snap.Result != "echo: hello" {
		t.Errorf("result = %q", snap.Result)
	}
}

func TestStartExecutionConflictWhileBusy(t *testing.T) {
	started := make(chan struct{})
	srv := newTestServer(t, blockingEngine(started))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out := startExecution(t, ts, `{"prompt":"first"}`)
	<-started

	resp, err := http.Post(ts.URL+"/v1/executions", "application/json",
		bytes.NewBufferString(`{"prompt":"second"}`))
	if err != nil {
		t.Fatalf("POST second: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}

	// Unblock the first execution so the test server can shut down cleanly.
	cancelExecution(t, ts, out["id"])
}

func TestStartExecutionRejectsPolicyViolations(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, body := range []string{
		`{"prompt":"x","policy":{"allow_networking":true}}`,
		`{"prompt":"x","policy":{"allow_telemetry":true}}`,
	} {
		resp, err := http.Post(ts.URL+"/v1/executions", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestStartExecutionMissingPrompt(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/executions", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func cancelExecution(t *testing.T, ts *httptest.Server, id string) (model.Snapshot, int) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/executions/"+id+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	defer resp.Body.Close()

	var snap model.Snapshot
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode cancel response: %v", err)
		}
	}
	return snap, resp.StatusCode
}

func TestCancelRunningExecution(t *testing.T) {
	started := make(chan struct{})
	srv := newTestServer(t, blockingEngine(started))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out := startExecution(t, ts, `{"prompt":"work"}`)
	<-started
	pollUntilState(t, ts, out["id"], model.StateRunning)

	snap, status := cancelExecution(t, ts, out["id"])
	if status != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", status)
	}
	if snap.State != model.StateCancelled {
		t.Errorf("state = %s, want Cancelled", snap.State)
	}
}

func TestCancelCompletedExecutionConflicts(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out := startExecution(t, ts, `{"prompt":"quick"}`)
	pollUntilState(t, ts, out["id"], model.StateCompleted)

	if _, status := cancelExecution(t, ts, out["id"]); status != http.StatusConflict {
		t.Errorf("status = %d, want 409", status)
	}
}

func TestCancelUnknownExecution(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	if _, status := cancelExecution(t, ts, "01ARZ3NDEKTSV4RRFFQ69G5FAV"); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestGetUnknownExecution(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	if _, status := getSnapshot(t, ts, "01ARZ3NDEKTSV4RRFFQ69G5FAV"); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestFailedExecutionReportsError(t *testing.T) {
	engine := infer.Func(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("weights not found")
	})
	srv := newTestServer(t, engine)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	out := startExecution(t, ts, `{"prompt":"boom"}`)
	snap := pollUntilState(t, ts, out["id"], model.StateFailed)
	if snap.Error != "weights not found" {
		t.Errorf("error = %q", snap.Error)
	}
}

func TestListExecutionsHistory(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		out := startExecution(t, ts, fmt.Sprintf(`{"prompt":"p%d"}`, i))
		pollUntilState(t, ts, out["id"], model.StateCompleted)
		ids = append(ids, out["id"])
	}

	resp, err := http.Get(ts.URL + "/v1/executions?limit=2")
	if err != nil {
		t.Fatalf("GET /v1/executions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var list listExecutionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 3 {
		t.Errorf("total = %d, want 3", list.Total)
	}
	if len(list.Executions) != 2 {
		t.Errorf("page size = %d, want 2", len(list.Executions))
	}
	// Newest first.
	if len(list.Executions) > 0 && list.Executions[0].ID != ids[2] {
		t.Errorf("first entry = %s, want newest %s", list.Executions[0].ID, ids[2])
	}
}
