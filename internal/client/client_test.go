package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sprocket/internal/api"
	"sprocket/internal/client"
	"sprocket/internal/services"
)

func newServer(t *testing.T, handler http.HandlerFunc) *client.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := client.New(server.URL)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode: %v", err)
	}
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := client.New("  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestNewDefaultsScheme(t *testing.T) {
	c, err := client.New("127.0.0.1:7447")
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	_ = c
}

func TestSubmitOperationRoundTrip(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req api.SubmitOperationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Operation != "transcode" {
			t.Errorf("operation = %q", req.Operation)
		}
		writeJSON(t, w, http.StatusCreated, api.JobResponse{
			Job: api.JobView{ID: "job-1", Status: "queued"},
		})
	})

	job, err := c.SubmitOperation(context.Background(), api.SubmitOperationRequest{
		InputPath: "/in/clip.mp4",
		Operation: "transcode",
	})
	if err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}
	if job.ID != "job-1" || job.Status != "queued" {
		t.Fatalf("job = %+v", job)
	}
}

func TestListJobsSendsFilter(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "failed" {
			t.Errorf("status filter = %q", got)
		}
		writeJSON(t, w, http.StatusOK, api.JobListResponse{
			Jobs: []api.JobView{{ID: "a"}, {ID: "b"}},
		})
	})

	jobs, err := c.ListJobs(context.Background(), "failed")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d", len(jobs))
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
	}{
		{"bad request", http.StatusBadRequest, services.ErrValidation},
		{"not found", http.StatusNotFound, services.ErrNotFound},
		{"server error", http.StatusInternalServerError, services.ErrExternalTool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tc.status, api.ErrorResponse{Error: "nope: details"})
			})
			_, err := c.GetJob(context.Background(), "x")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("error = %v, want %v", err, tc.marker)
			}
			if !strings.Contains(err.Error(), "nope: details") {
				t.Fatalf("error message lost: %v", err)
			}
		})
	}
}

func TestCancelJobEscapesID(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/cancel") {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(t, w, http.StatusOK, api.CancelResponse{Cancelled: true})
	})

	cancelled, err := c.CancelJob(context.Background(), "job-9")
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if !cancelled {
		t.Fatal("cancelled = false")
	}
}

func TestDaemonUnreachable(t *testing.T) {
	c, err := client.New("127.0.0.1:1")
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	if _, err := c.Status(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}
