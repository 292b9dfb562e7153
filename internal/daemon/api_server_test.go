package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sprocket/internal/api"
	"sprocket/internal/config"
	"sprocket/internal/queue"
	"sprocket/internal/testsupport"
)

type apiHarness struct {
	cfg  *config.Config
	base string
}

func startAPI(t *testing.T) *apiHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &apiHarness{cfg: cfg, base: "http://" + d.Addr()}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, h.base+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (h *apiHarness) input(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.cfg.Paths.InputDir, name)
	testsupport.WriteFile(t, path, 2048)
	return path
}

func (h *apiHarness) waitForStatus(t *testing.T, id, want string) api.JobView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var resp api.JobResponse
		if code := h.do(t, http.MethodGet, "/api/jobs/"+id, nil, &resp); code != http.StatusOK {
			t.Fatalf("get job: status %d", code)
		}
		if resp.Job.Status == want {
			return resp.Job
		}
		if queue.Status(resp.Job.Status).Terminal() {
			t.Fatalf("job %s reached %s (%q), want %s", id, resp.Job.Status, resp.Job.ErrorMessage, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return api.JobView{}
}

func TestAPISubmitAndTrackJob(t *testing.T) {
	h := startAPI(t)

	var created api.JobResponse
	code := h.do(t, http.MethodPost, "/api/jobs", api.SubmitOperationRequest{
		InputPath: h.input(t, "clip.mp4"),
		Operation: "transcode",
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("submit status = %d", code)
	}
	if created.Job.ID == "" {
		t.Fatal("created job has no id")
	}

	done := h.waitForStatus(t, created.Job.ID, string(queue.StatusCompleted))
	if done.Progress != 100 {
		t.Fatalf("completed progress = %v", done.Progress)
	}
}

func TestAPIValidationAndNotFoundMapping(t *testing.T) {
	h := startAPI(t)

	var errResp api.ErrorResponse
	code := h.do(t, http.MethodPost, "/api/jobs", api.SubmitOperationRequest{
		InputPath: h.input(t, "clip.mp4"),
		Operation: "teleport",
	}, &errResp)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown operation status = %d", code)
	}
	if errResp.Error == "" {
		t.Fatal("error payload empty")
	}

	if code := h.do(t, http.MethodGet, "/api/jobs/nope", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("missing job status = %d", code)
	}
	if code := h.do(t, http.MethodGet, "/api/jobs?status=bogus", nil, &errResp); code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", code)
	}
	if code := h.do(t, http.MethodDelete, "/api/jobs", nil, nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("unsupported method status = %d", code)
	}
}

func TestAPIWorkflowAndCancel(t *testing.T) {
	h := startAPI(t)

	var submitted api.JobListResponse
	code := h.do(t, http.MethodPost, "/api/jobs/workflow", api.SubmitWorkflowRequest{
		InputPath: h.input(t, "clip.mp4"),
		Workflow:  "archive_package",
	}, &submitted)
	if code != http.StatusCreated {
		t.Fatalf("workflow status = %d", code)
	}
	if len(submitted.Jobs) != 2 {
		t.Fatalf("workflow jobs = %d", len(submitted.Jobs))
	}

	for _, job := range submitted.Jobs {
		h.waitForStatus(t, job.ID, string(queue.StatusCompleted))
	}

	// Cancelling a finished job reports false without error.
	var cancel api.CancelResponse
	path := fmt.Sprintf("/api/jobs/%s/cancel", submitted.Jobs[0].ID)
	if code := h.do(t, http.MethodPost, path, nil, &cancel); code != http.StatusOK {
		t.Fatalf("cancel status = %d", code)
	}
	if cancel.Cancelled {
		t.Fatal("cancel of terminal job reported true")
	}
}

func TestAPIStatusProfilesAndMetrics(t *testing.T) {
	h := startAPI(t)

	var status api.StatusResponse
	if code := h.do(t, http.MethodGet, "/api/status", nil, &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !status.Running || status.Stats.Workers != h.cfg.Processing.Workers {
		t.Fatalf("status = %+v", status)
	}

	var profileList api.ProfileListResponse
	if code := h.do(t, http.MethodGet, "/api/profiles", nil, &profileList); code != http.StatusOK {
		t.Fatalf("profiles code = %d", code)
	}
	if len(profileList.Profiles) == 0 {
		t.Fatal("no profiles returned")
	}

	var workflowList api.WorkflowListResponse
	if code := h.do(t, http.MethodGet, "/api/workflows", nil, &workflowList); code != http.StatusOK {
		t.Fatalf("workflows code = %d", code)
	}
	if len(workflowList.Workflows) == 0 {
		t.Fatal("no workflows returned")
	}

	resp, err := http.Get(h.base + "/metrics")
	if err != nil {
		t.Fatalf("metrics scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "sprocket_workers_total") {
		t.Fatalf("metrics output missing gauges:\n%s", body)
	}
}
