package api

// Wire payloads shared by the HTTP server and the CLI client.

type SubmitOperationRequest struct {
	InputPath  string         `json:"inputPath"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters,omitempty"`
	OutputPath string         `json:"outputPath,omitempty"`
}

type SubmitProfileRequest struct {
	InputPath  string         `json:"inputPath"`
	Profile    string         `json:"profile"`
	Overrides  map[string]any `json:"overrides,omitempty"`
	OutputPath string         `json:"outputPath,omitempty"`
}

type SubmitWorkflowRequest struct {
	InputPath string `json:"inputPath"`
	Workflow  string `json:"workflow"`
}

type RetryRequest struct {
	IDs []string `json:"ids,omitempty"`
}

type JobResponse struct {
	Job JobView `json:"job"`
}

type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type ClearResponse struct {
	Removed int64 `json:"removed"`
}

type StatusResponse struct {
	Running      bool   `json:"running"`
	Stats        Stats  `json:"stats"`
	JobDBPath    string `json:"jobDbPath"`
	LockFilePath string `json:"lockFilePath"`
}

type ProfileListResponse struct {
	Profiles []ProfileView `json:"profiles"`
}

type WorkflowListResponse struct {
	Workflows []WorkflowView `json:"workflows"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
