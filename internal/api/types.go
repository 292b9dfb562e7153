package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID           string  `json:"id"`
	Operation    string  `json:"operation"`
	InputPath    string  `json:"inputPath"`
	OutputPath   string  `json:"outputPath"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	DependsOn    string  `json:"dependsOn,omitempty"`
	Workflow     string  `json:"workflow,omitempty"`
	Profile      string  `json:"profile,omitempty"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
	StartedAt    string  `json:"startedAt,omitempty"`
	FinishedAt   string  `json:"finishedAt,omitempty"`
}

// Stats summarizes scheduler state for status surfaces.
type Stats struct {
	QueueDepth     int            `json:"queueDepth"`
	RunningCount   int            `json:"runningCount"`
	CountsByStatus map[string]int `json:"countsByStatus"`
	Workers        int            `json:"workers"`
}

// ProfileView describes a processing profile for listings.
type ProfileView struct {
	Name        string         `json:"name"`
	Operation   string         `json:"operation"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// WorkflowStepView describes one step of a workflow for listings.
type WorkflowStepView struct {
	Profile string `json:"profile"`
	Chained bool   `json:"chained,omitempty"`
}

// WorkflowView describes a workflow for listings.
type WorkflowView struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Steps       []WorkflowStepView `json:"steps"`
}
