package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status is final. Terminal statuses are never
// overwritten.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Operation identifies the kind of transformation a job performs.
type Operation string

const (
	OpTranscode     Operation = "transcode"
	OpCompress      Operation = "compress"
	OpWatermark     Operation = "watermark"
	OpThumbnail     Operation = "thumbnail"
	OpExtractAudio  Operation = "extract_audio"
	OpCreateGIF     Operation = "create_gif"
	OpAnimatedImage Operation = "create_animated_image"
	OpTrim          Operation = "trim"
	OpConcatenate   Operation = "concatenate"
)

var allOperations = []Operation{
	OpTranscode,
	OpCompress,
	OpWatermark,
	OpThumbnail,
	OpExtractAudio,
	OpCreateGIF,
	OpAnimatedImage,
	OpTrim,
	OpConcatenate,
}

var operationSet = func() map[Operation]struct{} {
	set := make(map[Operation]struct{}, len(allOperations))
	for _, op := range allOperations {
		set[op] = struct{}{}
	}
	return set
}()

// AllOperations returns the ordered list of known operations.
func AllOperations() []Operation {
	cp := make([]Operation, len(allOperations))
	copy(cp, allOperations)
	return cp
}

// ParseOperation converts a string into a known Operation.
func ParseOperation(value string) (Operation, bool) {
	normalized := Operation(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := operationSet[normalized]
	return normalized, ok
}

// Job represents one scheduled unit of work.
type Job struct {
	ID           string
	Operation    Operation
	InputPath    string
	OutputPath   string
	Parameters   Parameters
	Status       Status
	Progress     float64
	ErrorMessage string

	// DependsOn holds the id of the predecessor workflow step whose output
	// this job consumes. Jobs with a dependency are not enqueued until the
	// predecessor completes.
	DependsOn string
	// Workflow names the workflow this job was expanded from, if any.
	Workflow string
	// Profile names the profile this job was resolved from, if any.
	Profile string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Chained reports whether the job waits on a predecessor step.
func (j *Job) Chained() bool {
	return strings.TrimSpace(j.DependsOn) != ""
}
