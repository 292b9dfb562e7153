package api

import (
	"sprocket/internal/profiles"
	"sprocket/internal/queue"
)

// FromJob converts a job record to its API representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:           job.ID,
		Operation:    string(job.Operation),
		InputPath:    job.InputPath,
		OutputPath:   job.OutputPath,
		Status:       string(job.Status),
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		DependsOn:    job.DependsOn,
		Workflow:     job.Workflow,
		Profile:      job.Profile,
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		view.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if job.StartedAt != nil {
		view.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.FinishedAt != nil {
		view.FinishedAt = job.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromJobs converts a job slice, preserving order.
func FromJobs(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	return views
}

// FromProfile converts a registry profile for listings.
func FromProfile(profile profiles.Profile) ProfileView {
	return ProfileView{
		Name:        profile.Name,
		Operation:   string(profile.Operation),
		Description: profile.Description,
		Parameters:  profile.Parameters,
	}
}

// FromWorkflow converts a registry workflow for listings.
func FromWorkflow(workflow profiles.Workflow) WorkflowView {
	steps := make([]WorkflowStepView, 0, len(workflow.Jobs))
	for _, step := range workflow.Jobs {
		steps = append(steps, WorkflowStepView{Profile: step.Profile, Chained: step.Chained})
	}
	return WorkflowView{
		Name:        workflow.Name,
		Description: workflow.Description,
		Steps:       steps,
	}
}
