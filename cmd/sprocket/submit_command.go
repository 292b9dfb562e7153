package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sprocket/internal/api"
	"sprocket/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		operation  string
		profile    string
		workflow   string
		output     string
		paramPairs []string
		wait       bool
	)

	cmd := &cobra.Command{
		Use:   "submit <input> [extra inputs...]",
		Short: "Submit a processing job",
		Long: `Submit a media file for processing. Exactly one of --operation,
--profile, or --workflow selects what to run. Extra positional arguments
are additional inputs for the concatenate operation.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := 0
			for _, v := range []string{operation, profile, workflow} {
				if v != "" {
					selected++
				}
			}
			if selected != 1 {
				return fmt.Errorf("exactly one of --operation, --profile, or --workflow is required")
			}

			input, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve input path: %w", err)
			}
			params, err := parseParams(paramPairs)
			if err != nil {
				return err
			}
			if len(args) > 1 {
				extras := make([]string, 0, len(args)-1)
				for _, arg := range args[1:] {
					abs, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve input path: %w", err)
					}
					extras = append(extras, abs)
				}
				if params == nil {
					params = make(map[string]any, 1)
				}
				params["inputs"] = extras
			}

			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}

			var jobs []api.JobView
			switch {
			case workflow != "":
				jobs, err = apiClient.SubmitWorkflow(cmd.Context(), api.SubmitWorkflowRequest{
					InputPath: input,
					Workflow:  workflow,
				})
			case profile != "":
				var job api.JobView
				job, err = apiClient.SubmitProfile(cmd.Context(), api.SubmitProfileRequest{
					InputPath:  input,
					Profile:    profile,
					Overrides:  params,
					OutputPath: output,
				})
				jobs = []api.JobView{job}
			default:
				var job api.JobView
				job, err = apiClient.SubmitOperation(cmd.Context(), api.SubmitOperationRequest{
					InputPath:  input,
					Operation:  operation,
					Parameters: params,
					OutputPath: output,
				})
				jobs = []api.JobView{job}
			}
			if err != nil {
				return err
			}

			for _, job := range jobs {
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s  %s  %s\n",
					shortID(job.ID), operationLabel(job.Operation), job.OutputPath)
			}
			if !wait {
				return nil
			}
			return waitForJobs(cmd, ctx, jobs)
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "Operation to run (transcode, compress, watermark, ...)")
	cmd.Flags().StringVar(&profile, "profile", "", "Named profile to apply")
	cmd.Flags().StringVar(&workflow, "workflow", "", "Named workflow to run")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path override")
	cmd.Flags().StringArrayVarP(&paramPairs, "param", "p", nil, "Operation parameter as key=value (repeatable)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until submitted jobs finish")

	return cmd
}

func waitForJobs(cmd *cobra.Command, ctx *commandContext, jobs []api.JobView) error {
	apiClient, err := ctx.apiClient()
	if err != nil {
		return err
	}

	remaining := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		remaining[job.ID] = struct{}{}
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	failed := 0
	for len(remaining) > 0 {
		select {
		case <-cmd.Context().Done():
			return context.Canceled
		case <-ticker.C:
		}
		for id := range remaining {
			view, err := apiClient.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !queue.Status(view.Status).Terminal() {
				continue
			}
			delete(remaining, id)
			switch view.Status {
			case string(queue.StatusCompleted):
				fmt.Fprintf(cmd.OutOrStdout(), "done   %s  %s\n", shortID(id), view.OutputPath)
			default:
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", view.Status, shortID(id), view.ErrorMessage)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d job(s) did not complete", failed)
	}
	return nil
}
