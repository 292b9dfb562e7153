package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sprocket/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage the job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	cmd.AddCommand(newJobsClearCommand(ctx))

	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			jobs, err := apiClient.ListJobs(cmd.Context(), statusFilter)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					shortID(job.ID),
					operationLabel(job.Operation),
					job.Status,
					formatProgress(job),
					truncatePath(job.InputPath, 40),
					truncatePath(job.OutputPath, 40),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Operation", "Status", "Progress", "Input", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (queued, running, completed, failed, cancelled)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show full details for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := apiClient.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJobDetail(cmd, job)
			return nil
		},
	}
}

func printJobDetail(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:        %s\n", job.ID)
	fmt.Fprintf(out, "Operation: %s\n", operationLabel(job.Operation))
	fmt.Fprintf(out, "Status:    %s\n", job.Status)
	fmt.Fprintf(out, "Progress:  %s\n", formatProgress(job))
	fmt.Fprintf(out, "Input:     %s\n", job.InputPath)
	fmt.Fprintf(out, "Output:    %s\n", job.OutputPath)
	if job.Profile != "" {
		fmt.Fprintf(out, "Profile:   %s\n", job.Profile)
	}
	if job.Workflow != "" {
		fmt.Fprintf(out, "Workflow:  %s\n", job.Workflow)
	}
	if job.DependsOn != "" {
		fmt.Fprintf(out, "After:     %s\n", job.DependsOn)
	}
	if job.CreatedAt != "" {
		fmt.Fprintf(out, "Created:   %s\n", job.CreatedAt)
	}
	if job.StartedAt != "" {
		fmt.Fprintf(out, "Started:   %s\n", job.StartedAt)
	}
	if job.FinishedAt != "" {
		fmt.Fprintf(out, "Finished:  %s\n", job.FinishedAt)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.ErrorMessage)
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			cancelled, err := apiClient.CancelJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !cancelled {
				fmt.Fprintln(cmd.OutOrStdout(), "job already finished")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
			return nil
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Requeue failed jobs (all of them when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			jobs, err := apiClient.RetryFailed(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d job(s)\n", len(jobs))
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs (or failed jobs with --failed)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			clear := apiClient.ClearCompleted
			label := "completed"
			if failed {
				clear = apiClient.ClearFailed
				label = "failed"
			}
			removed, err := clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s %s job(s)\n", strconv.FormatInt(removed, 10), label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Clear failed jobs instead of completed ones")
	return cmd
}
