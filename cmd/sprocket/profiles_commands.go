package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List available processing profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			profileList, err := apiClient.Profiles(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(profileList))
			for _, profile := range profileList {
				rows = append(rows, []string{
					profile.Name,
					operationLabel(profile.Operation),
					profile.Description,
					formatParameters(profile.Parameters),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Operation", "Description", "Parameters"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List available workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			workflowList, err := apiClient.Workflows(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(workflowList))
			for _, workflow := range workflowList {
				steps := make([]string, 0, len(workflow.Steps))
				for _, step := range workflow.Steps {
					label := step.Profile
					if step.Chained {
						label = "then " + label
					}
					steps = append(steps, label)
				}
				rows = append(rows, []string{
					workflow.Name,
					workflow.Description,
					strings.Join(steps, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Description", "Steps"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func formatParameters(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, params[key]))
	}
	return strings.Join(pairs, " ")
}
