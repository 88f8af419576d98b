package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/factory-workflow/internal/auth"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/ordering"
	"github.com/spec-kit/factory-workflow/internal/syncer"
	"github.com/spec-kit/factory-workflow/internal/workflow"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

var nextAssignTo string

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the pending incident that should be assigned next",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		col := syncer.NewCollection(domain.KindIncident, newClient(),
			syncer.WithLogger(logger),
			syncer.WithFilter(domain.ItemFilter{Status: domain.StatusPending, Direction: string(ordering.Oldest)}),
			syncer.WithRetryPolicy(syncer.RetryPolicyFromConfig(cfg.Sync)),
		)
		if err := col.RefreshWithRetry(ctx); err != nil {
			return err
		}
		next := ordering.NextForAssignment(col.Items())
		if next == nil {
			return apperrors.NewNotFound("pending incident", nil)
		}
		if nextAssignTo == "" {
			return printItem(next)
		}

		actor, err := auth.PeekActor(apiToken)
		if err != nil {
			return err
		}
		assigned, err := col.Submit(ctx, actor, next.ID, workflow.Request{
			Action:  workflow.ActionAssign,
			Payload: workflow.Payload{AssignedTo: nextAssignTo},
		})
		if err != nil {
			return err
		}
		return printItem(assigned)
	},
}

func init() {
	nextCmd.Flags().StringVar(&nextAssignTo, "assign-to", "", "Assign the incident to this technician")
	rootCmd.AddCommand(nextCmd)
}
