package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/factory-workflow/internal/auth"
	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/syncer"
	"github.com/spec-kit/factory-workflow/internal/workflow"
)

var fireArgs workflow.Payload

var fireCmd = &cobra.Command{
	Use:   "fire <kind> <id> <action>",
	Short: "Fire a transition on one item",
	Long: `Fire a transition on one item. The transition is checked locally first;
rejected requests never reach the server.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, err := domain.ParseKind(args[0])
		if err != nil {
			return err
		}
		actor, err := auth.PeekActor(apiToken)
		if err != nil {
			return err
		}

		col := syncer.NewCollection(kind, newClient(),
			syncer.WithLogger(logger),
			syncer.WithRetryPolicy(syncer.RetryPolicyFromConfig(cfg.Sync)),
		)
		if err := col.RefreshWithRetry(ctx); err != nil {
			return err
		}
		item, err := col.Submit(ctx, actor, args[1], workflow.Request{
			Action:  workflow.Action(args[2]),
			Payload: fireArgs,
		})
		if err != nil {
			return err
		}
		return printItem(item)
	},
}

func init() {
	f := fireCmd.Flags()
	f.StringVar(&fireArgs.AssignedTo, "assign-to", "", "Assignee for assign")
	f.StringVar(&fireArgs.DepartmentID, "department", "", "Department code for forward")
	f.StringVar((*string)(&fireArgs.Priority), "priority", "", "Priority for set_priority")
	f.StringVar((*string)(&fireArgs.Difficulty), "difficulty", "", "Difficulty for set_difficulty")
	f.StringVar(&fireArgs.Text, "text", "", "Response or publication text")
	f.StringVar(&fireArgs.Note, "note", "", "Free-form note stored in history")
	rootCmd.AddCommand(fireCmd)
}
