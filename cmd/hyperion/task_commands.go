package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hyperion/internal/api"
	"hyperion/internal/config"
	"hyperion/internal/queue"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List media tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(statusFilters))
			for _, raw := range statusFilters {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				views, err := api.ListTasks(cmd.Context(), store, statuses...)
				if err != nil {
					return err
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
					return nil
				}

				rows := make([][]string, 0, len(views))
				for _, view := range views {
					rows = append(rows, []string{
						view.ID,
						view.Status,
						formatAssignment(view),
						view.ErrorMessage,
						view.EnqueuedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{
						{title: "ID"},
						{title: "Status"},
						{title: "Worker"},
						{title: "Error"},
						{title: "Registered"},
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task with its full audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				detail, err := api.DescribeTask(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task:   %s\n", detail.Task.ID)
				fmt.Fprintf(out, "Status: %s\n", detail.Task.Status)
				if detail.Task.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:  %s\n", detail.Task.ErrorMessage)
				}
				fmt.Fprintln(out)

				rows := make([][]string, 0, len(detail.Log))
				for _, entry := range detail.Log {
					worker := ""
					if entry.WorkerID != nil {
						worker = fmt.Sprintf("%d", *entry.WorkerID)
					}
					rows = append(rows, []string{
						entry.RecordedAt,
						entry.OldStatus,
						entry.NewStatus,
						worker,
						entry.Note,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						{title: "Recorded"},
						{title: "From"},
						{title: "To"},
						{title: "Worker", numeric: true},
						{title: "Note"},
					},
					rows,
				))
				return nil
			})
		},
	}
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <task-id>",
		Short: "Place an uploaded task in the claim queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				view, queued, err := api.EnqueueTask(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				if !queued {
					fmt.Fprintf(cmd.OutOrStdout(), "Task %s not added to queue (status %s)\n", view.ID, view.Status)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s\n", view.ID)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Delete a task and its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				if err := api.RemoveTask(cmd.Context(), store, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
				return nil
			})
		},
	}
}

func formatAssignment(view api.TaskView) string {
	if view.AssignedWorker != nil {
		return fmt.Sprintf("%d", *view.AssignedWorker)
	}
	if view.Queued {
		return "(queued)"
	}
	return ""
}
