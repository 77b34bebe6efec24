package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hyperion/internal/api"
	"hyperion/internal/config"
	"hyperion/internal/queue"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Manage the upload lifecycle",
	}

	uploadCmd.AddCommand(newUploadRegisterCommand(ctx))
	uploadCmd.AddCommand(newUploadConfirmCommand(ctx))
	uploadCmd.AddCommand(newUploadFailCommand(ctx))

	return uploadCmd
}

func newUploadRegisterCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register an incoming upload and print its task id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				view, err := api.RegisterUpload(cmd.Context(), store)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), view.ID)
				return nil
			})
		},
	}
}

func newUploadConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <task-id>",
		Short: "Confirm an upload landed and queue the task for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				view, err := api.ConfirmUpload(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is %s and queued for processing\n", view.ID, view.Status)
				return nil
			})
		},
	}
}

func newUploadFailCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "fail <task-id>",
		Short: "Record an upload failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				view, err := api.FailUpload(cmd.Context(), store, args[0], reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s marked %s: %s\n", view.ID, view.Status, view.ErrorMessage)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason to record")
	return cmd
}
