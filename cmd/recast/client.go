package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recast/internal/logging"
	"recast/internal/server"
)

func newClientCmd(root *rootFlags) *cobra.Command {
	var (
		host         string
		port         int
		projectPath  string
		intentFile   string
		poll         bool
		pollInterval time.Duration
		maxPolls     int
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Submit a workflow to a running service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewComponentLogger("client")
			if projectPath == "" {
				return fmt.Errorf("--project-path is required")
			}
			intent, err := loadIntent(intentFile)
			if err != nil {
				return err
			}

			client := server.NewClient(host, port, logger)
			ctx := context.Background()

			ack, err := client.Submit(ctx, server.WorkflowRequest{
				ProjectPath: projectPath,
				Intent:      intent,
			})
			if err != nil {
				return err
			}
			fmt.Println(successText(fmt.Sprintf("Submitted workflow %s (%s)", ack.WorkflowID, ack.Status)))

			if !poll {
				return nil
			}
			fmt.Println(statusText("Waiting for completion..."))
			rec, err := client.Poll(ctx, ack.WorkflowID, pollInterval, maxPolls)
			if err != nil {
				return err
			}
			if rec.Status != server.StatusSuccess {
				return fmt.Errorf("workflow %s failed: %s", rec.ID, rec.Error)
			}
			fmt.Println(successText(fmt.Sprintf("Workflow %s completed", rec.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "service host")
	cmd.Flags().IntVar(&port, "port", 8000, "service port")
	cmd.Flags().StringVarP(&projectPath, "project-path", "P", "", "path to the project to refactor")
	cmd.Flags().StringVar(&intentFile, "intent-file", "", "intent file (YAML or JSON)")
	cmd.Flags().BoolVar(&poll, "poll", true, "wait for the workflow to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 5*time.Second, "time between status checks")
	cmd.Flags().IntVar(&maxPolls, "max-polls", 60, "maximum status checks before giving up")
	return cmd
}
