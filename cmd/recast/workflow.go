package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recast/internal/lineage"
	"recast/internal/logging"
	"recast/internal/orchestrator"
)

func newWorkflowCmd(root *rootFlags) *cobra.Command {
	var (
		projectPath string
		intentFile  string
		lineageFile string
		stage       string
		keepRunID   bool
	)

	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run a refactoring workflow locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewComponentLogger("workflow")
			if !root.hasAppConfig() {
				return fmt.Errorf("--config is required")
			}
			cfg, err := root.loadConfig(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch := orchestrator.New(cfg, logger)

			if lineageFile != "" {
				if stage == "" {
					return fmt.Errorf("--stage is required with --lineage-file")
				}
				fmt.Println(statusText(fmt.Sprintf("Replaying %s from stage %s", lineageFile, stage)))
				result, err := lineage.RunFromLineage(ctx, orch, lineageFile, stage, cfg,
					lineage.ReplayOptions{KeepRunID: keepRunID}, logger)
				if err != nil {
					return err
				}
				return printResult(result)
			}

			if projectPath == "" {
				return fmt.Errorf("--project-path is required")
			}
			intent, err := loadIntent(intentFile)
			if err != nil {
				return err
			}

			_, wfCtx, err := orch.InitializeWorkflow(projectPath, intent)
			if err != nil {
				return err
			}
			fmt.Println(statusText(fmt.Sprintf("Running workflow on %s", projectPath)))
			result, err := orch.ExecuteWorkflow(ctx, "discovery", wfCtx)
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project-path", "P", "", "path to the project to refactor")
	cmd.Flags().StringVar(&intentFile, "intent-file", "", "intent file (YAML or JSON)")
	cmd.Flags().StringVar(&lineageFile, "lineage-file", "", "replay from a recorded lineage event file")
	cmd.Flags().StringVar(&stage, "stage", "", "stage to resume at (discovery|solution_designer|coder)")
	cmd.Flags().BoolVar(&keepRunID, "keep-runid", false, "reuse the recorded workflow run id when replaying")
	return cmd
}

func printResult(result map[string]any) error {
	status, _ := result["status"].(string)
	switch status {
	case "success":
		fmt.Println(successText(fmt.Sprintf("Workflow %v completed", result["workflow_run_id"])))
	default:
		fmt.Println(errorText(fmt.Sprintf("Workflow %v failed: %v", result["workflow_run_id"], result["error"])))
	}
	if path, ok := result["execution_path"].([]string); ok && len(path) > 0 {
		fmt.Println(bold("Teams:"), path)
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	if status != "success" {
		return fmt.Errorf("workflow finished with status %s", status)
	}
	return nil
}
