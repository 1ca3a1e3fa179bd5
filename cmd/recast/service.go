package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"recast/internal/logging"
	"recast/internal/orchestrator"
	"recast/internal/server"
)

func newServiceCmd(root *rootFlags) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run the workflow HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewComponentLogger("service")
			cfg, err := root.loadConfig(logger)
			if err != nil {
				return err
			}

			orch := orchestrator.New(cfg, logger)
			srvCfg := server.DefaultConfig()
			srvCfg.Host = host
			srvCfg.Port = port
			srv := server.New(orch, srvCfg, logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			fmt.Println(successText(fmt.Sprintf("Service listening on %s:%d", host, port)))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				fmt.Println(yellow(fmt.Sprintf("Received %s, shutting down", sig)))
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "interface to bind")
	cmd.Flags().IntVar(&port, "port", 8000, "port to listen on")
	return cmd
}
