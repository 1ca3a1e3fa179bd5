package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"recast/internal/config"
	"recast/internal/logging"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func errorText(msg string) string   { return red("error: " + msg) }
func successText(msg string) string { return green(msg) }
func statusText(msg string) string  { return cyan(msg) }

type rootFlags struct {
	appConfig     string
	systemConfigs []string
	logLevel      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "recast",
		Short: "LLM-driven code refactoring workflows",
		Long: "recast runs intent-driven refactoring workflows: a discovery agent\n" +
			"scans the project, a solution designer plans changes, and a coder\n" +
			"applies them, with full lineage of every LLM interaction.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyLogLevel(flags.logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.appConfig, "config", "", "application config file (YAML)")
	cmd.PersistentFlags().StringSliceVar(&flags.systemConfigs, "system-configs", nil, "system config files, merged in order")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log", "info", "log level (debug|info|warn|error)")

	viper.SetEnvPrefix("RECAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"config", "system-configs", "log"} {
		_ = viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
	}

	cmd.AddCommand(newWorkflowCmd(flags))
	cmd.AddCommand(newServiceCmd(flags))
	cmd.AddCommand(newClientCmd(flags))
	return cmd
}

func applyLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logging.SetLevel(logging.DEBUG)
	case "warn":
		logging.SetLevel(logging.WARN)
	case "error":
		logging.SetLevel(logging.ERROR)
	default:
		logging.SetLevel(logging.INFO)
	}
}

func (f *rootFlags) hasAppConfig() bool {
	return f.appConfig != "" || viper.GetString("config") != ""
}

// loadConfig merges system configs and the app config the same way the
// service does at startup. Missing flags fall back to RECAST_* env values.
func (f *rootFlags) loadConfig(logger logging.Logger) (config.Config, error) {
	appPath := f.appConfig
	if appPath == "" {
		appPath = viper.GetString("config")
	}
	systemPaths := f.systemConfigs
	if len(systemPaths) == 0 {
		if env := viper.GetString("system-configs"); env != "" {
			systemPaths = strings.Split(env, ",")
		}
	}
	return config.LoadWithAppConfig(systemPaths, appPath, logger)
}

// loadIntent reads an intent file (YAML or JSON) into a mapping. A bare
// string file body becomes {"description": body}.
func loadIntent(path string) (map[string]any, error) {
	if path == "" {
		return nil, fmt.Errorf("intent file required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent file: %w", err)
	}
	var intent map[string]any
	if err := yaml.Unmarshal(raw, &intent); err == nil && intent != nil {
		return intent, nil
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return nil, fmt.Errorf("intent file %s is empty", path)
	}
	return map[string]any{"description": body}, nil
}
