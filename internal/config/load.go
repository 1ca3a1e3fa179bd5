package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"recast/internal/logging"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFile reads a YAML configuration file, expanding ${ENV} references in
// string values. A missing file yields an empty config, not an error.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if parsed == nil {
		return Config{}, nil
	}

	return expandEnv(parsed).(map[string]any), nil
}

// LoadWithAppConfig merges the system configs in order, then the app config
// on top. Missing system files are skipped with a warning.
func LoadWithAppConfig(systemPaths []string, appPath string, logger logging.Logger) (Config, error) {
	logger = logging.OrNop(logger)

	merged := Config{}
	for _, sysPath := range systemPaths {
		if _, err := os.Stat(sysPath); err != nil {
			logger.Warn("System config not found: %s", sysPath)
			continue
		}
		sysCfg, err := LoadFile(sysPath)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, sysCfg)
	}

	if appPath != "" {
		appCfg, err := LoadFile(appPath)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, appCfg)
	}

	if _, ok := merged["llm_config"]; !ok {
		logger.Warn("No llm_config section found after merge")
		merged["llm_config"] = map[string]any{}
	}

	return merged, nil
}

func expandEnv(value any) any {
	switch v := value.(type) {
	case string:
		return envPattern.ReplaceAllStringFunc(v, func(match string) string {
			name := envPattern.FindStringSubmatch(match)[1]
			if resolved, ok := os.LookupEnv(name); ok {
				return resolved
			}
			return match
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = expandEnv(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = expandEnv(item)
		}
		return out
	default:
		return v
	}
}
