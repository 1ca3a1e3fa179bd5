package llm

import (
	"os"
	"strings"

	"recast/internal/config"
)

// ConfigForAgent assembles a transport Config for the named agent using the
// documented resolution chain: agent config, provider defaults, then global
// llm_config defaults.
func ConfigForAgent(cfg config.Config, agentName string) (Config, error) {
	provider := config.ResolveAgentProvider(cfg, agentName, "")
	if provider == "" {
		provider = "anthropic"
	}
	model, err := config.ResolveAgentModel(cfg, agentName, "")
	if err != nil {
		return Config{}, err
	}

	providerCfg := config.ProviderConfig(cfg, provider)
	agentPath := "llm_config.agents." + agentName

	out := Config{
		Provider:               provider,
		Model:                  model,
		BaseURL:                config.GetString(cfg, agentPath+".api_base"),
		MaxTokens:              config.GetInt(cfg, agentPath+".max_tokens", 0),
		Temperature:            config.GetFloat(cfg, agentPath+".temperature", 0),
		ExtendedThinkingTokens: config.GetInt(cfg, agentPath+".extended_thinking.budget_tokens", 0),
	}

	if out.BaseURL == "" {
		out.BaseURL = config.GetString(providerCfg, "api_base")
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = config.GetInt(providerCfg, "max_tokens", 0)
	}
	out.TimeoutSeconds = config.GetInt(providerCfg, "timeout_seconds", 0)
	out.StreamingThreshold = config.GetInt(providerCfg, "streaming_threshold", 0)
	if params := config.GetMap(providerCfg, "model_params"); params != nil {
		out.ModelParams = params
	}

	out.APIKey = resolveAPIKey(providerCfg, provider)
	return out, nil
}

// OmitsTemperature reports whether the provider rejects an explicit
// temperature parameter.
func OmitsTemperature(provider string) bool {
	return provider == "openai"
}

func resolveAPIKey(providerCfg config.Config, provider string) string {
	if key := config.GetString(providerCfg, "api_key"); key != "" {
		return key
	}
	envVar := config.GetString(providerCfg, "api_key_env")
	if envVar == "" {
		envVar = strings.ToUpper(provider) + "_API_KEY"
	}
	return os.Getenv(envVar)
}
