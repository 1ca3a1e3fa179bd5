package config

import (
	"fmt"

	"recast/internal/errors"
)

// Provider-specific default keys tried during model resolution. The first
// entry is the conventional name; the second covers providers whose configs
// predate it.
var providerDefaultKeys = []string{"default_model", "model"}

// ResolveAgentModel resolves the model for agent name using the documented
// chain: explicit argument, agent config, provider default, global default.
func ResolveAgentModel(cfg Config, name, explicit string) (string, error) {
	return ResolveAgentValue(cfg, name, "model", explicit)
}

// ResolveAgentProvider resolves the provider for agent name, falling back to
// llm_config.default_provider.
func ResolveAgentProvider(cfg Config, name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := GetString(cfg, "llm_config.agents."+name+".provider"); v != "" {
		return v
	}
	return GetString(cfg, "llm_config.default_provider")
}

// ResolveAgentValue resolves key for agent name. The chain is: explicit
// argument, llm_config.agents.<name>.<key>, the provider default, then
// llm_config.default_<key>. Returns ErrConfigurationMissing when nothing in
// the chain yields a value.
func ResolveAgentValue(cfg Config, name, key, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if v := GetString(cfg, "llm_config.agents."+name+"."+key); v != "" {
		return v, nil
	}

	provider := ResolveAgentProvider(cfg, name, "")
	if provider != "" {
		for _, defaultKey := range providerDefaultKeys {
			if v := GetString(cfg, "llm_config.providers."+provider+"."+defaultKey); v != "" {
				return v, nil
			}
		}
	}

	if v := GetString(cfg, "llm_config.default_"+key); v != "" {
		return v, nil
	}

	return "", fmt.Errorf("%w: no %q for agent %q", errors.ErrConfigurationMissing, key, name)
}

// ProviderConfig returns the provider block at llm_config.providers.<name>,
// or an empty map when absent.
func ProviderConfig(cfg Config, provider string) Config {
	if m := GetMap(cfg, "llm_config.providers."+provider); m != nil {
		return m
	}
	return Config{}
}
