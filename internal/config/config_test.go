package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() Config {
	return Config{
		"llm_config": map[string]any{
			"default_provider": "anthropic",
			"default_model":    "claude-sonnet",
			"providers": map[string]any{
				"anthropic": map[string]any{
					"default_model": "claude-opus",
					"api_base":      "https://api.anthropic.com",
				},
			},
			"agents": map[string]any{
				"discovery": map[string]any{
					"model":       "claude-haiku",
					"temperature": 0.0,
					"prompts": map[string]any{
						"system": "You are a discovery agent.",
					},
				},
				"coder": map[string]any{},
			},
		},
		"project": map[string]any{"path": "/tmp/proj"},
	}
}

func TestGetDottedPath(t *testing.T) {
	cfg := sampleConfig()

	assert.Equal(t, "claude-haiku", Get(cfg, "llm_config.agents.discovery.model"))
	assert.Equal(t, "You are a discovery agent.", GetString(cfg, "llm_config.agents.discovery.prompts.system"))
	assert.Nil(t, Get(cfg, "llm_config.agents.missing.model"))
	assert.Nil(t, Get(cfg, "llm_config.agents.discovery.model.deeper"))
}

func TestGetWildcard(t *testing.T) {
	cfg := Config{
		"teams": map[string]any{
			"alpha": map[string]any{"name": "first"},
			"beta":  map[string]any{"name": "second"},
		},
	}
	// `*` matches the first child in sorted key order.
	assert.Equal(t, "first", Get(cfg, "teams.*.name"))
}

func TestGetTraversesJSONStrings(t *testing.T) {
	cfg := Config{"payload": `{"inner": {"value": 42}}`}
	assert.Equal(t, float64(42), Get(cfg, "payload.inner.value"))
}

func TestNodeEquivalence(t *testing.T) {
	cfg := sampleConfig()

	// get("a.b.c") must equal get_node("a.b").get("c") for any split point.
	cases := []struct{ prefix, rest string }{
		{"", "llm_config.agents.discovery.model"},
		{"llm_config", "agents.discovery.model"},
		{"llm_config.agents", "discovery.model"},
		{"llm_config.agents.discovery", "model"},
		{"llm_config.providers.anthropic", "api_base"},
		{"project", "path"},
	}
	for _, tc := range cases {
		full := tc.rest
		if tc.prefix != "" {
			full = tc.prefix + "." + tc.rest
		}
		assert.Equal(t, Get(cfg, full), GetNode(cfg, tc.prefix).Get(tc.rest), full)
	}

	assert.Equal(t,
		Get(cfg, "llm_config.agents.discovery.model"),
		GetNode(cfg, "llm_config").Node("agents.discovery").Get("model"))
}

func TestDeepMergeIdentity(t *testing.T) {
	base := sampleConfig()
	merged := DeepMerge(base, Config{})
	assert.Equal(t, base, merged)
}

func TestDeepMergeNullDeletes(t *testing.T) {
	base := Config{"keep": 1, "drop": 2}
	merged := DeepMerge(base, Config{"drop": nil})

	assert.Equal(t, 1, merged["keep"])
	_, exists := merged["drop"]
	assert.False(t, exists)
}

func TestDeepMergeSequencesReplaced(t *testing.T) {
	base := Config{"items": []any{"a", "b", "c"}}
	merged := DeepMerge(base, Config{"items": []any{"z"}})
	assert.Equal(t, []any{"z"}, merged["items"])
}

func TestDeepMergeRecursiveMaps(t *testing.T) {
	base := Config{"outer": map[string]any{"a": 1, "b": 2}}
	merged := DeepMerge(base, Config{"outer": map[string]any{"b": 3, "c": 4}})

	outer := merged["outer"].(map[string]any)
	assert.Equal(t, 1, outer["a"])
	assert.Equal(t, 3, outer["b"])
	assert.Equal(t, 4, outer["c"])
}

func TestDeepMergeRuntimeKeysCopiedIntoAgents(t *testing.T) {
	base := sampleConfig()
	merged := DeepMerge(base, Config{"workflow_run_id": "wf_1200_abc"})

	// Runtime keys land in each agent config unless already present.
	assert.Equal(t, "wf_1200_abc", Get(merged, "llm_config.agents.discovery.workflow_run_id"))
	assert.Equal(t, "wf_1200_abc", Get(merged, "llm_config.agents.coder.workflow_run_id"))
	// System namespaces are not copied.
	mergedWithProject := DeepMerge(base, Config{"project": map[string]any{"path": "/other"}})
	assert.Nil(t, Get(mergedWithProject, "llm_config.agents.coder.project"))
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	base := sampleConfig()
	override := Config{"intent": map[string]any{"description": "x"}}
	_ = DeepMerge(base, override)
	assert.Nil(t, Get(base, "llm_config.agents.coder.intent"))
}

func TestResolveAgentValueChain(t *testing.T) {
	cfg := sampleConfig()

	// Explicit wins.
	model, err := ResolveAgentModel(cfg, "discovery", "explicit-model")
	require.NoError(t, err)
	assert.Equal(t, "explicit-model", model)

	// Agent config next.
	model, err = ResolveAgentModel(cfg, "discovery", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku", model)

	// Provider default for agents without their own model.
	model, err = ResolveAgentModel(cfg, "coder", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-opus", model)
}

func TestResolveAgentValueGlobalDefaultAndMissing(t *testing.T) {
	cfg := Config{
		"llm_config": map[string]any{
			"default_model": "fallback-model",
			"agents":        map[string]any{"coder": map[string]any{}},
		},
	}
	model, err := ResolveAgentModel(cfg, "coder", "")
	require.NoError(t, err)
	assert.Equal(t, "fallback-model", model)

	empty := Config{"llm_config": map[string]any{}}
	_, err = ResolveAgentModel(empty, "coder", "")
	require.Error(t, err)
}

func TestLoadFileExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	require.NoError(t, os.WriteFile(path, []byte("llm_config:\n  api_key: ${RECAST_TEST_KEY}\n"), 0644))
	t.Setenv("RECAST_TEST_KEY", "secret-value")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", GetString(cfg, "llm_config.api_key"))
}

func TestLoadWithAppConfigOrder(t *testing.T) {
	dir := t.TempDir()
	sys := filepath.Join(dir, "system.yml")
	app := filepath.Join(dir, "app.yml")
	require.NoError(t, os.WriteFile(sys, []byte("llm_config:\n  default_model: system-model\nlogging:\n  agent_level: basic\n"), 0644))
	require.NoError(t, os.WriteFile(app, []byte("llm_config:\n  default_model: app-model\n"), 0644))

	cfg, err := LoadWithAppConfig([]string{sys, filepath.Join(dir, "missing.yml")}, app, nil)
	require.NoError(t, err)
	assert.Equal(t, "app-model", GetString(cfg, "llm_config.default_model"))
	assert.Equal(t, "basic", GetString(cfg, "logging.agent_level"))
}
