// Package config implements the hierarchical configuration model shared by
// the orchestrator and every agent: dotted-path lookup with wildcards, bound
// sub-views, and the deep-merge semantics the workflow relies on.
package config

import (
	"encoding/json"
	"sort"
	"strings"
)

// Config is a hierarchical mapping from string keys to arbitrary values.
type Config = map[string]any

// System namespaces recognized at the configuration root. Any other root key
// in an override is a runtime value and gets copied into each agent's own
// config unless the agent already defines it.
var systemNamespaces = map[string]struct{}{
	"providers":  {},
	"llm_config": {},
	"project":    {},
	"backup":     {},
	"logging":    {},
	"system":     {},
}

// Get resolves a dotted path against cfg. A `*` segment matches the first
// available child (in sorted key order) and continues downward. Returns nil
// when the path does not resolve.
func Get(cfg Config, path string) any {
	if path == "" {
		return cfg
	}
	return getByPath(cfg, strings.Split(path, "."))
}

func getByPath(data any, path []string) any {
	current := data
	for _, key := range path {
		switch node := current.(type) {
		case map[string]any:
			if key == "*" {
				child, ok := firstChild(node)
				if !ok {
					return nil
				}
				current = child
				continue
			}
			value, ok := node[key]
			if !ok {
				return nil
			}
			current = value
		case string:
			// String nodes sometimes hold serialized JSON; traverse into it.
			var parsed map[string]any
			if err := json.Unmarshal([]byte(node), &parsed); err != nil {
				return nil
			}
			value, ok := parsed[key]
			if !ok {
				return nil
			}
			current = value
		default:
			return nil
		}
	}
	return current
}

func firstChild(node map[string]any) (any, bool) {
	if len(node) == 0 {
		return nil, false
	}
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return node[keys[0]], true
}

// GetString resolves path and returns its string value, or "" when absent or
// not a string.
func GetString(cfg Config, path string) string {
	if s, ok := Get(cfg, path).(string); ok {
		return s
	}
	return ""
}

// GetMap resolves path and returns the map at it, or nil.
func GetMap(cfg Config, path string) Config {
	if m, ok := Get(cfg, path).(map[string]any); ok {
		return m
	}
	return nil
}

// GetBool resolves path to a bool, with def as the fallback.
func GetBool(cfg Config, path string, def bool) bool {
	if b, ok := Get(cfg, path).(bool); ok {
		return b
	}
	return def
}

// GetInt resolves path to an int, accepting the numeric types YAML and JSON
// decoders produce.
func GetInt(cfg Config, path string, def int) int {
	switch v := Get(cfg, path).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetFloat resolves path to a float64, with def as the fallback.
func GetFloat(cfg Config, path string, def float64) float64 {
	switch v := Get(cfg, path).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Node is a view of a Config bound to a path prefix.
type Node struct {
	cfg    Config
	prefix string
}

// GetNode returns a view rooted at prefix; subsequent Get calls are relative.
func GetNode(cfg Config, prefix string) Node {
	return Node{cfg: cfg, prefix: prefix}
}

// Get resolves path relative to the node's prefix.
func (n Node) Get(path string) any {
	full := path
	if n.prefix != "" {
		if path == "" {
			full = n.prefix
		} else {
			full = n.prefix + "." + path
		}
	}
	return Get(n.cfg, full)
}

// GetString resolves path relative to the node's prefix as a string.
func (n Node) GetString(path string) string {
	if s, ok := n.Get(path).(string); ok {
		return s
	}
	return ""
}

// GetMap resolves path relative to the node's prefix as a map.
func (n Node) GetMap(path string) Config {
	if m, ok := n.Get(path).(map[string]any); ok {
		return m
	}
	return nil
}

// Node re-roots the view at a deeper prefix.
func (n Node) Node(prefix string) Node {
	if n.prefix == "" {
		return Node{cfg: n.cfg, prefix: prefix}
	}
	return Node{cfg: n.cfg, prefix: n.prefix + "." + prefix}
}

// DeepCopy clones a configuration value. Maps and slices are copied
// recursively; scalars are shared.
func DeepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = DeepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// CopyConfig clones cfg, preserving the Config type.
func CopyConfig(cfg Config) Config {
	if cfg == nil {
		return Config{}
	}
	return DeepCopy(cfg).(map[string]any)
}

// DeepMerge merges override on top of base and returns the result without
// mutating either input.
//
// Rules:
//  1. Maps are merged recursively.
//  2. Sequences from override replace sequences from base.
//  3. Explicit nulls in override delete the key from the result.
//  4. Root-level override keys outside the recognized system namespaces are
//     runtime values: they are copied into every llm_config.agents.* entry
//     that does not already define them.
func DeepMerge(base, override Config) Config {
	result := CopyConfig(base)

	if hasLLMConfig(result) || hasLLMConfig(override) {
		runtimeKeys := make([]string, 0)
		for key := range override {
			if _, system := systemNamespaces[key]; !system {
				runtimeKeys = append(runtimeKeys, key)
			}
		}
		sort.Strings(runtimeKeys)
		if len(runtimeKeys) > 0 {
			if agents, ok := Get(result, "llm_config.agents").(map[string]any); ok {
				for _, agentCfg := range agents {
					agentMap, ok := agentCfg.(map[string]any)
					if !ok {
						continue
					}
					for _, key := range runtimeKeys {
						if override[key] == nil {
							continue
						}
						if _, exists := agentMap[key]; !exists {
							agentMap[key] = DeepCopy(override[key])
						}
					}
				}
			}
		}
	}

	for key, value := range override {
		if value == nil {
			delete(result, key)
			continue
		}
		existing, exists := result[key]
		if !exists {
			result[key] = DeepCopy(value)
			continue
		}
		overrideMap, overrideIsMap := value.(map[string]any)
		existingMap, existingIsMap := existing.(map[string]any)
		if overrideIsMap && existingIsMap {
			result[key] = DeepMerge(existingMap, overrideMap)
			continue
		}
		result[key] = DeepCopy(value)
	}

	return result
}

func hasLLMConfig(cfg Config) bool {
	_, ok := cfg["llm_config"]
	return ok
}

// LocateAgentConfig returns the agent's config block at
// llm_config.agents.<name>, or an empty map when absent.
func LocateAgentConfig(cfg Config, name string) Config {
	if m := GetMap(cfg, "llm_config.agents."+name); m != nil {
		return m
	}
	return Config{}
}
