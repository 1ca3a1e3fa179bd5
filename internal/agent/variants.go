package agent

import (
	"fmt"
	"strings"

	"recast/internal/config"
	"recast/internal/errors"
)

// base supplies the config-driven defaults shared by every variant.
type base struct {
	kind Kind
	cfg  config.Config
}

func (b base) Kind() Kind { return b.kind }

func (b base) SystemPrompt() string {
	return config.GetString(b.cfg, "llm_config.agents."+b.kind.String()+".prompts.system")
}

// prompt resolves a named prompt template for this agent.
func (b base) prompt(name string) (string, error) {
	p := config.GetString(b.cfg, "llm_config.agents."+b.kind.String()+".prompts."+name)
	if p == "" {
		return "", fmt.Errorf("agent %s: no prompt template %q: %w", b.kind, name, errors.ErrConfigurationMissing)
	}
	return p, nil
}

func (b base) RequiredKeys() []string { return nil }

// FormatRequest default: render the whole context. Variants with a real
// request shape override this.
func (b base) FormatRequest(ctxData config.Config) (string, error) {
	return fmt.Sprintf("%v", ctxData), nil
}

// Discovery asks for a project scan summary. The scan itself runs through
// an external helper script whose path and input paths are filled in by the
// orchestrator's defaults.
type Discovery struct{ base }

func NewDiscovery(cfg config.Config) *Discovery {
	return &Discovery{base{kind: KindDiscovery, cfg: cfg}}
}

func (d *Discovery) RequiredKeys() []string { return []string{"project_path"} }

func (d *Discovery) FormatRequest(ctxData config.Config) (string, error) {
	projectPath := config.GetString(ctxData, "project_path")

	node := config.GetNode(d.cfg, "llm_config.agents.discovery.tartxt_config")
	var paths []string
	if raw, ok := node.Get("input_paths").([]any); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				paths = append(paths, s)
			}
		}
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project root: %s\n", projectPath)
	fmt.Fprintf(&b, "Scan paths: %s\n\n", strings.Join(paths, ", "))
	b.WriteString("Produce a structured inventory of the project's source files: for each file its path, language, and the key definitions it contains.")
	return b.String(), nil
}

// SolutionDesigner turns discovery output plus the refactoring intent into
// a concrete change plan. It refuses to run without discovery data.
type SolutionDesigner struct{ base }

func NewSolutionDesigner(cfg config.Config) *SolutionDesigner {
	return &SolutionDesigner{base{kind: KindSolutionDesigner, cfg: cfg}}
}

func (s *SolutionDesigner) FormatRequest(ctxData config.Config) (string, error) {
	discovery := discoveryData(ctxData)
	rawOutput := stringValue(discovery["raw_output"])
	if rawOutput == "" {
		rawOutput = stringValue(discovery["response"])
	}
	if rawOutput == "" {
		return "", fmt.Errorf("no discovery output in context: %w", errors.ErrInputValidation)
	}

	intent := intentDescription(ctxData)

	if template, err := s.prompt("solution"); err == nil {
		template = strings.ReplaceAll(template, "{source_code}", rawOutput)
		return strings.ReplaceAll(template, "{intent}", intent), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Refactoring intent:\n%s\n\n", intent)
	fmt.Fprintf(&b, "Source inventory:\n%s\n\n", rawOutput)
	b.WriteString("Design the minimal set of file changes that satisfies the intent. Respond with json: a list of change objects, each with file_path, type, and content or diff.")
	return b.String(), nil
}

// discoveryData finds the discovery payload whether the caller nested it
// under input_data or placed it at the top level.
func discoveryData(ctxData config.Config) map[string]any {
	if m := config.GetMap(ctxData, "input_data.discovery_data"); len(m) > 0 {
		return m
	}
	return config.GetMap(ctxData, "discovery_data")
}

func intentDescription(ctxData config.Config) string {
	for _, path := range []string{"input_data.intent", "intent"} {
		switch v := config.Get(ctxData, path).(type) {
		case map[string]any:
			if desc, ok := v["description"].(string); ok {
				return desc
			}
		case string:
			return v
		}
	}
	return ""
}

func stringValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case map[string]any:
		if content, ok := typed["content"].(string); ok {
			return content
		}
		return fmt.Sprintf("%v", typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// Coder applies a solution plan to the project's files.
type Coder struct{ base }

func NewCoder(cfg config.Config) *Coder {
	return &Coder{base{kind: KindCoder, cfg: cfg}}
}

func (c *Coder) RequiredKeys() []string { return []string{"input_data"} }

func (c *Coder) FormatRequest(ctxData config.Config) (string, error) {
	input := config.GetMap(ctxData, "input_data")
	plan := stringValue(input["response"])
	if plan == "" {
		plan = stringValue(input["raw_output"])
	}
	if plan == "" {
		return "", fmt.Errorf("no solution plan in context: %w", errors.ErrInputValidation)
	}

	var b strings.Builder
	b.WriteString("Apply this change plan:\n\n")
	b.WriteString(plan)
	b.WriteString("\n\nFor every change, emit the complete updated file content inside a code fence, preceded by the file path.")
	return b.String(), nil
}

// Assurance checks applied changes against the original intent.
type Assurance struct{ base }

func NewAssurance(cfg config.Config) *Assurance {
	return &Assurance{base{kind: KindAssurance, cfg: cfg}}
}

func (a *Assurance) FormatRequest(ctxData config.Config) (string, error) {
	input := config.GetMap(ctxData, "input_data")
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n\n", intentDescription(ctxData))
	fmt.Fprintf(&b, "Applied changes:\n%s\n\n", stringValue(input["response"]))
	b.WriteString("Verify the changes satisfy the intent. Report any regression risks.")
	return b.String(), nil
}

// SemanticIterator splits a composite LLM artifact into individually
// addressable items.
type SemanticIterator struct{ base }

func NewSemanticIterator(cfg config.Config) *SemanticIterator {
	return &SemanticIterator{base{kind: KindSemanticIterator, cfg: cfg}}
}

// SemanticMerge reconciles a generated change with the current file state.
type SemanticMerge struct{ base }

func NewSemanticMerge(cfg config.Config) *SemanticMerge {
	return &SemanticMerge{base{kind: KindSemanticMerge, cfg: cfg}}
}

// SemanticExtract pulls a typed value out of free-form LLM output.
type SemanticExtract struct{ base }

func NewSemanticExtract(cfg config.Config) *SemanticExtract {
	return &SemanticExtract{base{kind: KindSemanticExtract, cfg: cfg}}
}

// AssetManager stages file modifications with backups.
type AssetManager struct{ base }

func NewAssetManager(cfg config.Config) *AssetManager {
	return &AssetManager{base{kind: KindAssetManager, cfg: cfg}}
}

// NewOps constructs the variant for a kind.
func NewOps(kind Kind, cfg config.Config) (Ops, error) {
	switch kind {
	case KindDiscovery:
		return NewDiscovery(cfg), nil
	case KindSolutionDesigner:
		return NewSolutionDesigner(cfg), nil
	case KindCoder:
		return NewCoder(cfg), nil
	case KindAssurance:
		return NewAssurance(cfg), nil
	case KindSemanticIterator:
		return NewSemanticIterator(cfg), nil
	case KindSemanticMerge:
		return NewSemanticMerge(cfg), nil
	case KindSemanticExtract:
		return NewSemanticExtract(cfg), nil
	case KindAssetManager:
		return NewAssetManager(cfg), nil
	default:
		return nil, fmt.Errorf("unknown agent kind %q", kind)
	}
}
