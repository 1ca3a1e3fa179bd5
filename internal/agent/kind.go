package agent

import "fmt"

// Kind names one of the known agent variants.
type Kind string

const (
	KindDiscovery        Kind = "discovery"
	KindSolutionDesigner Kind = "solution_designer"
	KindCoder            Kind = "coder"
	KindAssurance        Kind = "assurance"
	KindSemanticIterator Kind = "semantic_iterator"
	KindSemanticMerge    Kind = "semantic_merge"
	KindSemanticExtract  Kind = "semantic_extract"
	KindAssetManager     Kind = "asset_manager"
)

var kinds = map[Kind]bool{
	KindDiscovery:        true,
	KindSolutionDesigner: true,
	KindCoder:            true,
	KindAssurance:        true,
	KindSemanticIterator: true,
	KindSemanticMerge:    true,
	KindSemanticExtract:  true,
	KindAssetManager:     true,
}

func (k Kind) String() string { return string(k) }

// ParseKind validates an agent kind name from config.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if !kinds[k] {
		return "", fmt.Errorf("unknown agent kind %q", name)
	}
	return k, nil
}
