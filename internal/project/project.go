// Package project models the immutable path layout of a refactoring target.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"recast/internal/config"
)

// Paths holds the standard project path set. All paths are absolute; every
// relative input is resolved against Root.
type Paths struct {
	Root      string
	Workspace string
	Source    string
	Output    string
	Config    string
}

// Metadata carries descriptive project settings.
type Metadata struct {
	Name        string
	Description string
	Version     string
}

// Project is the immutable project record handed to agents.
type Project struct {
	Paths    Paths
	Metadata Metadata
}

// FromConfig derives a Project from the project section of cfg. Workspace and
// Output directories are created when missing.
func FromConfig(cfg config.Config) (*Project, error) {
	root := config.GetString(cfg, "project.path")
	if root == "" {
		root = "."
	}
	if !filepath.IsAbs(root) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = filepath.Join(cwd, root)
	}
	root = filepath.Clean(root)

	rel := func(key, def string) string {
		value := config.GetString(cfg, "project."+key)
		if value == "" {
			value = def
		}
		if filepath.IsAbs(value) {
			return filepath.Clean(value)
		}
		return filepath.Join(root, value)
	}

	paths := Paths{
		Root:      root,
		Workspace: rel("workspace_root", "workspaces"),
		Source:    rel("source_root", "."),
		Output:    rel("output_root", "."),
		Config:    rel("config_root", "config"),
	}

	for _, dir := range []string{paths.Workspace, paths.Output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create project directory %s: %w", dir, err)
		}
	}

	name := config.GetString(cfg, "project.name")
	if name == "" {
		name = filepath.Base(root)
	}

	return &Project{
		Paths: paths,
		Metadata: Metadata{
			Name:        name,
			Description: config.GetString(cfg, "project.description"),
			Version:     config.GetString(cfg, "project.version"),
		},
	}, nil
}

// ResolvePath resolves a path relative to the project root. Absolute paths
// pass through unchanged.
func (p *Project) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.Paths.Root, path)
}
