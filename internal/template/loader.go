package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a template from a YAML file and validates it.
func Load(path string) (*FormTemplate, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided template path is expected
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	var t FormTemplate
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	return &t, nil
}

// Save writes the template as YAML.
func (t *FormTemplate) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal template %s: %w", t.Name, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write template %s: %w", path, err)
	}
	return nil
}

// Resolve loads a template from a file when path is non-empty, otherwise
// resolves name against the built-in registry.
func Resolve(name, path string) (*FormTemplate, error) {
	if path != "" {
		return Load(path)
	}
	return Get(name)
}
