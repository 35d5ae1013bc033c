package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessConfig maps a tool alias used in plans to the host's program.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of tools.yaml
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a configuration file (YAML or JSON) and returns the aliases by name.
// A missing file means no aliases.
func LoadTools(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ProcessConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	tools := make(map[string]ProcessConfig, len(cfg.Tools))
	for i, tool := range cfg.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("%s: tool #%d has no name", path, i+1)
		}
		if tool.Command == "" {
			return nil, fmt.Errorf("%s: tool %q has no command", path, tool.Name)
		}
		if _, dup := tools[tool.Name]; dup {
			return nil, fmt.Errorf("%s: tool %q defined twice", path, tool.Name)
		}
		tools[tool.Name] = tool
	}
	return tools, nil
}
