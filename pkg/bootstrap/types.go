// Package bootstrap loads the startup seed of agents and external tools.
package bootstrap

// SeedAgent is an agent registered at startup.
type SeedAgent struct {
	AgentID         string         `yaml:"agentId" json:"agentId,omitempty"`
	AgentName       string         `yaml:"agentName" json:"agentName"`
	Version         string         `yaml:"version" json:"version"`
	Capabilities    []string       `yaml:"capabilities" json:"capabilities,omitempty"`
	ContactEndpoint string         `yaml:"contactEndpoint" json:"contactEndpoint,omitempty"`
	Metadata        map[string]any `yaml:"metadata" json:"metadata,omitempty"`
}

// SeedTool is an external HTTP tool registered at startup.
type SeedTool struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters" json:"parameters,omitempty"`
	Endpoint    string         `yaml:"endpoint" json:"endpoint"`
}

// SeedConfig is the root of a bootstrap file.
type SeedConfig struct {
	Name          string      `yaml:"name" json:"name,omitempty"`
	Version       string      `yaml:"version" json:"version,omitempty"`
	Agents        []SeedAgent `yaml:"agents" json:"agents,omitempty"`
	ExternalTools []SeedTool  `yaml:"externalTools" json:"externalTools,omitempty"`

	// Source is the file the seed was read from; empty for the default seed.
	Source string `yaml:"-" json:"-"`
}

// Empty reports whether the seed registers nothing.
func (s *SeedConfig) Empty() bool {
	return s == nil || (len(s.Agents) == 0 && len(s.ExternalTools) == 0)
}

// ApplyResult counts what Apply registered.
type ApplyResult struct {
	Agents []string
	Tools  []string
}
