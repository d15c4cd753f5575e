package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/directory"
)

const logPrefix = "bootstrap:loader"

// EnvBootstrapFile names the env var consulted after explicit paths.
const EnvBootstrapFile = "AGENTKIT_BOOTSTRAP_FILE"

// DefaultPaths are tried after explicit paths and the env var.
var DefaultPaths = []string{"config/bootstrap.yaml", "bootstrap.yaml"}

// LoadSeedConfig loads the seed from the first readable path: explicit paths first, then
// AGENTKIT_BOOTSTRAP_FILE, then DefaultPaths. Files are YAML (JSON is accepted as YAML).
// A missing file is skipped; a file that exists but does not parse is an error. When no
// file is found an empty seed is returned.
func LoadSeedConfig(paths ...string) (*SeedConfig, error) {
	all := make([]string, 0, len(paths)+len(DefaultPaths)+1)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(EnvBootstrapFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, DefaultPaths...)

	for _, p := range all {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s - read %s: %w", logPrefix, p, err)
		}

		cfg, err := ParseSeed(data)
		if err != nil {
			return nil, fmt.Errorf("%s - parse %s: %w", logPrefix, p, err)
		}
		cfg.Source = p
		slog.Info(fmt.Sprintf("%s - Loaded seed from %s (%d agents, %d tools)", logPrefix, p, len(cfg.Agents), len(cfg.ExternalTools)))
		return cfg, nil
	}

	slog.Info(fmt.Sprintf("%s - No seed file found, starting empty", logPrefix))
	return &SeedConfig{}, nil
}

// ParseSeed decodes a YAML or JSON seed document.
func ParseSeed(data []byte) (*SeedConfig, error) {
	var cfg SeedConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MergeSeedConfigs appends override's entries to base. Entries in override replace base entries
// with the same agent name or tool name.
func MergeSeedConfigs(base, override *SeedConfig) *SeedConfig {
	merged := &SeedConfig{Name: base.Name, Version: base.Version, Source: base.Source}
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}

	overAgents := make(map[string]bool, len(override.Agents))
	for _, a := range override.Agents {
		overAgents[a.AgentName] = true
	}
	for _, a := range base.Agents {
		if !overAgents[a.AgentName] {
			merged.Agents = append(merged.Agents, a)
		}
	}
	merged.Agents = append(merged.Agents, override.Agents...)

	overTools := make(map[string]bool, len(override.ExternalTools))
	for _, t := range override.ExternalTools {
		overTools[t.Name] = true
	}
	for _, t := range base.ExternalTools {
		if !overTools[t.Name] {
			merged.ExternalTools = append(merged.ExternalTools, t)
		}
	}
	merged.ExternalTools = append(merged.ExternalTools, override.ExternalTools...)
	return merged
}

// Apply registers the seed's agents in dir and its external tools in cat, stopping at the
// first error. Entries registered before the error stay registered.
func Apply(seed *SeedConfig, dir *directory.Directory, cat *catalogue.Catalogue) (ApplyResult, error) {
	var res ApplyResult
	if seed.Empty() {
		return res, nil
	}

	for _, a := range seed.Agents {
		rec, err := dir.Register(directory.RegisterInput{
			AgentID:         a.AgentID,
			AgentName:       a.AgentName,
			Version:         a.Version,
			Capabilities:    a.Capabilities,
			CallbackAddress: a.ContactEndpoint,
			Metadata:        a.Metadata,
		})
		if err != nil {
			return res, fmt.Errorf("%s - seed agent %q: %w", logPrefix, a.AgentName, err)
		}
		res.Agents = append(res.Agents, rec.AgentID)
	}

	for _, t := range seed.ExternalTools {
		def := catalogue.Definition{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
		if err := cat.RegisterRemote(def, t.Endpoint); err != nil {
			return res, fmt.Errorf("%s - seed tool %q: %w", logPrefix, t.Name, err)
		}
		res.Tools = append(res.Tools, t.Name)
	}

	slog.Info(fmt.Sprintf("%s - Applied seed: %d agents, %d external tools", logPrefix, len(res.Agents), len(res.Tools)))
	return res, nil
}
