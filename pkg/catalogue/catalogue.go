package catalogue

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/opspawn/agentkit/pkg/semver"
)

const logPrefix = "catalogue:catalogue"

// Catalogue maps tool names to exactly one binding. It is safe for concurrent use.
type Catalogue struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// New creates an empty Catalogue.
func New() *Catalogue {
	return &Catalogue{bindings: make(map[string]Binding)}
}

// RegisterLocal binds tool under its definition name.
func (c *Catalogue) RegisterLocal(tool Tool) error {
	if tool == nil {
		return &Error{Code: CodeInvalidArgument, Message: "tool is nil"}
	}
	def := tool.Definition()
	if err := validateName(def.Name); err != nil {
		return err
	}
	return c.put(def.Name, LocalBinding{Tool: tool})
}

// RegisterRemote binds def to a third-party endpoint.
func (c *Catalogue) RegisterRemote(def Definition, endpointURL string) error {
	endpointURL = strings.TrimSpace(endpointURL)
	if err := validateName(def.Name); err != nil {
		return err
	}
	if err := ValidateEndpoint(endpointURL); err != nil {
		return err
	}
	return c.put(def.Name, RemoteBinding{Def: def, EndpointURL: endpointURL})
}

func (c *Catalogue) put(name string, b Binding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.bindings[name]; ok {
		return &Error{
			Code:    CodeConflict,
			Message: fmt.Sprintf("tool %q is already registered as %s", name, existing.Kind()),
		}
	}
	c.bindings[name] = b
	slog.Info(fmt.Sprintf("%s - registered %s tool %s", logPrefix, b.Kind(), name))
	return nil
}

// Lookup returns the binding for name.
func (c *Catalogue) Lookup(name string) (Binding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.bindings[name]
	return b, ok
}

// Remove deletes the binding for name.
func (c *Catalogue) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bindings[name]; !ok {
		return &Error{Code: CodeNotFound, Message: fmt.Sprintf("tool %q is not registered", name)}
	}
	delete(c.bindings, name)
	return nil
}

// List returns descriptors for every tool, sorted by name.
func (c *Catalogue) List() []Descriptor {
	c.mu.RLock()
	out := make([]Descriptor, 0, len(c.bindings))
	for name, b := range c.bindings {
		def := b.Definition()
		d := Descriptor{
			Name:        name,
			Description: def.Description,
			Parameters:  def.Parameters,
			Kind:        b.Kind(),
		}
		if rb, ok := b.(RemoteBinding); ok {
			d.Endpoint = rb.EndpointURL
		}
		out = append(out, d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bindings)
}

func validateName(name string) error {
	if !semver.ValidateToolName(name) {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid tool name %q", name)}
	}
	return nil
}

// ValidateEndpoint checks that raw is an absolute http or https URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid endpoint URL %q", raw)}
	}
	return nil
}
