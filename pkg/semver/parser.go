// Package semver validates agent names and versions and matches versions against constraints.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// ParsedAgentRef holds the components of an agent reference such as "summarizer@^1.2".
type ParsedAgentRef struct {
	// Agent name (e.g., "summarizer")
	Name string
	// Version constraint if specified (e.g., "^1.2", "2", ""); empty means any version
	Constraint string
	// Raw input string
	Raw string
}

var (
	agentNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]{0,127}$`)
	toolNameRegex  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{0,127}$`)
	majorOnlyRegex = regexp.MustCompile(`^\d+$`)
)

// ParseAgentRef parses an agent reference.
//
// Supported formats:
//   - summarizer           (any version)
//   - summarizer@1         (major only)
//   - summarizer@1.2.3     (exact version)
//   - summarizer@^1.2.0    (caret range)
//   - summarizer@>=1.0.0   (comparison range)
func ParseAgentRef(input string) (*ParsedAgentRef, error) {
	raw := strings.TrimSpace(input)

	name, constraint, _ := strings.Cut(raw, "@")
	if !ValidateAgentName(name) {
		return nil, fmt.Errorf("%s - invalid agent name in reference: %q", logPrefix, raw)
	}
	if constraint != "" {
		if _, err := ParseConstraint(constraint); err != nil {
			return nil, err
		}
	}

	return &ParsedAgentRef{
		Name:       name,
		Constraint: constraint,
		Raw:        raw,
	}, nil
}

// String renders the reference back into name[@constraint] form.
func (r *ParsedAgentRef) String() string {
	if r.Constraint == "" {
		return r.Name
	}
	return r.Name + "@" + r.Constraint
}

// IsMajorOnly checks if a constraint is a major-only specifier (e.g., "3").
func IsMajorOnly(constraint string) bool {
	return majorOnlyRegex.MatchString(constraint)
}

// ValidateAgentName validates an agent name (letters, digits, dots, hyphens, underscores; starts with a letter).
func ValidateAgentName(name string) bool {
	return agentNameRegex.MatchString(name)
}

// ValidateToolName validates a tool name.
func ValidateToolName(name string) bool {
	return toolNameRegex.MatchString(name)
}
