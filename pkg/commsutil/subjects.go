package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	// SubjectRun receives RunRequest envelopes carrying the target agent id.
	SubjectRun = "agentkit.run"
	// SubjectDelivery is the global subject for deferred delivery outcomes.
	SubjectDelivery = "agentkit.delivery"

	agentRunPrefix = "agentkit.agents."
	agentRunSuffix = ".run"
)

// SubjectAgentRunWildcard matches every per-agent run subject.
const SubjectAgentRunWildcard = agentRunPrefix + "*" + agentRunSuffix

// SafeToken replaces characters that are not allowed inside a single subject token.
func SafeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// BuildDeliverySubject builds the per-agent delivery outcome subject.
func BuildDeliverySubject(base, agentID string) string {
	if base == "" {
		base = SubjectDelivery
	}
	return fmt.Sprintf("%s.%s", base, SafeToken(agentID))
}

// BuildAgentRunSubject builds the subject on which a bare message is run for agentID.
func BuildAgentRunSubject(agentID string) string {
	return agentRunPrefix + SafeToken(agentID) + agentRunSuffix
}

// ParseAgentRunSubject extracts the agent id token from a per-agent run subject.
func ParseAgentRunSubject(subject string) (string, bool) {
	if !strings.HasPrefix(subject, agentRunPrefix) || !strings.HasSuffix(subject, agentRunSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(subject, agentRunPrefix), agentRunSuffix)
	if id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}
