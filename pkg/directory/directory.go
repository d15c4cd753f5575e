package directory

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opspawn/agentkit/pkg/semver"
)

const logPrefix = "directory:directory"

// Directory is an in-memory agent registry. It is safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	byID   map[string]AgentRecord
	byName map[string]string
	now    func() time.Time
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		byID:   make(map[string]AgentRecord),
		byName: make(map[string]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register validates input and stores a new agent record.
func (d *Directory) Register(input RegisterInput) (*AgentRecord, error) {
	name := strings.TrimSpace(input.AgentName)
	if !semver.ValidateAgentName(name) {
		return nil, &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid agent name %q", input.AgentName)}
	}
	version, err := semver.NormalizeVersion(input.Version)
	if err != nil {
		return nil, &Error{Code: CodeInvalidArgument, Message: err.Error()}
	}
	callback := strings.TrimSpace(input.CallbackAddress)
	if callback != "" {
		if err := ValidateCallbackAddress(callback); err != nil {
			return nil, err
		}
	}

	id := strings.TrimSpace(input.AgentID)
	if id == "" {
		id = uuid.NewString()
	}

	rec := AgentRecord{
		AgentID:         id,
		AgentName:       name,
		Version:         version,
		Capabilities:    append(make([]string, 0, len(input.Capabilities)), input.Capabilities...),
		CallbackAddress: callback,
		Metadata:        cloneMap(input.Metadata),
		RegisteredAt:    d.now(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[id]; exists {
		return nil, &Error{Code: CodeConflict, Message: fmt.Sprintf("agent id %q is already registered", id)}
	}
	if existing, exists := d.byName[name]; exists {
		return nil, &Error{Code: CodeConflict, Message: fmt.Sprintf("agent name %q is already registered as %s", name, existing)}
	}
	d.byID[id] = rec
	d.byName[name] = id

	slog.Info(fmt.Sprintf("%s - registered agent %s (%s) version=%s", logPrefix, name, id, version))
	out := rec.clone()
	return &out, nil
}

// Lookup returns a snapshot of the record for agentID.
func (d *Directory) Lookup(agentID string) (AgentRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.byID[agentID]
	if !ok {
		return AgentRecord{}, false
	}
	return rec.clone(), true
}

// Remove deletes the agent with agentID.
func (d *Directory) Remove(agentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.byID[agentID]
	if !ok {
		return &Error{Code: CodeNotFound, Message: fmt.Sprintf("agent %q not found", agentID)}
	}
	delete(d.byID, agentID)
	delete(d.byName, rec.AgentName)
	slog.Info(fmt.Sprintf("%s - removed agent %s (%s)", logPrefix, rec.AgentName, agentID))
	return nil
}

// List returns matching agents ordered by name.
func (d *Directory) List(input ListInput) ([]AgentRecord, error) {
	if input.VersionConstraint != "" {
		if _, err := semver.ParseConstraint(input.VersionConstraint); err != nil {
			return nil, &Error{Code: CodeInvalidArgument, Message: err.Error()}
		}
	}

	d.mu.RLock()
	out := make([]AgentRecord, 0, len(d.byID))
	for _, rec := range d.byID {
		if input.Name != "" && rec.AgentName != input.Name {
			continue
		}
		if input.Capability != "" && !rec.HasCapability(input.Capability) {
			continue
		}
		if !semver.Satisfies(rec.Version, input.VersionConstraint) {
			continue
		}
		out = append(out, rec.clone())
	}
	d.mu.RUnlock()

	sortRecords(out)
	return out, nil
}

// Len returns the number of registered agents.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

// ValidateCallbackAddress checks that raw is an absolute http or https URL.
func ValidateCallbackAddress(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid callback address %q", raw)}
	}
	return nil
}

func sortRecords(recs []AgentRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].AgentName != recs[j].AgentName {
			return recs[i].AgentName < recs[j].AgentName
		}
		return semver.Compare(recs[i].Version, recs[j].Version) > 0
	})
}

func (r AgentRecord) clone() AgentRecord {
	r.Capabilities = append(make([]string, 0, len(r.Capabilities)), r.Capabilities...)
	r.Metadata = cloneMap(r.Metadata)
	return r
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
