package reconciler

import (
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/registrar/pkg/catalog"
)

// Outcome summarizes a run.
type Outcome string

const (
	// OutcomeIgnored means the catalog already matched and nothing was written.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeUpdated means at least one write was issued and all succeeded.
	OutcomeUpdated Outcome = "updated"
	// OutcomeFailed means a fatal error, a rejected creation or a failed grant.
	OutcomeFailed Outcome = "failed"
)

// String returns the string representation of an outcome.
func (o Outcome) String() string {
	return string(o)
}

// State is how far a run progressed.
type State string

const (
	StateNew         State = "new"
	StateResolved    State = "resolved"
	StateBuildLinked State = "build_linked"
	StateRolesSynced State = "roles_synced"
)

// String returns the string representation of a state.
func (s State) String() string {
	return string(s)
}

// Result represents the outcome of a reconciliation run.
type Result struct {
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	State   State   `json:"state" yaml:"state"`

	// Desired state
	Name          string   `json:"name" yaml:"name"`
	QualifiedName string   `json:"qualified_name,omitempty" yaml:"qualified_name,omitempty"`
	URL           string   `json:"url" yaml:"url"`
	Status        string   `json:"status" yaml:"status"`
	Roles         []string `json:"roles" yaml:"roles"`
	BuildID       string   `json:"build_id" yaml:"build_id"`
	BuildName     string   `json:"build_name,omitempty" yaml:"build_name,omitempty"`

	// Decisions
	ResourceID catalog.ID    `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	Action     Action        `json:"action,omitempty" yaml:"action,omitempty"`
	MatchedBy  string        `json:"matched_by,omitempty" yaml:"matched_by,omitempty"`
	Linked     bool          `json:"linked" yaml:"linked"`
	RoleGrants []RoleOutcome `json:"role_grants,omitempty" yaml:"role_grants,omitempty"`

	// Writes counts write requests issued, or planned in dry-run mode.
	Writes int    `json:"writes" yaml:"writes"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`

	Metadata ResultMetadata `json:"metadata" yaml:"metadata"`
}

// ResultMetadata contains metadata about the run.
type ResultMetadata struct {
	StartTime utc.Time      `json:"start_time" yaml:"start_time"`
	EndTime   utc.Time      `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
}

// IsSuccess returns true unless the run failed.
func (r *Result) IsSuccess() bool {
	return r.Outcome != OutcomeFailed
}

// FailedRoles returns the roles whose grant failed, sorted.
func (r *Result) FailedRoles() []string {
	var out []string
	for _, g := range r.RoleGrants {
		if g.Err != nil || g.Error != "" {
			out = append(out, g.Role)
		}
	}
	return out
}

// finish stamps the end time and derives the outcome. A non-nil err, a
// rejected creation or any failed grant makes the run failed.
func (r *Result) finish(err error) {
	r.Metadata.EndTime = utc.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Time.Sub(r.Metadata.StartTime.Time)

	switch {
	case err != nil:
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
	case r.Action == ActionCreateFailed, len(r.FailedRoles()) > 0:
		r.Outcome = OutcomeFailed
	case r.Writes > 0:
		r.Outcome = OutcomeUpdated
	default:
		r.Outcome = OutcomeIgnored
	}
}
