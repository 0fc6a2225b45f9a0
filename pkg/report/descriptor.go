// Package report builds the desired state of a published analysis report.
//
// A Descriptor is constructed once per run from the raw CLI inputs and is
// never modified afterwards; Qualify returns a new value carrying the
// build-qualified name once the build name has been looked up.
package report

import (
	"fmt"
	"strings"

	"github.com/agentstation/registrar/pkg/constants"
)

// Status is the approval state written to the catalog on creation.
type Status string

const (
	// StatusApproved marks a report that consumers may see as final.
	StatusApproved Status = "APPROVED"
	// StatusNeedsReview marks a staged report awaiting approval.
	StatusNeedsReview Status = "NEEDS_REVIEW"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// CatalogValue returns the status as the catalog stores it. The catalog
// knows a staged report as "REVIEW".
func (s Status) CatalogValue() string {
	if s == StatusNeedsReview {
		return "REVIEW"
	}
	return string(s)
}

// Descriptor is the immutable desired state of one report.
type Descriptor struct {
	name          string
	qualifiedName string
	description   string
	url           string
	status        Status
	createdBy     string
	roles         RoleSet
}

// Option customizes a Descriptor during construction.
type Option func(*Descriptor)

// WithCreatedBy overrides the creator tag. Empty values are ignored.
func WithCreatedBy(tag string) Option {
	return func(d *Descriptor) {
		if tag = strings.TrimSpace(tag); tag != "" {
			d.createdBy = tag
		}
	}
}

// New derives a Descriptor from the raw inputs.
//
// Underscores in project become spaces. roles is a comma-separated list;
// blanks and duplicates are dropped. When approved is false the display name
// gets the review prefix and the status is StatusNeedsReview.
func New(project, url, roles string, approved bool, opts ...Option) Descriptor {
	plain := strings.ReplaceAll(project, "_", " ")

	d := Descriptor{
		name:        plain,
		description: plain,
		url:         url,
		status:      StatusApproved,
		createdBy:   constants.DefaultCreatedBy,
		roles:       ParseRoles(roles),
	}
	if !approved {
		d.name = constants.ReviewPrefix + plain
		d.status = StatusNeedsReview
	}

	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Qualify returns a copy whose qualified name is "{name} ({buildName})".
func (d Descriptor) Qualify(buildName string) Descriptor {
	d.qualifiedName = QualifiedName(d.name, buildName)
	return d
}

// QualifiedName disambiguates a display name with the build it belongs to.
func QualifiedName(name, buildName string) string {
	return fmt.Sprintf("%s (%s)", name, buildName)
}

// Name returns the display name, including the review prefix when present.
func (d Descriptor) Name() string { return d.name }

// QualifiedName returns the build-qualified name, or "" before Qualify.
func (d Descriptor) QualifiedName() string { return d.qualifiedName }

// IsQualified reports whether Qualify has been applied.
func (d Descriptor) IsQualified() bool { return d.qualifiedName != "" }

// Description returns the project name without the review prefix.
func (d Descriptor) Description() string { return d.description }

// URL returns the report index URL.
func (d Descriptor) URL() string { return d.url }

// Status returns the approval status.
func (d Descriptor) Status() Status { return d.status }

// CreatedBy returns the creator tag.
func (d Descriptor) CreatedBy() string { return d.createdBy }

// Roles returns the desired role set.
func (d Descriptor) Roles() RoleSet { return d.roles }
