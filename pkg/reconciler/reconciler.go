// Package reconciler brings the catalog in line with one published report.
//
// A run resolves the build name, finds or creates the resource, links it to
// the build and grants any missing roles. Every step first reads the current
// state, so repeating a run against an up-to-date catalog writes nothing.
package reconciler

import (
	"context"
	"strings"

	"github.com/agentstation/utc"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
	"github.com/agentstation/registrar/pkg/report"
)

// Catalog is the subset of the catalog service a run needs.
// *catalog.Client implements it.
type Catalog interface {
	FindResources(ctx context.Context, names []string, url string) ([]catalog.Resource, error)
	CreateResource(ctx context.Context, req catalog.CreateRequest) (*catalog.Resource, error)
	Build(ctx context.Context, buildID string) (*catalog.Build, error)
	LinkedResources(ctx context.Context, buildID string) ([]catalog.Resource, error)
	LinkResource(ctx context.Context, buildID string, resourceID catalog.ID) error
	GrantRole(ctx context.Context, resourceID catalog.ID, roleID string) error
}

// Compile-time interface check.
var _ Catalog = (*catalog.Client)(nil)

// Reconciler runs the registration steps in order.
type Reconciler struct {
	dryRun   bool
	builds   *BuildNameResolver
	resolver *Resolver
	linker   *BuildLinker
	roles    *RoleReconciler
}

// New creates a Reconciler with options.
func New(c Catalog, opts ...Option) (*Reconciler, error) {
	if c == nil {
		return nil, errors.NewConfigError("reconciler", "catalog cannot be nil", nil)
	}

	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &Reconciler{
		dryRun:   options.dryRun,
		builds:   NewBuildNameResolver(c),
		resolver: NewResolver(c, options.matchers, options.dryRun),
		linker:   NewBuildLinker(c, options.dryRun),
		roles:    NewRoleReconciler(c, options.dryRun),
	}, nil
}

// Run reconciles d against the catalog for buildID. It always returns a
// Result; the error is set only when a step could not complete.
// A rejected creation or a failed role grant yields OutcomeFailed with a nil error.
func (r *Reconciler) Run(ctx context.Context, d report.Descriptor, buildID string) (*Result, error) {
	result := &Result{
		State:   StateNew,
		Name:    d.Name(),
		URL:     d.URL(),
		Status:  d.Status().String(),
		Roles:   d.Roles().IDs(),
		BuildID: buildID,
		Metadata: ResultMetadata{
			StartTime: utc.Now(),
			DryRun:    r.dryRun,
		},
	}

	err := r.run(logging.WithBuild(ctx, buildID), d, buildID, result)
	result.finish(err)

	logging.FromContext(ctx).Info().
		Str("outcome", result.Outcome.String()).
		Str("state", result.State.String()).
		Int("writes", result.Writes).
		Dur("duration", result.Metadata.Duration).
		Bool("dry_run", r.dryRun).
		Msg("Registration finished")

	return result, err
}

func (r *Reconciler) run(ctx context.Context, d report.Descriptor, buildID string, result *Result) error {
	if strings.TrimSpace(buildID) == "" {
		return errors.NewValidationError("build_id", buildID, "cannot be empty")
	}

	// Step 1: Resolve the build name and qualify the descriptor
	buildName, err := r.builds.Resolve(ctx, buildID)
	if err != nil {
		return err
	}
	d = d.Qualify(buildName)
	result.BuildName = buildName
	result.QualifiedName = d.QualifiedName()

	// Step 2: Find or create the resource
	resolution, err := r.resolver.Resolve(ctx, d)
	if err != nil {
		return err
	}
	result.State = StateResolved
	result.Action = resolution.Action
	result.ResourceID = resolution.ID
	result.MatchedBy = resolution.MatchedBy

	switch resolution.Action {
	case ActionCreateFailed:
		result.Error = resolution.Err.Error()
		return nil
	case ActionCreate:
		result.Writes++
	}

	ctx = logging.WithResource(ctx, resolution.ID.String())

	// Step 3: Link the resource to the build
	linked, err := r.linker.Ensure(ctx, buildID, resolution.ID)
	if err != nil {
		return err
	}
	result.State = StateBuildLinked
	if linked {
		result.Linked = true
		result.Writes++
	}

	// Step 4: Grant missing roles
	if !resolution.Ignore {
		result.RoleGrants = r.roles.Reconcile(ctx, resolution.ID, d.Roles(), resolution.Existing)
		for _, g := range result.RoleGrants {
			if g.Granted || g.Planned {
				result.Writes++
			}
		}
	}
	result.State = StateRolesSynced

	return nil
}
