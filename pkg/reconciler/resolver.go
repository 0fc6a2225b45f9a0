package reconciler

import (
	"context"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
	"github.com/agentstation/registrar/pkg/report"
)

// Action is what the resolver decided to do about the resource.
type Action string

// String returns the string representation of an action.
func (a Action) String() string {
	return string(a)
}

const (
	// ActionReuse means an existing resource matched.
	ActionReuse Action = "reuse"
	// ActionCreate means a new resource was registered.
	ActionCreate Action = "create"
	// ActionCreateFailed means registration was attempted and rejected.
	ActionCreateFailed Action = "create-failed"
)

// Resolution is the outcome of resolving a descriptor against the catalog.
type Resolution struct {
	Action Action
	// ID is empty for a planned creation in dry-run mode and for create-failed.
	ID catalog.ID
	// Ignore is set when no role reconciliation is needed.
	Ignore bool
	// MatchedBy names the matcher that selected a reused resource.
	MatchedBy string
	// Existing is the role set already linked to a reused resource.
	Existing report.RoleSet
	// Err holds the rejected creation for ActionCreateFailed.
	Err error
}

// Resolver finds or creates the catalog resource for a descriptor.
type Resolver struct {
	catalog  Catalog
	matchers []Matcher
	dryRun   bool
}

// NewResolver creates a resolver using the given matchers in priority order.
func NewResolver(c Catalog, matchers []Matcher, dryRun bool) *Resolver {
	return &Resolver{catalog: c, matchers: matchers, dryRun: dryRun}
}

// Resolve looks up resources by name or URL and picks a match. Without one,
// it registers a new resource under the qualified name. A failed lookup or a
// creation that never got a reply is returned as an error; a creation the
// catalog rejected is reported in the Resolution.
func (r *Resolver) Resolve(ctx context.Context, d report.Descriptor) (Resolution, error) {
	logger := logging.FromContext(ctx)

	names := []string{d.Name()}
	if d.IsQualified() {
		names = append(names, d.QualifiedName())
	}

	candidates, err := r.catalog.FindResources(ctx, names, d.URL())
	if err != nil {
		return Resolution{}, err
	}

	if m, ok := selectMatch(candidates, d, r.matchers); ok {
		existing := m.resource.RoleSet()
		logger.Info().
			Str("resource_id", m.resource.ID.String()).
			Str("matched_by", m.matcher).
			Str("existing_roles", existing.String()).
			Msg("Reusing existing resource")
		return Resolution{
			Action:    ActionReuse,
			ID:        m.resource.ID,
			Ignore:    existing.Equal(d.Roles()),
			MatchedBy: m.matcher,
			Existing:  existing,
		}, nil
	}

	req := catalog.NewCreateRequest(d)
	if r.dryRun {
		logger.Info().Str("name", req.Name).Msg("Would create resource")
		return Resolution{Action: ActionCreate}, nil
	}

	created, err := r.catalog.CreateResource(ctx, req)
	if err != nil {
		if !errors.IsRejected(err) {
			return Resolution{}, err
		}
		logger.Error().Err(err).Str("name", req.Name).Msg("Resource creation rejected")
		return Resolution{Action: ActionCreateFailed, Ignore: true, Err: err}, nil
	}

	logger.Info().
		Str("resource_id", created.ID.String()).
		Str("name", created.Name).
		Msg("Created resource")
	return Resolution{Action: ActionCreate, ID: created.ID}, nil
}
