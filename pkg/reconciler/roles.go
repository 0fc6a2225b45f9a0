package reconciler

import (
	"context"
	"slices"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/logging"
	"github.com/agentstation/registrar/pkg/report"
)

// RoleOutcome is the result of one role grant.
type RoleOutcome struct {
	Role    string `json:"role" yaml:"role"`
	Granted bool   `json:"granted" yaml:"granted"`
	Planned bool   `json:"planned,omitempty" yaml:"planned,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// RoleReconciler grants the desired roles a resource is missing.
// Roles are only ever added, and a role the resource already has is never re-granted.
type RoleReconciler struct {
	catalog Catalog
	dryRun  bool
}

// NewRoleReconciler creates a RoleReconciler.
func NewRoleReconciler(c Catalog, dryRun bool) *RoleReconciler {
	return &RoleReconciler{catalog: c, dryRun: dryRun}
}

// Reconcile grants every role in desired that existing lacks, one request per
// role, all in flight at once. It waits for every grant; a failure does not
// cancel the others. Outcomes are sorted by role id.
func (rr *RoleReconciler) Reconcile(ctx context.Context, resourceID catalog.ID, desired, existing report.RoleSet) []RoleOutcome {
	missing := desired.Missing(existing)
	if len(missing) == 0 {
		return nil
	}

	logger := logging.FromContext(ctx)

	if rr.dryRun || resourceID == "" {
		outcomes := make([]RoleOutcome, 0, len(missing))
		for _, role := range missing {
			logger.Info().Str("role_id", role).Msg("Would grant role")
			outcomes = append(outcomes, RoleOutcome{Role: role, Planned: true})
		}
		return outcomes
	}

	p := pool.NewWithResults[RoleOutcome]()
	for _, role := range missing {
		p.Go(func() RoleOutcome {
			roleCtx := logging.WithRole(ctx, role)
			if err := rr.catalog.GrantRole(roleCtx, resourceID, role); err != nil {
				logging.FromContext(roleCtx).Warn().Err(err).Msg("Role grant failed")
				return RoleOutcome{Role: role, Error: err.Error(), Err: err}
			}
			logging.FromContext(roleCtx).Info().Msg("Granted role")
			return RoleOutcome{Role: role, Granted: true}
		})
	}

	outcomes := p.Wait()
	slices.SortFunc(outcomes, func(a, b RoleOutcome) int {
		return strings.Compare(a.Role, b.Role)
	})
	return outcomes
}
