package reconciler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/catalog/catalogtest"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
	"github.com/agentstation/registrar/pkg/reconciler"
	"github.com/agentstation/registrar/pkg/report"
)

const indexURL = "https://reports.example.org/foo_bar/index.html"

func newServer(t *testing.T) *catalogtest.Server {
	t.Helper()
	srv := catalogtest.NewServer(t)
	srv.AddBuild("B1", "Release1")
	return srv
}

func newReconciler(t *testing.T, srv *catalogtest.Server, opts ...reconciler.Option) *reconciler.Reconciler {
	t.Helper()
	r, err := reconciler.New(srv.Client(t), opts...)
	require.NoError(t, err)
	return r
}

func callStrings(calls []catalogtest.Call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("nil catalog", func(t *testing.T) {
		_, err := reconciler.New(nil)
		var cfgErr *errors.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("empty matchers", func(t *testing.T) {
		srv := newServer(t)
		_, err := reconciler.New(srv.Client(t), reconciler.WithMatchers())
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("matcher without predicate", func(t *testing.T) {
		srv := newServer(t)
		_, err := reconciler.New(srv.Client(t), reconciler.WithMatchers(reconciler.Matcher{Name: "broken"}))
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestNewProjectIsCreatedLinkedAndGranted(t *testing.T) {
	srv := newServer(t)
	r := newReconciler(t, srv)

	desc := report.New("Foo_Bar", indexURL, "cmap_core", true)
	result, err := r.Run(context.Background(), desc, "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeUpdated, result.Outcome)
	assert.Equal(t, reconciler.StateRolesSynced, result.State)
	assert.Equal(t, reconciler.ActionCreate, result.Action)
	assert.Equal(t, "Foo Bar (Release1)", result.QualifiedName)
	assert.Equal(t, "Release1", result.BuildName)
	assert.True(t, result.Linked)
	assert.Equal(t, 3, result.Writes)
	assert.True(t, result.IsSuccess())

	assert.Equal(t, []string{
		"POST /api/preliminary-analysis",
		"PUT /api/data/B1/external_analysis/rel/res-1",
		"PUT /api/preliminary-analysis/res-1/role/rel/cmap_core",
	}, callStrings(srv.Writes()))

	resources := srv.Resources()
	require.Len(t, resources, 1)
	assert.Equal(t, "Foo Bar (Release1)", resources[0].Name)
	assert.Equal(t, "Foo Bar", resources[0].Description)
	assert.Equal(t, "APPROVED", resources[0].Status)
	assert.Equal(t, "MTS", resources[0].CreatedBy)
	assert.Equal(t, []catalog.ID{"res-1"}, srv.LinkedIDs("B1"))

	require.Len(t, result.RoleGrants, 1)
	assert.Equal(t, reconciler.RoleOutcome{Role: "cmap_core", Granted: true}, result.RoleGrants[0])
	assert.False(t, result.Metadata.EndTime.Time.Before(result.Metadata.StartTime.Time))
}

func TestRerunIsIgnored(t *testing.T) {
	srv := newServer(t)
	r := newReconciler(t, srv)
	desc := report.New("Foo_Bar", indexURL, "cmap_core", true)

	first, err := r.Run(context.Background(), desc, "B1")
	require.NoError(t, err)
	require.Equal(t, reconciler.OutcomeUpdated, first.Outcome)

	srv.ResetCalls()
	second, err := r.Run(context.Background(), desc, "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeIgnored, second.Outcome)
	assert.Equal(t, reconciler.ActionReuse, second.Action)
	assert.Equal(t, "qualified-name", second.MatchedBy)
	assert.Equal(t, first.ResourceID, second.ResourceID)
	assert.Zero(t, second.Writes)
	assert.False(t, second.Linked)
	assert.Empty(t, srv.Writes())
	assert.Len(t, srv.Resources(), 1)
}

func TestReviewModeNaming(t *testing.T) {
	srv := newServer(t)
	r := newReconciler(t, srv)

	desc := report.New("Foo_Bar", indexURL, "cmap_core", false)
	result, err := r.Run(context.Background(), desc, "B1")
	require.NoError(t, err)

	assert.Equal(t, "REVIEW--Foo Bar", result.Name)
	assert.Equal(t, "REVIEW--Foo Bar (Release1)", result.QualifiedName)
	assert.Equal(t, "NEEDS_REVIEW", result.Status)

	resources := srv.Resources()
	require.Len(t, resources, 1)
	assert.Equal(t, "REVIEW--Foo Bar (Release1)", resources[0].Name)
	assert.Equal(t, "REVIEW", resources[0].Status)
	assert.Equal(t, "Foo Bar", resources[0].Description)
}

func TestLegacyPlainNameIsReused(t *testing.T) {
	srv := newServer(t)
	id := srv.AddResource(catalog.Resource{
		Name:  "Foo Bar",
		URL:   indexURL,
		Roles: []catalog.Role{{ID: "cmap_core"}},
	})
	srv.Link("B1", id)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeIgnored, result.Outcome)
	assert.Equal(t, reconciler.ActionReuse, result.Action)
	assert.Equal(t, "plain-name", result.MatchedBy)
	assert.Equal(t, id, result.ResourceID)
	assert.Empty(t, srv.Writes())
	assert.Len(t, srv.Resources(), 1)
}

func TestPlainNameWinsOverQualifiedName(t *testing.T) {
	srv := newServer(t)
	srv.AddResource(catalog.Resource{Name: "Foo Bar (Release1)", URL: indexURL})
	plain := srv.AddResource(catalog.Resource{Name: "Foo Bar", URL: indexURL})
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, plain, result.ResourceID)
	assert.Equal(t, "plain-name", result.MatchedBy)
}

func TestURLMismatchCreatesNewResource(t *testing.T) {
	srv := newServer(t)
	srv.AddResource(catalog.Resource{Name: "Foo Bar (Release1)", URL: "https://elsewhere.example.org/index.html"})
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.ActionCreate, result.Action)
	assert.Len(t, srv.Resources(), 2)
}

func TestRoleOrderIndependence(t *testing.T) {
	srv := newServer(t)
	id := srv.AddResource(catalog.Resource{
		Name:  "Foo Bar (Release1)",
		URL:   indexURL,
		Roles: []catalog.Role{{ID: "b"}, {ID: "a"}},
	})
	srv.Link("B1", id)
	r := newReconciler(t, srv)

	for _, roles := range []string{"a,b", "b,a", " b , a ,a"} {
		t.Run(roles, func(t *testing.T) {
			srv.ResetCalls()
			result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, roles, true), "B1")
			require.NoError(t, err)
			assert.Equal(t, reconciler.OutcomeIgnored, result.Outcome)
			assert.Empty(t, srv.Writes())
		})
	}
}

func TestExistingRolesAreNeverRemoved(t *testing.T) {
	srv := newServer(t)
	id := srv.AddResource(catalog.Resource{
		Name:  "Foo Bar (Release1)",
		URL:   indexURL,
		Roles: []catalog.Role{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	})
	srv.Link("B1", id)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "a", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeIgnored, result.Outcome)
	assert.Empty(t, result.RoleGrants)
	assert.Empty(t, srv.Writes())
	assert.Len(t, srv.Resources()[0].Roles, 3)
}

func TestOnlyMissingRolesAreGranted(t *testing.T) {
	srv := newServer(t)
	id := srv.AddResource(catalog.Resource{
		Name:  "Foo Bar (Release1)",
		URL:   indexURL,
		Roles: []catalog.Role{{ID: "a"}},
	})
	srv.Link("B1", id)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "c,a,b", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeUpdated, result.Outcome)
	assert.Equal(t, []reconciler.RoleOutcome{
		{Role: "b", Granted: true},
		{Role: "c", Granted: true},
	}, result.RoleGrants)
	assert.ElementsMatch(t, []string{
		"PUT /api/preliminary-analysis/" + id.String() + "/role/rel/b",
		"PUT /api/preliminary-analysis/" + id.String() + "/role/rel/c",
	}, callStrings(srv.Writes()))
}

func TestMissingBuildLinkIsCreatedOnce(t *testing.T) {
	srv := newServer(t)
	id := srv.AddResource(catalog.Resource{
		Name:  "Foo Bar (Release1)",
		URL:   indexURL,
		Roles: []catalog.Role{{ID: "cmap_core"}},
	})
	r := newReconciler(t, srv)
	desc := report.New("Foo_Bar", indexURL, "cmap_core", true)

	result, err := r.Run(context.Background(), desc, "B1")
	require.NoError(t, err)
	assert.Equal(t, reconciler.OutcomeUpdated, result.Outcome)
	assert.True(t, result.Linked)
	assert.Equal(t, 1, result.Writes)
	assert.Equal(t, []string{"PUT /api/data/B1/external_analysis/rel/" + id.String()}, callStrings(srv.Writes()))

	srv.ResetCalls()
	result, err = r.Run(context.Background(), desc, "B1")
	require.NoError(t, err)
	assert.Equal(t, reconciler.OutcomeIgnored, result.Outcome)
	assert.Empty(t, srv.Writes())
	assert.Equal(t, []catalog.ID{id}, srv.LinkedIDs("B1"))
}

func TestPartialRoleFailure(t *testing.T) {
	srv := newServer(t)
	id := srv.AddResource(catalog.Resource{Name: "Foo Bar (Release1)", URL: indexURL})
	srv.Link("B1", id)
	srv.FailOn(http.MethodPut, "/api/preliminary-analysis/"+id.String()+"/role/rel/x", http.StatusInternalServerError)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "x,y", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
	assert.Equal(t, reconciler.StateRolesSynced, result.State)
	assert.False(t, result.IsSuccess())
	assert.Equal(t, []string{"x"}, result.FailedRoles())

	require.Len(t, result.RoleGrants, 2)
	assert.Equal(t, "x", result.RoleGrants[0].Role)
	assert.False(t, result.RoleGrants[0].Granted)
	assert.True(t, errors.IsRejected(result.RoleGrants[0].Err))
	assert.NotEmpty(t, result.RoleGrants[0].Error)
	assert.Equal(t, reconciler.RoleOutcome{Role: "y", Granted: true}, result.RoleGrants[1])

	roles := srv.Resources()[0].Roles
	require.Len(t, roles, 1)
	assert.Equal(t, catalog.ID("y"), roles[0].ID)
}

func TestRejectedCreation(t *testing.T) {
	srv := newServer(t)
	srv.FailOn(http.MethodPost, "/api/preliminary-analysis", http.StatusUnprocessableEntity)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
	assert.Equal(t, reconciler.ActionCreateFailed, result.Action)
	assert.Equal(t, reconciler.StateResolved, result.State)
	assert.Contains(t, result.Error, "status 422")
	assert.Equal(t, []string{"POST /api/preliminary-analysis"}, callStrings(srv.Writes()))
}

// unreachableCreate answers every read but cannot reach the service on create.
type unreachableCreate struct {
	linked bool
	grants int
}

func (u *unreachableCreate) FindResources(context.Context, []string, string) ([]catalog.Resource, error) {
	return nil, nil
}

func (u *unreachableCreate) CreateResource(context.Context, catalog.CreateRequest) (*catalog.Resource, error) {
	return nil, errors.NewTransportError(http.MethodPost, "/api/preliminary-analysis", errors.New("connection refused"))
}

func (u *unreachableCreate) Build(_ context.Context, buildID string) (*catalog.Build, error) {
	return &catalog.Build{ID: catalog.ID(buildID), Name: "Release1"}, nil
}

func (u *unreachableCreate) LinkedResources(context.Context, string) ([]catalog.Resource, error) {
	return nil, nil
}

func (u *unreachableCreate) LinkResource(context.Context, string, catalog.ID) error {
	u.linked = true
	return nil
}

func (u *unreachableCreate) GrantRole(context.Context, catalog.ID, string) error {
	u.grants++
	return nil
}

func TestCreationTransportFailureIsFatal(t *testing.T) {
	stub := &unreachableCreate{}
	r, err := reconciler.New(stub)
	require.NoError(t, err)
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	result, err := r.Run(ctx, report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
	assert.Equal(t, reconciler.StateNew, result.State)
	assert.Empty(t, result.Action)
	assert.Contains(t, result.Error, "connection refused")
	assert.False(t, stub.linked)
	assert.Zero(t, stub.grants)
	tl.AssertNotContains(t, "Resource creation rejected")
}

func TestBuildNameFailures(t *testing.T) {
	t.Run("unknown build", func(t *testing.T) {
		srv := newServer(t)
		r := newReconciler(t, srv)

		result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "", true), "B9")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
		assert.Equal(t, reconciler.StateNew, result.State)
		assert.Equal(t, []string{"GET /api/data/B9"}, callStrings(srv.Calls()))
		assert.Equal(t, []string{}, result.Roles)
	})

	t.Run("empty build name", func(t *testing.T) {
		srv := newServer(t)
		srv.AddBuild("B2", "  ")
		r := newReconciler(t, srv)

		result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "", true), "B2")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
		assert.Equal(t, reconciler.StateNew, result.State)
		assert.Len(t, srv.Calls(), 1)
	})

	t.Run("blank build id", func(t *testing.T) {
		srv := newServer(t)
		r := newReconciler(t, srv)

		result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "", true), " ")
		assert.True(t, errors.IsValidationError(err))
		assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
		assert.Empty(t, srv.Calls())
	})
}

func TestLinkFailureIsFatal(t *testing.T) {
	srv := newServer(t)
	srv.FailOn(http.MethodPut, "/api/data/B1/external_analysis/rel/res-1", http.StatusBadGateway)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.Error(t, err)
	assert.True(t, errors.IsRejected(err))
	assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
	assert.Equal(t, reconciler.StateResolved, result.State)
	assert.Empty(t, result.RoleGrants)
}

func TestLookupFailureIsFatal(t *testing.T) {
	srv := newServer(t)
	srv.FailOn(http.MethodGet, "/api/preliminary-analysis", http.StatusInternalServerError)
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrServiceUnavailable)
	assert.Equal(t, reconciler.StateNew, result.State)
	assert.Empty(t, srv.Writes())
}

func TestLookupNotFoundMeansNoMatch(t *testing.T) {
	srv := newServer(t)
	srv.NotFoundOnEmpty = true
	r := newReconciler(t, srv)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.NoError(t, err)
	assert.Equal(t, reconciler.ActionCreate, result.Action)
	assert.Equal(t, reconciler.OutcomeUpdated, result.Outcome)
}

func TestTransportFailure(t *testing.T) {
	c, err := catalog.NewWithAPIKey("http://127.0.0.1:1", catalogtest.APIKey)
	require.NoError(t, err)
	r, err := reconciler.New(c)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, reconciler.OutcomeFailed, result.Outcome)
	assert.NotEmpty(t, result.Error)
}

func TestDryRun(t *testing.T) {
	t.Run("new project", func(t *testing.T) {
		srv := newServer(t)
		r := newReconciler(t, srv, reconciler.WithDryRun(true))

		result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "b,a", true), "B1")
		require.NoError(t, err)

		assert.Empty(t, srv.Writes())
		assert.Empty(t, srv.Resources())
		assert.True(t, result.Metadata.DryRun)
		assert.Equal(t, reconciler.ActionCreate, result.Action)
		assert.Empty(t, result.ResourceID)
		assert.True(t, result.Linked)
		assert.Equal(t, 4, result.Writes)
		assert.Equal(t, []reconciler.RoleOutcome{
			{Role: "a", Planned: true},
			{Role: "b", Planned: true},
		}, result.RoleGrants)
	})

	t.Run("existing unlinked resource", func(t *testing.T) {
		srv := newServer(t)
		srv.AddResource(catalog.Resource{Name: "Foo Bar (Release1)", URL: indexURL})
		r := newReconciler(t, srv, reconciler.WithDryRun(true))

		result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
		require.NoError(t, err)

		assert.Empty(t, srv.Writes())
		assert.Equal(t, reconciler.ActionReuse, result.Action)
		assert.True(t, result.Linked)
		assert.Equal(t, 2, result.Writes)
		assert.Empty(t, srv.LinkedIDs("B1"))
	})
}

func TestCustomMatchers(t *testing.T) {
	srv := newServer(t)
	srv.AddResource(catalog.Resource{Name: "Foo Bar", URL: indexURL})
	r := newReconciler(t, srv, reconciler.WithMatchers(reconciler.MatchQualifiedName))

	result, err := r.Run(context.Background(), report.New("Foo_Bar", indexURL, "cmap_core", true), "B1")
	require.NoError(t, err)

	assert.Equal(t, reconciler.ActionCreate, result.Action)
	assert.Len(t, srv.Resources(), 2)
}

func TestRunLogsOutcome(t *testing.T) {
	srv := newServer(t)
	r := newReconciler(t, srv)
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	_, err := r.Run(ctx, report.New("Foo_Bar", indexURL, "a,b", true), "B1")
	require.NoError(t, err)

	tl.AssertContains(t, "Registration finished")
	tl.AssertContains(t, `"outcome":"updated"`)
	tl.AssertContains(t, `"build_id":"B1"`)
	tl.AssertContains(t, `"role_id":"a"`)
}
