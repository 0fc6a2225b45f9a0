package reconciler

import (
	"context"
	"strings"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
)

// BuildNameResolver turns a build id into its display name.
type BuildNameResolver struct {
	catalog Catalog
}

// NewBuildNameResolver creates a BuildNameResolver.
func NewBuildNameResolver(c Catalog) *BuildNameResolver {
	return &BuildNameResolver{catalog: c}
}

// Resolve returns the build's name. A missing build or an empty name is an error.
func (b *BuildNameResolver) Resolve(ctx context.Context, buildID string) (string, error) {
	build, err := b.catalog.Build(ctx, buildID)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(build.Name)
	if name == "" {
		return "", errors.NewNotFoundError("build name", buildID)
	}
	return name, nil
}

// BuildLinker ensures a resource is linked to a build exactly once.
type BuildLinker struct {
	catalog Catalog
	dryRun  bool
}

// NewBuildLinker creates a BuildLinker.
func NewBuildLinker(c Catalog, dryRun bool) *BuildLinker {
	return &BuildLinker{catalog: c, dryRun: dryRun}
}

// Ensure links resourceID to buildID unless the link already exists.
// It reports whether a link write was issued (or planned, in dry-run mode).
// An empty resourceID stands for a resource that would be created by a dry
// run, which is never linked yet.
func (b *BuildLinker) Ensure(ctx context.Context, buildID string, resourceID catalog.ID) (bool, error) {
	logger := logging.FromContext(ctx)

	if resourceID == "" {
		if !b.dryRun {
			return false, errors.NewValidationError("resource_id", resourceID, "cannot link a resource without an id")
		}
		logger.Info().Msg("Would link new resource to build")
		return true, nil
	}

	linked, err := b.catalog.LinkedResources(ctx, buildID)
	if err != nil {
		return false, err
	}
	for _, r := range linked {
		if r.ID == resourceID {
			logger.Debug().Str("resource_id", resourceID.String()).Msg("Resource already linked to build")
			return false, nil
		}
	}

	if b.dryRun {
		logger.Info().Str("resource_id", resourceID.String()).Msg("Would link resource to build")
		return true, nil
	}

	if err := b.catalog.LinkResource(ctx, buildID, resourceID); err != nil {
		return false, err
	}
	logger.Info().Str("resource_id", resourceID.String()).Msg("Linked resource to build")
	return true, nil
}
