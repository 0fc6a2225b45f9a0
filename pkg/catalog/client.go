// Package catalog is a typed client for the CLUE catalog service.
//
// It covers the six calls the registrar needs: resource lookup and creation,
// build lookup, build link listing and creation, and role grants. Each call
// is issued exactly once; there is no retry.
package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/registrar/internal/transport"
	"github.com/agentstation/registrar/pkg/constants"
	"github.com/agentstation/registrar/pkg/errors"
	"github.com/agentstation/registrar/pkg/logging"
)

// HTTPClient is the injected HTTP capability. *transport.Client implements it.
type HTTPClient interface {
	Get(ctx context.Context, url string) (*http.Response, error)
	Post(ctx context.Context, url string, body any) (*http.Response, error)
	Put(ctx context.Context, url string, body any) (*http.Response, error)
}

// Compile-time interface check.
var _ HTTPClient = (*transport.Client)(nil)

// Client talks to one catalog deployment.
type Client struct {
	baseURL string
	http    HTTPClient
}

// New creates a catalog client rooted at baseURL using the given HTTP capability.
func New(baseURL string, hc HTTPClient) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.NewConfigError("catalog", "api_url is not set", nil)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, errors.NewConfigError("catalog", "api_url is not a valid URL", err)
	}
	if hc == nil {
		return nil, errors.NewConfigError("catalog", "no HTTP client configured", nil)
	}
	return &Client{baseURL: baseURL, http: hc}, nil
}

// NewWithAPIKey creates a catalog client that authenticates with the user_key header.
func NewWithAPIKey(baseURL, apiKey string, opts ...transport.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.NewConfigError("catalog", "api_key is not set", errors.ErrAPIKeyRequired)
	}
	return New(baseURL, transport.NewForCatalog(apiKey, opts...))
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FindResources returns resources named one of names or located at reportURL,
// with their roles. A 404 means nothing matched and yields an empty slice.
func (c *Client) FindResources(ctx context.Context, names []string, reportURL string) ([]Resource, error) {
	query, err := LookupFilter(names, reportURL).Encode()
	if err != nil {
		return nil, errors.WrapParse("json", "lookup filter", err)
	}
	endpoint := c.endpoint(constants.ResourcesPath) + "?" + query

	logging.FromContext(ctx).Debug().
		Strs("names", names).
		Str("url", reportURL).
		Msg("Looking up existing resources")

	resp, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return []Resource{}, nil
	}

	var resources []Resource
	if err := transport.DecodeResponse(resp, &resources); err != nil {
		return nil, errors.WrapResource("lookup", "resource", reportURL, err)
	}
	if resources == nil {
		resources = []Resource{}
	}
	return resources, nil
}

// CreateResource registers a new resource and returns it as stored.
func (c *Client) CreateResource(ctx context.Context, req CreateRequest) (*Resource, error) {
	logging.FromContext(ctx).Debug().
		Str("name", req.Name).
		Str("status", req.Status).
		Msg("Creating resource")

	resp, err := c.http.Post(ctx, c.endpoint(constants.ResourcesPath), req)
	if err != nil {
		return nil, err
	}

	var created Resource
	if err := transport.DecodeResponse(resp, &created); err != nil {
		return nil, errors.WrapResource("create", "resource", req.Name, err)
	}
	if created.ID == "" {
		return nil, errors.NewResourceError("create", "resource", req.Name, errors.New("response carried no id"))
	}
	return &created, nil
}

// Build fetches a build record.
func (c *Client) Build(ctx context.Context, buildID string) (*Build, error) {
	resp, err := c.http.Get(ctx, c.endpoint(constants.BuildsPath, buildID))
	if err != nil {
		return nil, err
	}

	var build Build
	if err := transport.DecodeResponse(resp, &build); err != nil {
		return nil, errors.WrapResource("lookup", "build", buildID, err)
	}
	return &build, nil
}

// LinkedResources lists the resources currently linked to a build.
func (c *Client) LinkedResources(ctx context.Context, buildID string) ([]Resource, error) {
	resp, err := c.http.Get(ctx, c.endpoint(constants.BuildsPath, buildID, constants.LinkedResourcesSegment))
	if err != nil {
		return nil, err
	}

	var resources []Resource
	if err := transport.DecodeResponse(resp, &resources); err != nil {
		return nil, errors.WrapResource("list", "build links", buildID, err)
	}
	return resources, nil
}

// LinkResource associates a resource with a build.
func (c *Client) LinkResource(ctx context.Context, buildID string, resourceID ID) error {
	endpoint := c.endpoint(constants.BuildsPath, buildID, constants.LinkedResourcesSegment, constants.RelSegment, resourceID.String())
	resp, err := c.http.Put(ctx, endpoint, struct{}{})
	if err != nil {
		return err
	}
	return errors.WrapResource("link", "resource", resourceID.String(), transport.DecodeResponse(resp, nil))
}

// GrantRole links a role to a resource. The service keys grants by role, so
// repeating the call is harmless.
func (c *Client) GrantRole(ctx context.Context, resourceID ID, roleID string) error {
	endpoint := c.endpoint(constants.ResourcesPath, resourceID.String(), constants.RoleSegment, constants.RelSegment, roleID)
	resp, err := c.http.Put(ctx, endpoint, struct{}{})
	if err != nil {
		return err
	}
	return errors.WrapResource("grant", "role", roleID, transport.DecodeResponse(resp, nil))
}

// endpoint joins path segments onto the base URL, escaping each dynamic segment.
func (c *Client) endpoint(path string, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(path)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
