package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/agentstation/registrar/pkg/report"
)

// ID is a catalog record id. The service returns either JSON strings or numbers.
type ID string

// UnmarshalJSON accepts both string and numeric ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Role is a role record as embedded in a resource by include=roles.
type Role struct {
	ID   ID     `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Resource is a registered preliminary analysis in the catalog.
type Resource struct {
	ID          ID     `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string `json:"url" yaml:"url"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedBy   string `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	Roles       []Role `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// RoleSet returns the ids of the resource's linked roles as a set.
func (r Resource) RoleSet() report.RoleSet {
	ids := make([]string, 0, len(r.Roles))
	for _, role := range r.Roles {
		ids = append(ids, string(role.ID))
	}
	return report.NewRoleSet(ids...)
}

// Build is a versioned data release.
type Build struct {
	ID   ID     `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// CreateRequest is the body POSTed to register a new resource.
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	CreatedBy   string `json:"created_by"`
}

// NewCreateRequest builds the creation payload for a qualified descriptor.
// The resource is registered under the build-qualified name.
func NewCreateRequest(d report.Descriptor) CreateRequest {
	name := d.QualifiedName()
	if name == "" {
		name = d.Name()
	}
	return CreateRequest{
		Name:        name,
		Description: d.Description(),
		URL:         d.URL(),
		Status:      d.Status().CatalogValue(),
		CreatedBy:   d.CreatedBy(),
	}
}
