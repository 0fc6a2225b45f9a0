package catalog

import (
	"encoding/json"
	"net/url"
)

// Filter is the LoopBack style query accepted by the resources endpoint.
type Filter struct {
	Where   map[string]any `json:"where,omitempty"`
	Include string         `json:"include,omitempty"`
}

// LookupFilter matches resources whose name is one of names or whose url equals reportURL,
// with linked roles included.
func LookupFilter(names []string, reportURL string) Filter {
	return Filter{
		Where: map[string]any{
			"or": []any{
				map[string]any{"name": map[string]any{"inq": names}},
				map[string]any{"url": reportURL},
			},
		},
		Include: "roles",
	}
}

// Encode renders the filter as a query string value.
func (f Filter) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return url.Values{"filter": []string{string(data)}}.Encode(), nil
}
