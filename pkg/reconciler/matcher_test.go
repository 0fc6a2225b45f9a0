package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/report"
)

func TestSelectMatch(t *testing.T) {
	const url = "https://reports.example.org/index.html"
	desc := report.New("Foo_Bar", url, "cmap_core", true).Qualify("Release1")

	tests := []struct {
		name        string
		candidates  []catalog.Resource
		matchers    []Matcher
		wantID      catalog.ID
		wantMatcher string
		wantOK      bool
	}{
		{
			name:   "no candidates",
			wantOK: false,
		},
		{
			name: "qualified name",
			candidates: []catalog.Resource{
				{ID: "1", Name: "Foo Bar (Release1)", URL: url},
			},
			wantID:      "1",
			wantMatcher: "qualified-name",
			wantOK:      true,
		},
		{
			name: "plain name preferred regardless of order",
			candidates: []catalog.Resource{
				{ID: "1", Name: "Foo Bar (Release1)", URL: url},
				{ID: "2", Name: "Foo Bar", URL: url},
			},
			wantID:      "2",
			wantMatcher: "plain-name",
			wantOK:      true,
		},
		{
			name: "url must match",
			candidates: []catalog.Resource{
				{ID: "1", Name: "Foo Bar", URL: "https://other.example.org"},
			},
			wantOK: false,
		},
		{
			name: "url match with foreign name is not reused",
			candidates: []catalog.Resource{
				{ID: "1", Name: "Something Else", URL: url},
			},
			wantOK: false,
		},
		{
			name: "first of several equal candidates",
			candidates: []catalog.Resource{
				{ID: "7", Name: "Foo Bar", URL: url},
				{ID: "8", Name: "Foo Bar", URL: url},
			},
			wantID:      "7",
			wantMatcher: "plain-name",
			wantOK:      true,
		},
		{
			name: "custom order",
			candidates: []catalog.Resource{
				{ID: "1", Name: "Foo Bar", URL: url},
				{ID: "2", Name: "Foo Bar (Release1)", URL: url},
			},
			matchers:    []Matcher{MatchQualifiedName, MatchPlainName},
			wantID:      "2",
			wantMatcher: "qualified-name",
			wantOK:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matchers := tt.matchers
			if matchers == nil {
				matchers = DefaultMatchers()
			}
			got, ok := selectMatch(tt.candidates, desc, matchers)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.resource.ID)
			assert.Equal(t, tt.wantMatcher, got.matcher)
		})
	}
}

func TestMatchQualifiedNameRequiresQualification(t *testing.T) {
	desc := report.New("Foo_Bar", "u", "", true)
	assert.False(t, MatchQualifiedName.Match(catalog.Resource{Name: ""}, desc))
}
