package reconciler

import (
	"github.com/agentstation/registrar/pkg/catalog"
	"github.com/agentstation/registrar/pkg/report"
)

// Matcher decides whether an existing resource is the one a descriptor describes.
type Matcher struct {
	Name  string
	Match func(r catalog.Resource, d report.Descriptor) bool
}

var (
	// MatchPlainName accepts resources registered under the unqualified
	// display name, as older registrations were.
	MatchPlainName = Matcher{
		Name: "plain-name",
		Match: func(r catalog.Resource, d report.Descriptor) bool {
			return r.Name == d.Name()
		},
	}

	// MatchQualifiedName accepts resources registered under "{name} ({build})".
	MatchQualifiedName = Matcher{
		Name: "qualified-name",
		Match: func(r catalog.Resource, d report.Descriptor) bool {
			return d.IsQualified() && r.Name == d.QualifiedName()
		},
	}
)

// DefaultMatchers returns the predicates in priority order: plain name first,
// then qualified name.
func DefaultMatchers() []Matcher {
	return []Matcher{MatchPlainName, MatchQualifiedName}
}

// match is a resource picked by one of the matchers.
type match struct {
	resource catalog.Resource
	matcher  string
}

// selectMatch drops candidates whose URL differs from the descriptor, then
// tries every matcher in order against the remaining candidates in service
// order. The first acceptance wins.
func selectMatch(candidates []catalog.Resource, d report.Descriptor, matchers []Matcher) (match, bool) {
	sameURL := make([]catalog.Resource, 0, len(candidates))
	for _, r := range candidates {
		if r.URL == d.URL() {
			sameURL = append(sameURL, r)
		}
	}

	for _, m := range matchers {
		for _, r := range sameURL {
			if m.Match(r, d) {
				return match{resource: r, matcher: m.Name}, true
			}
		}
	}
	return match{}, false
}
