package report

import (
	"slices"
	"strings"
)

// RoleSet is a deduplicated, sorted set of role ids.
// The zero value is an empty set.
type RoleSet struct {
	ids []string
}

// NewRoleSet builds a set from ids, dropping blanks and duplicates.
func NewRoleSet(ids ...string) RoleSet {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return RoleSet{ids: out}
}

// ParseRoles splits a comma-separated role list into a RoleSet.
func ParseRoles(list string) RoleSet {
	return NewRoleSet(strings.Split(list, ",")...)
}

// IDs returns a sorted copy of the role ids. It is never nil.
func (s RoleSet) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of roles.
func (s RoleSet) Len() int {
	return len(s.ids)
}

// Contains reports whether id is in the set.
func (s RoleSet) Contains(id string) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

// Equal reports whether both sets hold the same ids, regardless of input order.
func (s RoleSet) Equal(other RoleSet) bool {
	return slices.Equal(s.ids, other.ids)
}

// Missing returns the ids in s that are absent from existing, sorted.
func (s RoleSet) Missing(existing RoleSet) []string {
	var out []string
	for _, id := range s.ids {
		if !existing.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// String joins the ids with commas.
func (s RoleSet) String() string {
	return strings.Join(s.ids, ",")
}
