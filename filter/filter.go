// Package filter implements the optional relationship filters applied before
// the join. All comparisons ignore case; an empty value disables a filter and
// all set filters must match.
package filter

import (
	"strings"

	"github.com/miku/scholixdump/schema/dump"
)

// Filter holds the four optional filter values.
type Filter struct {
	Datasource    string // must be one of the link providers
	Relation      string // must equal the raw relation type
	SourcePidType string // must be one of the source pid types
	TargetPidType string // must be one of the target pid types
}

// IsEmpty returns true, if no filter is set.
func (f Filter) IsEmpty() bool {
	return f.Datasource == "" && f.Relation == "" && f.SourcePidType == "" && f.TargetPidType == ""
}

// Keep reports whether a relationship passes all configured filters.
func (f Filter) Keep(rel *dump.Relationship) bool {
	if f.Datasource != "" && !containsFold(rel.LinkProviders, f.Datasource) {
		return false
	}
	if f.Relation != "" && !strings.EqualFold(rel.RelationType, f.Relation) {
		return false
	}
	if f.SourcePidType != "" && !containsFold(rel.SourcePidType, f.SourcePidType) {
		return false
	}
	if f.TargetPidType != "" && !containsFold(rel.TargetPidType, f.TargetPidType) {
		return false
	}
	return true
}

// String renders the active filters, for logging.
func (f Filter) String() string {
	var parts []string
	for _, kv := range [][2]string{
		{"datasource", f.Datasource},
		{"relation", f.Relation},
		{"source-pid", f.SourcePidType},
		{"target-pid", f.TargetPidType},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

func containsFold(vs []string, s string) bool {
	for _, v := range vs {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
