package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miku/scholixdump/schema/dump"
)

var rels = []dump.Relationship{
	{
		SourceID:      "a",
		TargetID:      "b",
		RelationType:  "IsSupplementTo",
		LinkProviders: []string{"datacite"},
		SourcePidType: []string{"DOI"},
		TargetPidType: []string{"pmid", "doi"},
	},
	{
		SourceID:      "c",
		TargetID:      "d",
		RelationType:  "References",
		LinkProviders: []string{"Crossref", "OpenAIRE"},
		SourcePidType: []string{"pmc"},
	},
	{SourceID: "e", TargetID: "f"},
}

func keep(f Filter) []string {
	var ids []string
	for _, r := range rels {
		if f.Keep(&r) {
			ids = append(ids, r.SourceID)
		}
	}
	return ids
}

func TestKeep(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"a", "c", "e"}},
		{"datasource case insensitive", Filter{Datasource: "DataCite"}, []string{"a"}},
		{"datasource second provider", Filter{Datasource: "openaire"}, []string{"c"}},
		{"relation", Filter{Relation: "issupplementto"}, []string{"a"}},
		{"relation no match", Filter{Relation: "cites"}, nil},
		{"source pid", Filter{SourcePidType: "doi"}, []string{"a"}},
		{"target pid", Filter{TargetPidType: "PMID"}, []string{"a"}},
		{"conjunction", Filter{Datasource: "crossref", Relation: "references"}, []string{"c"}},
		{"conjunction excludes", Filter{Datasource: "crossref", Relation: "IsSupplementTo"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keep(tt.filter))
		})
	}
}

func TestEmptyFilterIsNoop(t *testing.T) {
	all := keep(Filter{})
	for _, f := range []Filter{
		{Datasource: ""},
		{Relation: ""},
		{SourcePidType: ""},
		{TargetPidType: ""},
	} {
		assert.True(t, f.IsEmpty())
		assert.Equal(t, all, keep(f))
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "none", Filter{}.String())
	assert.Equal(t, "datasource=x,target-pid=doi", Filter{Datasource: "x", TargetPidType: "doi"}.String())
}
