package convert

import (
	"strings"

	"github.com/miku/scholixdump/schema/dump"
	"github.com/miku/scholixdump/schema/scholix"
)

// DefaultRelationName is used for any relation type we do not know about.
const DefaultRelationName = "IsRelatedTo"

// relationMap maps lowercased relation types to their canonical name.
var relationMap = map[string]string{
	"issupplementto":   "IsSupplementTo",
	"issupplementedby": "IsSupplementedBy",
	"references":       "References",
	"isreferencedby":   "IsReferencedBy",
	"isrelatedto":      "IsRelatedTo",
}

// NormalizeRelationType returns the canonical name for a raw relation type,
// ignoring case. Unknown and empty values become IsRelatedTo.
func NormalizeRelationType(raw string) string {
	if name, ok := relationMap[strings.ToLower(raw)]; ok {
		return name
	}
	return DefaultRelationName
}

// DumpRowToScholix turns a joined dump row into a scholix link. Never fails;
// missing lists become empty lists.
func DumpRowToScholix(row *dump.Row) *scholix.Scholix {
	providers := make([]scholix.LinkProvider, 0, len(row.LinkProviders))
	for _, name := range row.LinkProviders {
		providers = append(providers, scholix.LinkProvider{
			Name:       name,
			Identifier: []scholix.Identifier{},
		})
	}
	return &scholix.Scholix{
		LinkPublicationDate: row.PublicationDate,
		LinkProvider:        providers,
		RelationshipType: scholix.RelationshipType{
			Name:          NormalizeRelationType(row.RelationType),
			SubType:       row.RelationType,
			SubTypeSchema: scholix.SubTypeSchema,
		},
		LicenseURL: nil,
		Source:     entityToResource(&row.Source),
		Target:     entityToResource(&row.Target),
	}
}

func entityToResource(e *dump.Entity) *scholix.Resource {
	r := &scholix.Resource{
		Identifier:      identifiers(e.Identifier),
		Type:            e.ObjectType,
		SubType:         e.ObjectSubType,
		Title:           e.Title,
		Creator:         make([]scholix.Creator, 0, len(e.Creator)),
		PublicationDate: e.PublicationDate,
		Publisher:       make([]scholix.Publisher, 0, len(e.Publisher)),
	}
	for _, c := range e.Creator {
		ids := make([]scholix.Identifier, 0, len(c.Identifiers))
		for _, id := range c.Identifiers {
			// Creator ids never carry a URL.
			ids = append(ids, scholix.Identifier{ID: id.Identifier, IDScheme: id.Schema})
		}
		r.Creator = append(r.Creator, scholix.Creator{Name: c.Name, Identifier: ids})
	}
	for _, p := range e.Publisher {
		r.Publisher = append(r.Publisher, scholix.Publisher{
			Name:       p.Name,
			Identifier: identifiers(p.Identifiers),
		})
	}
	return r
}

func identifiers(ids []dump.Identifier) []scholix.Identifier {
	result := make([]scholix.Identifier, 0, len(ids))
	for _, id := range ids {
		result = append(result, scholix.Identifier{
			ID:       id.Identifier,
			IDScheme: id.Schema,
			IDURL:    copyString(id.URL),
		})
	}
	return result
}

// copyString returns a copy of s, nil stays nil.
func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
