// Package scholix contains the Scholix link interchange model, as written by
// the scholexplorer dump converter. Key names and their case are part of the
// downstream contract and must not be changed, even where they look
// inconsistent (Creator.Identifier, Publisher.name, LinkProvider.identifier).
package scholix

import "github.com/segmentio/encoding/json"

// SubTypeSchema is the schema every relationship sub type refers to.
const SubTypeSchema = "https://schema.datacite.org/meta/kernel-4.0/metadata.xsd"

// Mapper is implemented by every entity in this package. ToMap returns a plain
// nested mapping, with lists never nil.
type Mapper interface {
	ToMap() map[string]interface{}
}

// Identifier is a persistent identifier, e.g. a DOI, with its scheme and an
// optional resolvable URL.
type Identifier struct {
	ID       string  `json:"ID"`
	IDScheme string  `json:"IDScheme"`
	IDURL    *string `json:"IDURL"`
}

// Creator of a resource.
type Creator struct {
	Name       string       `json:"Name"`
	Identifier []Identifier `json:"Identifier"`
}

// Publisher of a resource. Lowercase "name" is intentional.
type Publisher struct {
	Name       string       `json:"name"`
	Identifier []Identifier `json:"Identifier"`
}

// LinkProvider is the service that asserted a link. Both keys are lowercase.
type LinkProvider struct {
	Name       string       `json:"name"`
	Identifier []Identifier `json:"identifier"`
}

// Resource is the source or the target of a link.
type Resource struct {
	Identifier      []Identifier `json:"Identifier"`
	Type            string       `json:"Type"`
	SubType         string       `json:"SubType"`
	Title           string       `json:"Title"`
	Creator         []Creator    `json:"Creator"`
	PublicationDate string       `json:"PublicationDate"`
	Publisher       []Publisher  `json:"Publisher"`
}

// RelationshipType carries the normalized name and the raw relation type.
type RelationshipType struct {
	Name          string `json:"Name"`
	SubType       string `json:"SubType"`
	SubTypeSchema string `json:"SubTypeSchema"`
}

// Scholix is a single typed link between two resources, the unit of output.
type Scholix struct {
	LinkPublicationDate string           `json:"LinkPublicationDate"`
	LinkProvider        []LinkProvider   `json:"LinkProvider"`
	RelationshipType    RelationshipType `json:"RelationshipType"`
	LicenseURL          *string          `json:"LicenseURL"`
	Source              *Resource        `json:"Source"`
	Target              *Resource        `json:"Target"`
}

// nonNil turns a nil slice into an empty one, so it serializes as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (c Creator) MarshalJSON() ([]byte, error) {
	type alias Creator
	a := alias(c)
	a.Identifier = nonNil(a.Identifier)
	return json.Marshal(a)
}

func (p Publisher) MarshalJSON() ([]byte, error) {
	type alias Publisher
	a := alias(p)
	a.Identifier = nonNil(a.Identifier)
	return json.Marshal(a)
}

func (p LinkProvider) MarshalJSON() ([]byte, error) {
	type alias LinkProvider
	a := alias(p)
	a.Identifier = nonNil(a.Identifier)
	return json.Marshal(a)
}

func (r Resource) MarshalJSON() ([]byte, error) {
	type alias Resource
	a := alias(r)
	a.Identifier = nonNil(a.Identifier)
	a.Creator = nonNil(a.Creator)
	a.Publisher = nonNil(a.Publisher)
	return json.Marshal(a)
}

func (s Scholix) MarshalJSON() ([]byte, error) {
	type alias Scholix
	a := alias(s)
	a.LinkProvider = nonNil(a.LinkProvider)
	return json.Marshal(a)
}
