// Package dump contains the types of the scholexplorer dump: relationships,
// entities and the joined row the converter works on.
//
// A dump directory has two subdirectories, "relationships" and "entities",
// each with JSON lines files, as written by spark.
package dump

import (
	"errors"

	"github.com/segmentio/encoding/json"
)

var (
	ErrMissingID     = errors.New("missing identifier")
	ErrMissingSource = errors.New("missing source id")
	ErrMissingTarget = errors.New("missing target id")
)

// Identifier as found on entities and publishers. URL is nil if the field is
// missing, an empty url is kept.
type Identifier struct {
	Identifier string  `json:"identifier"`
	Schema     string  `json:"schema"`
	URL        *string `json:"url,omitempty"`
}

// CreatorIdentifier is a creator id, e.g. an ORCID; these carry no URL.
type CreatorIdentifier struct {
	Identifier string `json:"identifier"`
	Schema     string `json:"schema"`
}

type Creator struct {
	Name        string              `json:"name"`
	Identifiers []CreatorIdentifier `json:"identifiers,omitempty"`
}

type Publisher struct {
	Name        string       `json:"name"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

// Entity is a resource from the entities dataset, keyed by DnetIdentifier.
type Entity struct {
	DnetIdentifier  string       `json:"dnetIdentifier"`
	Identifier      []Identifier `json:"identifier,omitempty"`
	ObjectType      string       `json:"objectType,omitempty"`
	ObjectSubType   string       `json:"objectSubType,omitempty"`
	Title           string       `json:"title,omitempty"`
	Creator         []Creator    `json:"creator,omitempty"`
	PublicationDate string       `json:"publicationDate,omitempty"`
	Publisher       []Publisher  `json:"publisher,omitempty"`
}

// Validate checks the join key.
func (e *Entity) Validate() error {
	if e.DnetIdentifier == "" {
		return ErrMissingID
	}
	return nil
}

// Relationship is a link between two entities, from the relationships dataset.
type Relationship struct {
	SourceID        string   `json:"sourceId"`
	TargetID        string   `json:"targetId"`
	RelationType    string   `json:"relationType"`
	LinkProviders   []string `json:"linkProviders,omitempty"`
	PublicationDate string   `json:"publicationDate,omitempty"`
	SourcePidType   []string `json:"sourcePidType,omitempty"`
	TargetPidType   []string `json:"targetPidType,omitempty"`
}

// Validate checks both join keys.
func (r *Relationship) Validate() error {
	switch {
	case r.SourceID == "":
		return ErrMissingSource
	case r.TargetID == "":
		return ErrMissingTarget
	}
	return nil
}

// Row is a relationship joined with its source and target entity.
type Row struct {
	Source          Entity
	Target          Entity
	PublicationDate string
	LinkProviders   []string
	RelationType    string
}

// JoinRow assembles a row from a relationship and its two entities.
func JoinRow(rel *Relationship, source, target *Entity) *Row {
	return &Row{
		Source:          *source,
		Target:          *target,
		PublicationDate: rel.PublicationDate,
		LinkProviders:   rel.LinkProviders,
		RelationType:    rel.RelationType,
	}
}

// FlatRow is the joined row in the column layout produced by a spark join,
// where entity columns are aliased with "s_" and "t_" prefixes.
type FlatRow struct {
	SourceDnetIdentifier  string       `json:"s_dnetIdentifier,omitempty"`
	SourceIdentifier      []Identifier `json:"s_identifier,omitempty"`
	SourceObjectType      string       `json:"s_objectType,omitempty"`
	SourceObjectSubType   string       `json:"s_objectSubType,omitempty"`
	SourceTitle           string       `json:"s_title,omitempty"`
	SourceCreator         []Creator    `json:"s_creator,omitempty"`
	SourcePublicationDate string       `json:"s_publicationDate,omitempty"`
	SourcePublisher       []Publisher  `json:"s_publisher,omitempty"`
	TargetDnetIdentifier  string       `json:"t_dnetIdentifier,omitempty"`
	TargetIdentifier      []Identifier `json:"t_identifier,omitempty"`
	TargetObjectType      string       `json:"t_objectType,omitempty"`
	TargetObjectSubType   string       `json:"t_objectSubType,omitempty"`
	TargetTitle           string       `json:"t_title,omitempty"`
	TargetCreator         []Creator    `json:"t_creator,omitempty"`
	TargetPublicationDate string       `json:"t_publicationDate,omitempty"`
	TargetPublisher       []Publisher  `json:"t_publisher,omitempty"`
	PublicationDate       string       `json:"publicationDate,omitempty"`
	LinkProviders         []string     `json:"linkProviders,omitempty"`
	RelationType          string       `json:"relationType"`
}

// Row converts the flat layout into a row.
func (f *FlatRow) Row() *Row {
	return &Row{
		Source: Entity{
			DnetIdentifier:  f.SourceDnetIdentifier,
			Identifier:      f.SourceIdentifier,
			ObjectType:      f.SourceObjectType,
			ObjectSubType:   f.SourceObjectSubType,
			Title:           f.SourceTitle,
			Creator:         f.SourceCreator,
			PublicationDate: f.SourcePublicationDate,
			Publisher:       f.SourcePublisher,
		},
		Target: Entity{
			DnetIdentifier:  f.TargetDnetIdentifier,
			Identifier:      f.TargetIdentifier,
			ObjectType:      f.TargetObjectType,
			ObjectSubType:   f.TargetObjectSubType,
			Title:           f.TargetTitle,
			Creator:         f.TargetCreator,
			PublicationDate: f.TargetPublicationDate,
			Publisher:       f.TargetPublisher,
		},
		PublicationDate: f.PublicationDate,
		LinkProviders:   f.LinkProviders,
		RelationType:    f.RelationType,
	}
}

// Flat returns the row in spark column layout.
func (r *Row) Flat() *FlatRow {
	return &FlatRow{
		SourceDnetIdentifier:  r.Source.DnetIdentifier,
		SourceIdentifier:      r.Source.Identifier,
		SourceObjectType:      r.Source.ObjectType,
		SourceObjectSubType:   r.Source.ObjectSubType,
		SourceTitle:           r.Source.Title,
		SourceCreator:         r.Source.Creator,
		SourcePublicationDate: r.Source.PublicationDate,
		SourcePublisher:       r.Source.Publisher,
		TargetDnetIdentifier:  r.Target.DnetIdentifier,
		TargetIdentifier:      r.Target.Identifier,
		TargetObjectType:      r.Target.ObjectType,
		TargetObjectSubType:   r.Target.ObjectSubType,
		TargetTitle:           r.Target.Title,
		TargetCreator:         r.Target.Creator,
		TargetPublicationDate: r.Target.PublicationDate,
		TargetPublisher:       r.Target.Publisher,
		PublicationDate:       r.PublicationDate,
		LinkProviders:         r.LinkProviders,
		RelationType:          r.RelationType,
	}
}

// UnmarshalJSON reads a row from the flat spark layout.
func (r *Row) UnmarshalJSON(b []byte) error {
	var f FlatRow
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = *f.Row()
	return nil
}

// MarshalJSON writes the row in the flat spark layout.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flat())
}
