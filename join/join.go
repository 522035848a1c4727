package join

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/miku/scholixdump/convert"
	"github.com/miku/scholixdump/filter"
	"github.com/miku/scholixdump/pproc"
	"github.com/miku/scholixdump/schema/dump"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

// Stats counts what happened to relationships during a run.
type Stats struct {
	Read     int64 `json:"read"`
	Invalid  int64 `json:"invalid"`
	Filtered int64 `json:"filtered"`
	Missing  int64 `json:"missing"`
	Written  int64 `json:"written"`
	Entities int64 `json:"entities"`
}

// Fields returns the stats as log fields.
func (s Stats) Fields() log.Fields {
	return log.Fields{
		"read":     s.Read,
		"invalid":  s.Invalid,
		"filtered": s.Filtered,
		"missing":  s.Missing,
		"written":  s.Written,
		"entities": s.Entities,
	}
}

// Joiner joins single relationships against an entity index and converts
// them to scholix. Safe for concurrent use.
type Joiner struct {
	Index  Index
	Filter filter.Filter
	// SkipInvalid logs and drops undecodable or invalid relationships,
	// otherwise they stop the run.
	SkipInvalid bool

	read, invalid, filtered, missing, written atomic.Int64
}

// Stats returns a snapshot of the counters.
func (j *Joiner) Stats() Stats {
	return Stats{
		Read:     j.read.Load(),
		Invalid:  j.invalid.Load(),
		Filtered: j.filtered.Load(),
		Missing:  j.missing.Load(),
		Written:  j.written.Load(),
	}
}

func (j *Joiner) invalidRecord(p []byte, err error) error {
	if !j.SkipInvalid {
		return fmt.Errorf("invalid record: %w: %s", err, p)
	}
	j.invalid.Add(1)
	log.WithError(err).Debug("skipping invalid record")
	return nil
}

// Join returns the joined row for a relationship, or nil if the relationship
// is filtered out or one of its entities is missing.
func (j *Joiner) Join(ctx context.Context, rel *dump.Relationship) (*dump.Row, error) {
	if !j.Filter.Keep(rel) {
		j.filtered.Add(1)
		return nil, nil
	}
	source, err := j.Index.Get(ctx, rel.SourceID)
	if errors.Is(err, ErrMissingEntity) {
		j.missing.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	target, err := j.Index.Get(ctx, rel.TargetID)
	if errors.Is(err, ErrMissingEntity) {
		j.missing.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dump.JoinRow(rel, source, target), nil
}

// ProcessFunc returns a function that takes a relationship as JSON and returns
// the scholix link as a JSON line.
func (j *Joiner) ProcessFunc(ctx context.Context) pproc.ProcessFunc {
	return func(p []byte) ([]byte, error) {
		j.read.Add(1)
		var rel dump.Relationship
		if err := json.Unmarshal(p, &rel); err != nil {
			return nil, j.invalidRecord(p, err)
		}
		if err := rel.Validate(); err != nil {
			return nil, j.invalidRecord(p, err)
		}
		row, err := j.Join(ctx, &rel)
		if err != nil || row == nil {
			return nil, err
		}
		return j.encode(row)
	}
}

// JoinedProcessFunc returns a function that takes an already joined row, in
// flat spark layout, and returns the scholix link as a JSON line. Only the
// datasource and relation filters apply, since a joined row carries no pid
// types.
func (j *Joiner) JoinedProcessFunc() pproc.ProcessFunc {
	return func(p []byte) ([]byte, error) {
		j.read.Add(1)
		var row dump.Row
		if err := json.Unmarshal(p, &row); err != nil {
			return nil, j.invalidRecord(p, err)
		}
		rel := dump.Relationship{
			LinkProviders: row.LinkProviders,
			RelationType:  row.RelationType,
		}
		if !j.Filter.Keep(&rel) {
			j.filtered.Add(1)
			return nil, nil
		}
		return j.encode(&row)
	}
}

func (j *Joiner) encode(row *dump.Row) ([]byte, error) {
	b, err := json.Marshal(convert.DumpRowToScholix(row))
	if err != nil {
		return nil, err
	}
	j.written.Add(1)
	return append(b, '\n'), nil
}
