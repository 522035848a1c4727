// Package join joins relationships with their source and target entities
// and turns the joined rows into scholix links.
//
// Entities are loaded into an Index first, keyed by their dnet identifier,
// then relationships are streamed, filtered and looked up against the index.
// This is an inner join: relationships with a missing side are dropped.
package join

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/miku/scholixdump/schema/dump"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

var ErrMissingEntity = errors.New("missing entity")

// Index stores entities by dnet identifier.
type Index interface {
	// Put adds an entity, replacing any entity with the same identifier.
	Put(ctx context.Context, e *dump.Entity) error
	// Get returns the entity for an identifier or ErrMissingEntity.
	Get(ctx context.Context, id string) (*dump.Entity, error)
	// Len returns the number of entities.
	Len(ctx context.Context) (int, error)
	Close() error
}

// MemoryIndex keeps all entities in a map.
type MemoryIndex struct {
	mu sync.RWMutex
	m  map[string]*dump.Entity
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{m: make(map[string]*dump.Entity)}
}

func (idx *MemoryIndex) Put(_ context.Context, e *dump.Entity) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.m[e.DnetIdentifier] = e
	return nil
}

func (idx *MemoryIndex) Get(_ context.Context, id string) (*dump.Entity, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.m[id]
	if !ok {
		return nil, ErrMissingEntity
	}
	return e, nil
}

func (idx *MemoryIndex) Len(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.m), nil
}

func (idx *MemoryIndex) Close() error { return nil }

// batchPutter is implemented by indices that can add many entities at once.
type batchPutter interface {
	PutBatch(ctx context.Context, es []*dump.Entity) error
}

// LoadOptions control entity loading.
type LoadOptions struct {
	BatchSize   int  // entities per write batch, for indices that support it
	SkipInvalid bool // log and skip undecodable entities instead of failing
}

// LoadIndex reads JSON lines entities from r into idx and returns the number
// of entities read.
func LoadIndex(ctx context.Context, r io.Reader, idx Index, opts LoadOptions) (int64, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10000
	}
	scanner := bufio.NewScanner(r)
	bp, ok := idx.(batchPutter)
	var (
		batch   []*dump.Entity
		n       int64
		lineNum int64
	)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := bp.PutBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var e dump.Entity
		err := json.Unmarshal(line, &e)
		if err == nil {
			err = e.Validate()
		}
		if err != nil {
			if opts.SkipInvalid {
				log.WithFields(log.Fields{
					"line":  lineNum,
					"error": err,
				}).Warn("skipping invalid entity")
				continue
			}
			return n, fmt.Errorf("entity at line %d: %w", lineNum, err)
		}
		n++
		if ok {
			batch = append(batch, &e)
			if len(batch) >= opts.BatchSize {
				if err := flush(); err != nil {
					return n, err
				}
			}
			continue
		}
		if err := idx.Put(ctx, &e); err != nil {
			return n, err
		}
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}
	if ok {
		if err := flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}
