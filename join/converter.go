package join

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/miku/scholixdump/filter"
	"github.com/miku/scholixdump/pproc"
	"github.com/miku/scholixdump/xio"
	log "github.com/sirupsen/logrus"
)

const (
	IndexMemory = "memory"
	IndexSQLite = "sqlite"
)

// Options configure a dump conversion.
type Options struct {
	RelationshipsPath string // file, directory or URL
	EntitiesPath      string // file, directory or URL
	TargetPath        string // output directory, replaced if it exists
	Filter            filter.Filter
	Workers           int
	BatchSize         int
	RecordsPerPart    int64
	IndexKind         string // memory or sqlite
	IndexDir          string // where to put the sqlite index
	KeepIndex         bool   // keep the sqlite index file after the run
	SkipInvalid       bool
	Opener            *xio.Opener
}

// DefaultOptions returns options for a dump directory, which is expected to
// contain "relationships" and "entities".
func DefaultOptions(dumpPath, targetPath string) Options {
	return Options{
		RelationshipsPath: dumpPath + "/relationships",
		EntitiesPath:      dumpPath + "/entities",
		TargetPath:        targetPath,
		Workers:           runtime.NumCPU(),
		BatchSize:         10000,
		RecordsPerPart:    1000000,
		IndexKind:         IndexMemory,
		IndexDir:          os.TempDir(),
		Opener:            &xio.Opener{},
	}
}

func (opts Options) openIndex() (Index, error) {
	switch opts.IndexKind {
	case "", IndexMemory:
		return NewMemoryIndex(), nil
	case IndexSQLite:
		f, err := os.CreateTemp(opts.IndexDir, "scholix-entities-*.db")
		if err != nil {
			return nil, err
		}
		name := f.Name()
		if err := f.Close(); err != nil {
			return nil, err
		}
		idx, err := OpenSQLiteIndex(name)
		if err != nil {
			return nil, err
		}
		idx.Remove = !opts.KeepIndex
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index kind: %s", opts.IndexKind)
	}
}

// Convert joins relationships and entities and writes scholix links as gzip
// compressed JSON lines into part files under the target path.
func Convert(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats
	if opts.Opener == nil {
		opts.Opener = &xio.Opener{}
	}
	started := time.Now()
	idx, err := opts.openIndex()
	if err != nil {
		return stats, fmt.Errorf("index: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			log.WithError(err).Warn("failed to close index")
		}
	}()
	// Stage 1: load entities.
	files, err := xio.ListFiles(opts.EntitiesPath)
	if err != nil {
		return stats, fmt.Errorf("entities: %w", err)
	}
	log.WithFields(log.Fields{
		"files": len(files),
		"index": opts.IndexKind,
	}).Info("loading entities")
	r := opts.Opener.MultiReader(files)
	n, err := LoadIndex(ctx, r, idx, LoadOptions{
		BatchSize:   opts.BatchSize,
		SkipInvalid: opts.SkipInvalid,
	})
	r.Close()
	if err != nil {
		return stats, fmt.Errorf("entities: %w", err)
	}
	log.WithFields(log.Fields{
		"entities": n,
		"elapsed":  time.Since(started).String(),
	}).Info("entities loaded")
	// Stage 2: stream relationships, join, convert and write.
	files, err = xio.ListFiles(opts.RelationshipsPath)
	if err != nil {
		return stats, fmt.Errorf("relationships: %w", err)
	}
	if err := xio.PrepareOutputDir(opts.TargetPath); err != nil {
		return stats, fmt.Errorf("output: %w", err)
	}
	w := xio.NewPartWriter(opts.TargetPath, opts.RecordsPerPart)
	log.WithFields(log.Fields{
		"files":   len(files),
		"filter":  opts.Filter.String(),
		"run_id":  w.RunID(),
		"target":  filepath.Clean(opts.TargetPath),
		"workers": opts.Workers,
	}).Info("converting relationships")
	j := &Joiner{Index: idx, Filter: opts.Filter, SkipInvalid: opts.SkipInvalid}
	proc := pproc.NewProcessor(j.ProcessFunc(ctx),
		pproc.WithWorkers(opts.Workers),
		pproc.WithBatchSize(opts.BatchSize))
	r = opts.Opener.MultiReader(files)
	defer r.Close()
	if err := proc.Process(ctx, r, w); err != nil {
		if aerr := w.Abort(); aerr != nil {
			log.WithError(aerr).Warn("failed to close partial output")
		}
		return j.Stats(), fmt.Errorf("relationships: %w", err)
	}
	if err := w.Close(); err != nil {
		return j.Stats(), fmt.Errorf("output: %w", err)
	}
	stats = j.Stats()
	stats.Entities = n
	log.WithFields(stats.Fields()).WithField("elapsed", time.Since(started).String()).Info("conversion done")
	return stats, nil
}
