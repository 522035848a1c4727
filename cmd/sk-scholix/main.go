// sk-scholix converts a scholexplorer dump into Scholix links, written as
// gzip compressed JSON lines into an output directory.
//
// $ sk-scholix -datasource-filter datacite /data/dump /data/scholix
//
// The dump directory is expected to contain "relationships" and "entities",
// each a directory of (optionally gzip or zstd compressed) JSON lines files.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/miku/scholixdump"
	"github.com/miku/scholixdump/config"
	"github.com/miku/scholixdump/join"
	"github.com/miku/scholixdump/logging"
	"github.com/miku/scholixdump/pproc"
	"github.com/miku/scholixdump/xio"
	log "github.com/sirupsen/logrus"
)

var help = `sk-scholix turns a scholexplorer dump into Scholix links

Reads DUMP_PATH/relationships and DUMP_PATH/entities, joins them on the dnet
identifier and writes one Scholix document per line into gzip compressed part
files under SCHOLIX_PATH, which is removed first, if it exists.

Most options can also be set via SCHOLIX_* environment variables, e.g.
SCHOLIX_WORKERS, SCHOLIX_INDEX, SCHOLIX_LOG_LEVEL.

Examples:

    $ sk-scholix /data/dump /data/scholix
    $ sk-scholix -relation-filter references -index sqlite /data/dump /data/scholix
    $ zcat joined.json.gz | sk-scholix -j > scholix.json

Usage:

    sk-scholix [flags] DUMP_PATH SCHOLIX_PATH
    sk-scholix -j [flags] < joined.json

`

var errUsage = errors.New("expected DUMP_PATH and SCHOLIX_PATH")

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	var (
		datasourceFilter = flag.String("datasource-filter", cfg.DatasourceFilter, "keep links from this datasource only")
		relationFilter   = flag.String("relation-filter", cfg.RelationFilter, "keep links of this relation type only")
		sourcePidFilter  = flag.String("source-pid-filter", cfg.SourcePidFilter, "keep links with this source pid type only")
		targetPidFilter  = flag.String("target-pid-filter", cfg.TargetPidFilter, "keep links with this target pid type only")
		numWorkers       = flag.Int("w", cfg.Workers, "number of workers")
		batchSize        = flag.Int("b", cfg.BatchSize, "batch size")
		recordsPerPart   = flag.Int64("n", cfg.RecordsPerPart, "max records per output part file, 0 for a single file")
		indexKind        = flag.String("index", cfg.Index, "entity index for the join: memory, sqlite")
		indexDir         = flag.String("index-dir", cfg.IndexDir, "directory for the sqlite index")
		keepIndex        = flag.Bool("keep-index", cfg.KeepIndex, "keep sqlite index file after the run")
		skipInvalid      = flag.Bool("skip-invalid", cfg.SkipInvalid, "log and skip invalid records instead of failing")
		joined           = flag.Bool("j", false, "read already joined rows (s_/t_ columns) from stdin, write scholix to stdout")
		logLevel         = flag.String("loglevel", cfg.LogLevel, "log level")
		logFormat        = flag.String("logformat", cfg.LogFormat, "log format: text, json")
		logFile          = flag.String("logfile", cfg.LogFile, "log to this file, rotated")
		showVersion      = flag.Bool("version", false, "show version")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, help)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVersion {
		fmt.Println(scholixdump.Version)
		return nil
	}
	cfg.DatasourceFilter = *datasourceFilter
	cfg.RelationFilter = *relationFilter
	cfg.SourcePidFilter = *sourcePidFilter
	cfg.TargetPidFilter = *targetPidFilter
	cfg.Workers = *numWorkers
	cfg.BatchSize = *batchSize
	cfg.RecordsPerPart = *recordsPerPart
	cfg.Index = *indexKind
	cfg.IndexDir = *indexDir
	cfg.KeepIndex = *keepIndex
	cfg.SkipInvalid = *skipInvalid
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat
	cfg.LogFile = *logFile
	if err := cfg.Validate(); err != nil {
		return err
	}
	closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *joined {
		return runJoined(ctx, cfg)
	}
	if flag.NArg() != 2 {
		flag.Usage()
		return errUsage
	}
	dumpPath := strings.TrimRight(flag.Arg(0), "/")
	opts := join.DefaultOptions(dumpPath, flag.Arg(1))
	opts.Filter = cfg.Filter()
	opts.Workers = cfg.Workers
	opts.BatchSize = cfg.BatchSize
	opts.RecordsPerPart = cfg.RecordsPerPart
	opts.IndexKind = cfg.Index
	opts.IndexDir = cfg.IndexDir
	opts.KeepIndex = cfg.KeepIndex
	opts.SkipInvalid = cfg.SkipInvalid
	opts.Opener = &xio.Opener{MaxRetries: cfg.HTTPRetries, Timeout: cfg.HTTPTimeout}
	if opts.IndexKind == join.IndexSQLite {
		if err := os.MkdirAll(opts.IndexDir, 0755); err != nil {
			return err
		}
	}
	_, err = join.Convert(ctx, opts)
	return err
}

// runJoined converts flat joined rows from stdin to scholix lines on stdout.
func runJoined(ctx context.Context, cfg *config.Config) error {
	f := cfg.Filter()
	if f.SourcePidType != "" || f.TargetPidType != "" {
		return errors.New("pid type filters need the relationships dataset, not supported with -j")
	}
	j := &join.Joiner{Filter: f, SkipInvalid: cfg.SkipInvalid}
	bw := bufio.NewWriter(os.Stdout)
	proc := pproc.NewProcessor(j.JoinedProcessFunc(),
		pproc.WithWorkers(cfg.Workers),
		pproc.WithBatchSize(cfg.BatchSize))
	if err := proc.Process(ctx, os.Stdin, bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	log.WithFields(j.Stats().Fields()).Info("done")
	return nil
}
