// Package pproc processes newline delimited records in parallel.
package pproc

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize     = 10000
	defaultMaxBufferSize = 1 << 20 // 1MB, initial buffer
	defaultMaxTokenSize  = 1 << 26 // 64MB, largest single record
)

// ProcessFunc transforms a single record. It returns nil to drop a record.
// Results are written as is, so they usually end with a newline.
type ProcessFunc func([]byte) ([]byte, error)

// ProcessorOption allows configuration of the Processor
type ProcessorOption func(*Processor)

// WithWorkers sets the number of worker goroutines
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.numWorkers = n
		}
	}
}

// WithBatchSize sets the number of records handed to a worker at once.
func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithMaxTokenSize sets the maximum size of a single record.
func WithMaxTokenSize(size int) ProcessorOption {
	return func(p *Processor) {
		if size > 0 {
			p.maxTokenSize = size
		}
	}
}

// WithSplitFunc sets the function to delineate records, bufio.ScanLines by default.
func WithSplitFunc(f bufio.SplitFunc) ProcessorOption {
	return func(p *Processor) {
		p.splitFunc = f
	}
}

// Processor reads records, processes batches of them in parallel and writes
// the results. Output order is not guaranteed to match input order.
type Processor struct {
	splitFunc     bufio.SplitFunc
	processFunc   ProcessFunc
	numWorkers    int
	batchSize     int
	maxBufferSize int
	maxTokenSize  int
}

// NewProcessor creates a new Processor that by default splits on lines.
func NewProcessor(processFunc ProcessFunc, opts ...ProcessorOption) *Processor {
	p := &Processor{
		splitFunc:     bufio.ScanLines,
		processFunc:   processFunc,
		numWorkers:    runtime.NumCPU(),
		batchSize:     defaultBatchSize,
		maxBufferSize: defaultMaxBufferSize,
		maxTokenSize:  defaultMaxTokenSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxBufferSize > p.maxTokenSize {
		p.maxBufferSize = p.maxTokenSize
	}
	return p
}

// Process reads from r, processes batches in parallel and writes results to
// w. Blank records are skipped. The first error stops processing.
func (p *Processor) Process(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Split(p.splitFunc)
	scanner.Buffer(make([]byte, 0, p.maxBufferSize), p.maxTokenSize)
	var (
		batches = make(chan [][]byte, p.numWorkers*2)
		writeMu sync.Mutex
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		batch := make([][]byte, 0, p.batchSize)
		for scanner.Scan() {
			token := bytes.TrimSpace(scanner.Bytes())
			if len(token) == 0 {
				continue
			}
			data := make([]byte, len(token))
			copy(data, token)
			batch = append(batch, data)
			if len(batch) < p.batchSize {
				continue
			}
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
			batch = make([][]byte, 0, p.batchSize)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < p.numWorkers; i++ {
		g.Go(func() error {
			var buf bytes.Buffer
			for batch := range batches {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				buf.Reset()
				for _, data := range batch {
					result, err := p.processFunc(data)
					if err != nil {
						return err
					}
					buf.Write(result)
				}
				if buf.Len() == 0 {
					continue
				}
				writeMu.Lock()
				_, err := w.Write(buf.Bytes())
				writeMu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
