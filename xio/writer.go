package xio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	gzip "github.com/klauspost/pgzip"
	"github.com/segmentio/encoding/json"
	log "github.com/sirupsen/logrus"
)

// SuccessFile marks a completed output directory.
const SuccessFile = "_SUCCESS"

var ErrClosed = errors.New("writer closed")

// PrepareOutputDir removes any existing output at dir and creates an empty
// directory in its place.
func PrepareOutputDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		log.WithField("dir", dir).Info("removing existing output")
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, 0755)
}

// Manifest is written to the success file when a writer is closed.
type Manifest struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Parts    []string  `json:"parts"`
	Records  int64     `json:"records"`
}

// PartWriter writes newline delimited records into gzip compressed part files
// (part-00000.gz, part-00001.gz, ...) in a directory, starting a new part
// after a given number of records. Each call to Write must contain complete
// lines. Safe for concurrent use.
type PartWriter struct {
	Dir            string
	RecordsPerPart int64 // zero means a single part

	mu      sync.Mutex
	runID   string
	started time.Time
	f       *os.File
	zw      *gzip.Writer
	bw      *bufio.Writer
	parts   []string
	inPart  int64
	records int64
	closed  bool
}

// NewPartWriter returns a writer for dir, which must exist.
func NewPartWriter(dir string, recordsPerPart int64) *PartWriter {
	return &PartWriter{
		Dir:            dir,
		RecordsPerPart: recordsPerPart,
		runID:          uuid.New().String(),
		started:        time.Now(),
	}
}

// RunID identifies this run in logs and in the manifest.
func (w *PartWriter) RunID() string {
	return w.runID
}

// Records returns the number of records written so far.
func (w *PartWriter) Records() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

func (w *PartWriter) openPart() error {
	name := fmt.Sprintf("part-%05d.gz", len(w.parts))
	f, err := os.Create(filepath.Join(w.Dir, name))
	if err != nil {
		return err
	}
	w.f = f
	w.zw = gzip.NewWriter(f)
	w.bw = bufio.NewWriter(w.zw)
	w.parts = append(w.parts, name)
	w.inPart = 0
	return nil
}

func (w *PartWriter) closePart() error {
	if w.f == nil {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if err := w.zw.Close(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return err
	}
	w.f, w.zw, w.bw = nil, nil, nil
	return nil
}

// Write writes one or more complete lines. A new part is started whenever the
// current one reaches RecordsPerPart, also in the middle of p.
func (w *PartWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	var written int
	for len(p) > 0 {
		if w.f == nil {
			if err := w.openPart(); err != nil {
				return written, err
			}
		}
		chunk, lines := p, int64(bytes.Count(p, []byte{'\n'}))
		if w.RecordsPerPart > 0 && w.inPart+lines > w.RecordsPerPart {
			chunk = p[:lineOffset(p, w.RecordsPerPart-w.inPart)]
			lines = w.RecordsPerPart - w.inPart
		}
		n, err := w.bw.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		w.inPart += lines
		w.records += lines
		p = p[len(chunk):]
		if w.RecordsPerPart > 0 && w.inPart >= w.RecordsPerPart {
			if err := w.closePart(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// lineOffset returns the offset just after the n-th newline in p.
func lineOffset(p []byte, n int64) int {
	var offset int
	for ; n > 0; n-- {
		i := bytes.IndexByte(p[offset:], '\n')
		if i < 0 {
			return len(p)
		}
		offset += i + 1
	}
	return offset
}

// Abort closes the current part without writing the success file.
func (w *PartWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.closePart()
}

// Close finishes the current part and writes the success file.
func (w *PartWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.closePart(); err != nil {
		return err
	}
	m := Manifest{
		RunID:    w.runID,
		Started:  w.started,
		Finished: time.Now(),
		Parts:    w.parts,
		Records:  w.records,
	}
	if m.Parts == nil {
		m.Parts = []string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.Dir, SuccessFile), append(b, '\n'), 0644)
}
