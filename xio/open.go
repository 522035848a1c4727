// Package xio opens dump inputs and writes compressed part files.
package xio

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
	"github.com/sethgrid/pester"
)

// Opener opens local files or remote locations. The zero value works, with
// pester defaults.
type Opener struct {
	MaxRetries int
	Timeout    time.Duration
}

// IsRemote returns true for http and https locations.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open opens a file or URL, transparently decompressing gzip and zstd, based
// on the suffix.
func (o *Opener) Open(location string) (io.ReadCloser, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if IsRemote(location) {
		rc, err = o.fetch(location)
	} else {
		rc, err = os.Open(location)
	}
	if err != nil {
		return nil, err
	}
	return decompress(location, rc)
}

func (o *Opener) fetch(link string) (io.ReadCloser, error) {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.RetryOnHTTP429 = true
	if o.MaxRetries > 0 {
		client.MaxRetries = o.MaxRetries
	}
	if o.Timeout > 0 {
		client.Timeout = o.Timeout
	}
	req, err := http.NewRequest("GET", link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", link, resp.Status)
	}
	return resp.Body, nil
}

// readCloser closes both the decompressor and the underlying file.
type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var err error
	for _, f := range r.closers {
		if e := f(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			rc.Close,
		}}, nil
	default:
		return rc, nil
	}
}

// ListFiles returns the data files of a location. A remote location or a
// plain file is returned as is. For a directory, all regular files are
// returned, sorted, except hidden files and files starting with an underscore,
// like _SUCCESS markers.
func ListFiles(location string) ([]string, error) {
	if IsRemote(location) {
		return []string{location}, nil
	}
	fi, err := os.Stat(location)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{location}, nil
	}
	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		files = append(files, filepath.Join(location, name))
	}
	sort.Strings(files)
	return files, nil
}

// MultiReader returns the concatenation of all files as a single stream. Files
// are opened one at a time, when the previous one is exhausted. A newline is
// inserted after each file, since files may lack a final newline.
func (o *Opener) MultiReader(files []string) io.ReadCloser {
	return &multiFileReader{opener: o, files: files}
}

type multiFileReader struct {
	opener    *Opener
	files     []string
	i         int
	cur       io.ReadCloser
	pendingNL bool
}

func (r *multiFileReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if r.pendingNL {
			r.pendingNL = false
			p[0] = '\n'
			return 1, nil
		}
		if r.cur == nil {
			if r.i >= len(r.files) {
				return 0, io.EOF
			}
			rc, err := r.opener.Open(r.files[r.i])
			if err != nil {
				return 0, fmt.Errorf("open %s: %w", r.files[r.i], err)
			}
			r.cur = rc
			r.i++
		}
		n, err := r.cur.Read(p)
		if err == io.EOF {
			if cerr := r.cur.Close(); cerr != nil {
				return n, cerr
			}
			r.cur = nil
			r.pendingNL = true
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (r *multiFileReader) Close() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}
