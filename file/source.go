// Package file reads newline delimited JSON records from local files and
// provides a datalake.Store backed by a local directory.
package file

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sparkify/datalake"
	"github.com/sparkify/datalake/json"
)

// Source is a datalake.Source which reads json objects from files on disk.
type Source struct {
	datalake.Source
	rawSource *RawSource
}

// SrcOption is a functional option for the file Source.
type SrcOption func(s *Source) error

// OptSrcPath sets the file, directory or glob pattern to use for source data.
// Directories are walked recursively.
func OptSrcPath(pathname string) SrcOption {
	return func(s *Source) (err error) {
		s.rawSource, err = NewRawSource(pathname)
		if err != nil {
			return errors.Wrap(err, "getting raw source")
		}
		return nil
	}
}

// NewSource gets a new file source which will read json data from a file, all
// files under a directory, or all files matching a glob.
func NewSource(opts ...SrcOption) (*Source, error) {
	s := &Source{}
	for _, opt := range opts {
		err := opt(s)
		if err != nil {
			return nil, err
		}
	}
	if s.rawSource == nil {
		return nil, datalake.ConfigErrorf("file source needs a path")
	}
	s.Source = json.NewSourceFromRawSource(s.rawSource)
	return s, nil
}

// Close closes the file currently being read.
func (s *Source) Close() error {
	if c, ok := s.Source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Files returns the names of the files the source reads, in order.
func (s *Source) Files() []string {
	return s.rawSource.files
}

// RawSource is a datalake.RawSource over a fixed, sorted list of files.
type RawSource struct {
	files   []string
	fileIdx *uint64
}

// NewRawSource lists the files named by pathname, which can be a single
// file, a directory (walked recursively) or a glob pattern. Files whose names
// start with "." or "_" are ignored, so markers like _SUCCESS aren't read as
// data. It is an error for pathname to name no files at all.
func NewRawSource(pathname string) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		fileIdx: &fileIdx,
	}
	var err error
	if hasMeta(pathname) {
		s.files, err = globFiles(pathname)
	} else {
		s.files, err = walkFiles(pathname)
	}
	if err != nil {
		return nil, err
	}
	if len(s.files) == 0 {
		return nil, errors.Errorf("no files found at '%s'", pathname)
	}
	return s, nil
}

func hasMeta(pathname string) bool {
	return strings.ContainsAny(pathname, `*?[`)
}

func globFiles(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "bad pattern '%s'", pattern)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		more, err := walkFiles(m)
		if err != nil {
			return nil, err
		}
		files = append(files, more...)
	}
	sort.Strings(files)
	return files, nil
}

func walkFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != root && ignored(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", root)
	}
	sort.Strings(files)
	return files, nil
}

func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

type metaFile struct {
	*os.File
}

func (m *metaFile) Name() string {
	return filepath.Base(m.File.Name())
}

func (m *metaFile) Meta() map[string]interface{} {
	return map[string]interface{}{"path": m.File.Name()}
}

// NextReader implements datalake.RawSource.
func (s *RawSource) NextReader() (datalake.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	file, err := os.Open(s.files[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", s.files[idx])
	}

	mf := metaFile{file}
	return &mf, nil
}
