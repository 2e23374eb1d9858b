package file

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pilosa/dsk"
	"github.com/pilosa/dsk/json"
	"github.com/pkg/errors"
)

// NewSource gets a dsk.Source which reads json encoded examples from a file or
// all files in a directory.
func NewSource(pathname string) (dsk.Source, error) {
	rs, err := NewRawSource(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "getting raw source")
	}
	return json.NewSourceFromRawSource(rs), nil
}

// RawSource is a dsk.RawSource over a file, or the files in a directory in
// name order. Subdirectories are skipped. It is safe for concurrent use.
type RawSource struct {
	files   []string
	fileIdx *uint64
}

// NewRawSource gets a RawSource for the file or directory at pathname.
func NewRawSource(pathname string) (*RawSource, error) {
	fileIdx := uint64(0)
	s := &RawSource{
		fileIdx: &fileIdx,
	}
	info, err := os.Stat(pathname)
	if err != nil {
		return nil, errors.Wrap(err, "statting path")
	}
	if info.IsDir() {
		entries, err := os.ReadDir(pathname)
		if err != nil {
			return nil, errors.Wrap(err, "reading directory")
		}
		s.files = make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			s.files = append(s.files, filepath.Join(pathname, entry.Name()))
		}
	} else {
		s.files = []string{pathname}
	}
	return s, nil
}

// Files returns the paths the RawSource reads, in order.
func (s *RawSource) Files() []string {
	ret := make([]string, len(s.files))
	copy(ret, s.files)
	return ret
}

type namedFile struct {
	*os.File
}

func (m *namedFile) Name() string {
	return filepath.Base(m.File.Name())
}

// NextReader implements dsk.RawSource.
func (s *RawSource) NextReader() (dsk.NamedReadCloser, error) {
	idx := atomic.AddUint64(s.fileIdx, 1) - 1
	if int(idx) >= len(s.files) {
		return nil, io.EOF
	}

	file, err := os.Open(s.files[idx])
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", s.files[idx])
	}

	return &namedFile{file}, nil
}
