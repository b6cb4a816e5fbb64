// Package local implements the objectstore contract over a rooted directory
// tree, for engine tests and offline development. The first element of a
// logical path is the container, mapped to a directory under the root.
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/quarrydata/quarry/pkg/errors"
	"github.com/quarrydata/quarry/pkg/logger"
	"github.com/quarrydata/quarry/pkg/objectstore"
)

// Store lists and reads objects under a root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

var _ objectstore.Store = (*Store)(nil)

// New creates a store rooted at dir. The directory must exist.
func New(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "store root is not accessible")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrorTypeConfig, "store root is not a directory").
			WithDetail("root", dir)
	}

	return &Store{
		root:   dir,
		logger: logger.With(zap.String("store", "local"), zap.String("root", dir)),
	}, nil
}

// List walks the container directory and returns every regular file whose
// key matches the sub-prefix, in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ObjectMeta, error) {
	container, subPrefix := objectstore.SplitPath(prefix)

	containerDir := filepath.Join(s.root, container)
	if _, err := os.Stat(containerDir); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "container does not exist").
			WithDetail("container", container)
	}

	var entries []objectstore.ObjectMeta
	err := filepath.WalkDir(containerDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(containerDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, subPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		modified := info.ModTime()
		entries = append(entries, objectstore.ObjectMeta{
			Path:         container + "/" + key,
			Size:         uint64(info.Size()),
			LastModified: &modified,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to walk container")
	}

	return entries, nil
}

// ListDir enumerates a single hierarchy level under prefix: the regular
// files that are immediate children of the directory the prefix names.
func (s *Store) ListDir(ctx context.Context, prefix, delimiter string) ([]objectstore.ObjectMeta, error) {
	if delimiter != "/" {
		return nil, errors.New(errors.ErrorTypeCapability, "only the / delimiter is supported").
			WithDetail("delimiter", delimiter)
	}

	container, subPrefix := objectstore.SplitPath(prefix)
	dir := filepath.Join(s.root, container, filepath.FromSlash(subPrefix))

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "directory does not exist").
			WithDetail("prefix", prefix)
	}

	var entries []objectstore.ObjectMeta
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to stat entry")
		}
		modified := info.ModTime()
		entries = append(entries, objectstore.ObjectMeta{
			Path:         path.Join(container, subPrefix, de.Name()),
			Size:         uint64(info.Size()),
			LastModified: &modified,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return entries, nil
}

// Reader returns a reader for meta. The file is opened lazily on first read.
func (s *Store) Reader(meta objectstore.ObjectMeta) (objectstore.Reader, error) {
	return &fileReader{
		path: filepath.Join(s.root, filepath.FromSlash(meta.Path)),
		meta: meta,
	}, nil
}

// fileReader reads byte ranges of a single file.
type fileReader struct {
	path string
	meta objectstore.ObjectMeta
}

var _ objectstore.Reader = (*fileReader)(nil)

func (r *fileReader) ReadRange(start uint64, length int) ([]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "object does not exist").
			WithDetail("object", r.meta.Path)
	}
	defer f.Close()

	if start > 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to stat object")
		}
		if start >= uint64(info.Size()) {
			return nil, errors.New(errors.ErrorTypeData, "range start past end of object").
				WithDetail("object", r.meta.Path).
				WithDetail("start", start).
				WithDetail("size", info.Size())
		}
		if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to seek to range start")
		}
	}

	if length == 0 {
		buf, err := io.ReadAll(f)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read object")
		}
		return buf, nil
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "range extends past end of object").
			WithDetail("object", r.meta.Path).
			WithDetail("start", start).
			WithDetail("length", length)
	}
	return buf, nil
}

func (r *fileReader) Size() uint64 {
	return r.meta.Size
}
