// Package objectstore defines the capability contract between columnar query
// engines and object storage backends: enumerate objects under a prefix,
// open a sized reader for an object, and read arbitrary byte ranges.
//
// Object paths are logical and composed as "<container>/<key>", where the
// container is the top-level namespace of the backing store (a bucket for
// S3-compatible targets, a directory for the local store). A prefix with no
// separator names a whole container.
package objectstore

import (
	"context"
	"strings"
	"time"
)

// ObjectMeta describes a single object at listing time. It is immutable once
// constructed; Size is the authority readers use to plan range reads, and is
// never re-fetched even if the remote object changes afterwards.
type ObjectMeta struct {
	// Path is the logical object path, "<container>/<key>"
	Path string
	// Size is the object size in bytes at listing time
	Size uint64
	// LastModified is the remote modification timestamp, when known
	LastModified *time.Time
}

// Store enumerates objects and hands out per-object readers.
type Store interface {
	// List enumerates objects under prefix, in the order delivered by the
	// provider. A provider failure returns a typed error and no entries;
	// partial listings are never returned silently.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// ListDir enumerates a single hierarchy level under prefix using the
	// given delimiter. Stores that do not support hierarchical listing
	// fail loudly with a capability error rather than returning empty.
	ListDir(ctx context.Context, prefix, delimiter string) ([]ObjectMeta, error)

	// Reader returns a reader for the object described by meta. No I/O is
	// performed: construction eagerly succeeds and the first read fails
	// lazily if the object is unreachable.
	Reader(meta ObjectMeta) (Reader, error)
}

// Reader reads byte ranges of a single sized object.
type Reader interface {
	// ReadRange returns exactly the bytes in [start, start+length), or all
	// bytes from start to the end of the object when length is 0. It blocks
	// until the full span is buffered or a terminal error occurs; a partial
	// buffer is never returned.
	ReadRange(start uint64, length int) ([]byte, error)

	// Size returns the object size captured at construction, without I/O.
	Size() uint64
}

// SplitPath partitions a logical path into (container, rest) at the first
// separator. A path with no separator is all container, empty rest.
func SplitPath(path string) (container, rest string) {
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}
