// Package s3 implements the objectstore contract for Amazon S3 and
// S3-compatible targets such as MinIO and Ceph.
package s3

import (
	"context"
	stderrors "errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/pkg/config"
	"github.com/quarrydata/quarry/pkg/errors"
	"github.com/quarrydata/quarry/pkg/logger"
	"github.com/quarrydata/quarry/pkg/metrics"
	"github.com/quarrydata/quarry/pkg/objectstore"
)

// Store lists objects in S3-compatible storage and hands out range readers.
// The configuration is copied at construction and never mutated afterwards;
// readers derived from the store share it read-only.
type Store struct {
	cfg    config.StoreConfig
	client *lazyClient
	logger *zap.Logger
}

var _ objectstore.Store = (*Store)(nil)

// New creates a store from the given configuration. No remote calls are
// made; the provider client is built lazily on first use.
func New(cfg config.StoreConfig) (*Store, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Store{
		cfg:    cfg,
		client: newLazyClient(cfg),
		logger: logger.With(zap.String("store", cfg.Name)),
	}, nil
}

// List enumerates objects under prefix. The prefix is partitioned into
// (bucket, sub-prefix) at the first path separator; a prefix with no
// separator names a whole bucket. Listing paginates until the provider
// signals no more pages, so results are never silently truncated. On
// provider failure no entries are returned.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.ObjectMeta, error) {
	bucket, subPrefix := objectstore.SplitPath(prefix)

	client, err := s.client.get(ctx)
	if err != nil {
		metrics.ObserveList(s.cfg.Name, "failure", 0)
		return nil, err
	}

	paginator := awss3.NewListObjectsV2Paginator(client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(subPrefix),
	})

	var entries []objectstore.ObjectMeta
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.ObserveList(s.cfg.Name, "failure", 0)
			return nil, wrapProvider(err, errors.ErrorTypeConnection, "failed to list objects").
				WithDetail("bucket", bucket).
				WithDetail("prefix", subPrefix)
		}

		for _, obj := range page.Contents {
			entries = append(entries, objectstore.ObjectMeta{
				Path:         bucket + "/" + aws.ToString(obj.Key),
				Size:         uint64(aws.ToInt64(obj.Size)),
				LastModified: obj.LastModified,
			})
		}
	}

	metrics.ObserveList(s.cfg.Name, "success", len(entries))
	s.logger.Debug("listed objects",
		zap.String("bucket", bucket),
		zap.String("prefix", subPrefix),
		zap.Int("entries", len(entries)))

	return entries, nil
}

// ListDir is not supported for S3-compatible stores. It fails loudly so a
// caller expecting hierarchical enumeration never mistakes the gap for an
// empty result.
func (s *Store) ListDir(ctx context.Context, prefix, delimiter string) ([]objectstore.ObjectMeta, error) {
	return nil, errors.New(errors.ErrorTypeCapability, "hierarchical directory listing not implemented").
		WithDetail("prefix", prefix).
		WithDetail("delimiter", delimiter)
}

// Reader returns a range reader for the object described by meta. No I/O is
// performed here; an unreachable object surfaces on the first read.
func (s *Store) Reader(meta objectstore.ObjectMeta) (objectstore.Reader, error) {
	return newRangeReader(s.cfg, meta, s.client, s.logger), nil
}

// wrapProvider wraps a provider error, preserving the structured error code
// and message as details alongside the textual cause.
func wrapProvider(err error, errType errors.ErrorType, message string) *errors.Error {
	e := errors.Wrap(err, errType, message)

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		e = e.WithDetail("code", apiErr.ErrorCode()).
			WithDetail("provider_message", apiErr.ErrorMessage())
	}

	return e
}
