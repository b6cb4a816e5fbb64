package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/pkg/config"
	"github.com/quarrydata/quarry/pkg/errors"
	"github.com/quarrydata/quarry/pkg/metrics"
	"github.com/quarrydata/quarry/pkg/objectstore"
)

// RangeReader reads byte ranges of a single S3 object through a blocking
// call. The Go SDK client is natively synchronous and goroutine-safe, so no
// per-call worker thread or handoff channel is needed; each read runs under
// a context bounded by the configured read timeout, and exceeding the
// ceiling cancels the underlying request rather than abandoning it.
type RangeReader struct {
	cfg    config.StoreConfig
	meta   objectstore.ObjectMeta
	client *lazyClient
	logger *zap.Logger
}

var _ objectstore.Reader = (*RangeReader)(nil)

func newRangeReader(cfg config.StoreConfig, meta objectstore.ObjectMeta, client *lazyClient, log *zap.Logger) *RangeReader {
	return &RangeReader{
		cfg:    cfg,
		meta:   meta,
		client: client,
		logger: log.With(zap.String("object", meta.Path)),
	}
}

// ReadRange returns exactly the bytes in [start, start+length), or all bytes
// from start to the end of the object when length is 0. It blocks until the
// span is fully buffered, the read timeout elapses, or the provider fails.
// A partial buffer is never returned.
func (r *RangeReader) ReadRange(start uint64, length int) ([]byte, error) {
	began := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ReadTimeout)
	defer cancel()

	buf, err := r.read(ctx, start, length)
	if err != nil {
		status := "failure"
		if errors.IsType(err, errors.ErrorTypeTimeout) {
			status = "timeout"
		}
		metrics.ObserveRead(r.cfg.Name, status, 0, time.Since(began))
		return nil, err
	}

	metrics.ObserveRead(r.cfg.Name, "success", len(buf), time.Since(began))
	r.logger.Debug("range read",
		zap.Uint64("start", start),
		zap.Int("length", length),
		zap.Int("bytes", len(buf)),
		zap.Duration("duration", time.Since(began)))

	return buf, nil
}

func (r *RangeReader) read(ctx context.Context, start uint64, length int) ([]byte, error) {
	client, err := r.client.get(ctx)
	if err != nil {
		return nil, err
	}

	bucket, key := objectstore.SplitPath(r.meta.Path)

	in := &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	// HTTP byte ranges are inclusive
	if length > 0 {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-%d", start, start+uint64(length)-1))
	} else if start > 0 {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-", start))
	}

	out, err := client.GetObject(ctx, in)
	if err != nil {
		return nil, r.classify(ctx, err, "failed to get object")
	}
	defer out.Body.Close()

	buf, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, r.classify(ctx, err, "failed to read object body")
	}

	if length > 0 && len(buf) != length {
		return nil, errors.New(errors.ErrorTypeData, "provider returned a short range").
			WithDetail("object", r.meta.Path).
			WithDetail("requested", length).
			WithDetail("returned", len(buf))
	}

	return buf, nil
}

// classify separates a deadline hit from a provider failure. The timeout
// error carries the configured ceiling; everything else keeps the
// provider's structured detail.
func (r *RangeReader) classify(ctx context.Context, err error, message string) error {
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.New(errors.ErrorTypeTimeout, "range read exceeded the wait ceiling").
			WithDetail("object", r.meta.Path).
			WithDetail("ceiling", r.cfg.ReadTimeout.String())
	}
	return wrapProvider(err, errors.ErrorTypeConnection, message).
		WithDetail("object", r.meta.Path)
}

// Size returns the object size captured at listing time. No I/O is
// performed and the value never reflects later remote mutation.
func (r *RangeReader) Size() uint64 {
	return r.meta.Size
}
