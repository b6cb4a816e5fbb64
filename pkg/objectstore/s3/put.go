package s3

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/pkg/errors"
	"github.com/quarrydata/quarry/pkg/objectstore"
)

// Put uploads body to the given logical path, using multipart upload for
// large bodies. It is the write-side counterpart used to seed containers;
// the adapter contract itself is read-only.
func (s *Store) Put(ctx context.Context, path string, body io.Reader, contentType string) error {
	bucket, key := objectstore.SplitPath(path)
	if key == "" {
		return errors.New(errors.ErrorTypeValidation, "object path must name a key within a container").
			WithDetail("path", path)
	}

	client, err := s.client.get(ctx)
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(client)

	in := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	result, err := uploader.Upload(ctx, in)
	if err != nil {
		return wrapProvider(err, errors.ErrorTypeConnection, "failed to upload object").
			WithDetail("path", path)
	}

	s.logger.Info("object uploaded",
		zap.String("path", path),
		zap.String("location", result.Location))

	return nil
}
