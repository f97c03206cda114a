// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package objstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/mediarunner/internal/awsclient"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const (
	// DefaultMultipartThreshold is the largest object CopyObject accepts.
	DefaultMultipartThreshold int64 = 5 << 30
	DefaultCopyPartSize       int64 = 512 << 20
	defaultCopyConcurrency          = 8
)

type s3API interface {
	manager.DownloadAPIClient
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	UploadPartCopy(ctx context.Context, params *s3.UploadPartCopyInput, optFns ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
}

// S3Store implements Store on S3 or an S3-compatible service.
type S3Store struct {
	client             s3API
	tracer             trace.Tracer
	multipartThreshold int64
	partSize           int64
	copyConcurrency    int
}

type S3Option func(*S3Store)

// WithMultipartThreshold sets the size above which Copy switches to a
// multipart copy.
func WithMultipartThreshold(n int64) S3Option {
	return func(s *S3Store) { s.multipartThreshold = n }
}

func WithCopyPartSize(n int64) S3Option {
	return func(s *S3Store) { s.partSize = n }
}

func WithCopyConcurrency(n int) S3Option {
	return func(s *S3Store) { s.copyConcurrency = n }
}

func NewS3Store(client *awsclient.S3Client, opts ...S3Option) *S3Store {
	return newS3Store(client.Client, client.Tracer, opts...)
}

func newS3Store(client s3API, tracer trace.Tracer, opts ...S3Option) *S3Store {
	s := &S3Store{
		client:             client,
		tracer:             tracer,
		multipartThreshold: DefaultMultipartThreshold,
		partSize:           DefaultCopyPartSize,
		copyConcurrency:    defaultCopyConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (s *S3Store) Head(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("head %s/%s: %w", bucket, key, ErrNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("head %s/%s: %w", bucket, key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Store) Download(ctx context.Context, dir, bucket, key string) (string, int64, error) {
	ctx, span := s.tracer.Start(ctx, "objstore.Download",
		trace.WithAttributes(attribute.String("bucket", bucket), attribute.String("key", key)))
	defer span.End()

	f, err := os.CreateTemp(dir, "*-"+filepath.Base(key))
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	size, err := manager.NewDownloader(s.client).Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		if isNotFound(err) {
			downloadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket), attribute.String("reason", "not_found")))
			return "", 0, fmt.Errorf("download %s/%s: %w", bucket, key, ErrNotFound)
		}
		downloadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket), attribute.String("reason", "unknown")))
		return "", 0, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	downloadBytes.Add(ctx, size, metric.WithAttributes(attribute.String("bucket", bucket)))

	// the SDK has already flushed every byte
	_ = f.Close()
	return f.Name(), size, nil
}

func (s *S3Store) Upload(ctx context.Context, bucket, key, sourceFilename, contentType string) error {
	ctx, span := s.tracer.Start(ctx, "objstore.Upload",
		trace.WithAttributes(attribute.String("bucket", bucket), attribute.String("key", key)))
	defer span.End()

	file, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("open %s: %w", sourceFilename, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", sourceFilename, err)
	}

	input := &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              file,
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata:          map[string]string{"writer": "mediarunner"},
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := manager.NewUploader(s.client).Upload(ctx, input); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	uploadBytes.Add(ctx, stat.Size(), metric.WithAttributes(attribute.String("bucket", bucket)))
	return nil
}

// Copy copies one object. Objects above the multipart threshold are copied
// in ranged parts, concurrently, and reassembled in part order.
func (s *S3Store) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	ctx, span := s.tracer.Start(ctx, "objstore.Copy",
		trace.WithAttributes(
			attribute.String("srcBucket", srcBucket),
			attribute.String("srcKey", srcKey),
			attribute.String("dstBucket", dstBucket),
			attribute.String("dstKey", dstKey),
		))
	defer span.End()

	info, err := s.Head(ctx, srcBucket, srcKey)
	if err != nil {
		return err
	}
	source := url.PathEscape(srcBucket + "/" + srcKey)

	if info.Size <= s.multipartThreshold {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(dstBucket),
			Key:               aws.String(dstKey),
			CopySource:        aws.String(source),
			ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		})
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("copy %s/%s: %w", srcBucket, srcKey, ErrNotFound)
			}
			return fmt.Errorf("copy %s/%s to %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
		}
		copies.Add(ctx, 1, metric.WithAttributes(attribute.Bool("multipart", false)))
		return nil
	}

	if err := s.multipartCopy(ctx, source, info.Size, dstBucket, dstKey); err != nil {
		return fmt.Errorf("multipart copy %s/%s to %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}
	copies.Add(ctx, 1, metric.WithAttributes(attribute.Bool("multipart", true)))
	return nil
}

func (s *S3Store) multipartCopy(ctx context.Context, source string, size int64, dstBucket, dstKey string) error {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:            aws.String(dstBucket),
		Key:               aws.String(dstKey),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}
	uploadID := created.UploadId

	nparts := int((size + s.partSize - 1) / s.partSize)
	parts := make([]types.CompletedPart, nparts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.copyConcurrency)
	for i := range nparts {
		start := int64(i) * s.partSize
		end := min(start+s.partSize, size) - 1
		partNumber := int32(i + 1)
		g.Go(func() error {
			out, err := s.client.UploadPartCopy(gctx, &s3.UploadPartCopyInput{
				Bucket:          aws.String(dstBucket),
				Key:             aws.String(dstKey),
				UploadId:        uploadID,
				PartNumber:      aws.Int32(partNumber),
				CopySource:      aws.String(source),
				CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
			})
			if err != nil {
				return fmt.Errorf("copy part %d: %w", partNumber, err)
			}
			parts[i] = types.CompletedPart{
				PartNumber:     aws.Int32(partNumber),
				ETag:           out.CopyPartResult.ETag,
				ChecksumSHA256: out.CopyPartResult.ChecksumSHA256,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.abort(ctx, dstBucket, dstKey, uploadID)
		return err
	}

	slices.SortFunc(parts, func(a, b types.CompletedPart) int {
		return cmp.Compare(aws.ToInt32(a.PartNumber), aws.ToInt32(b.PartNumber))
	})
	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(dstBucket),
		Key:             aws.String(dstKey),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		s.abort(ctx, dstBucket, dstKey, uploadID)
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

func (s *S3Store) abort(ctx context.Context, bucket, key string, uploadID *string) {
	ctx = context.WithoutCancel(ctx)
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: uploadID,
	})
	if err != nil {
		logctx.FromContext(ctx).Error("Failed to abort multipart upload",
			slog.String("bucket", bucket), slog.String("key", key), slog.Any("error", err))
	}
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	ctx, span := s.tracer.Start(ctx, "objstore.Delete",
		trace.WithAttributes(attribute.String("bucket", bucket), attribute.String("key", key)))
	defer span.End()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func (s *S3Store) Tags(ctx context.Context, bucket, key string) (map[string]string, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("tags %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("tags %s/%s: %w", bucket, key, err)
	}
	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}
