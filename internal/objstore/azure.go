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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/mediarunner/internal/azureclient"
	"github.com/cardinalhq/mediarunner/internal/logctx"
)

const defaultCopyPollInterval = 2 * time.Second

// AzureStore implements Store on Azure Blob Storage. Buckets are
// containers and tags are blob index tags.
type AzureStore struct {
	client       *azblob.Client
	tracer       trace.Tracer
	pollInterval time.Duration
}

type AzureOption func(*AzureStore)

// WithCopyPollInterval sets how often Copy checks a pending server-side copy.
func WithCopyPollInterval(d time.Duration) AzureOption {
	return func(s *AzureStore) { s.pollInterval = d }
}

func NewAzureStore(client *azureclient.BlobClient, opts ...AzureOption) *AzureStore {
	return newAzureStore(client.Client, client.Tracer, opts...)
}

func newAzureStore(client *azblob.Client, tracer trace.Tracer, opts ...AzureOption) *AzureStore {
	s := &AzureStore{client: client, tracer: tracer, pollInterval: defaultCopyPollInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AzureStore) blobClient(container, name string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(container).NewBlobClient(name)
}

func isBlobNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}

func valueOf[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *AzureStore) Head(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	props, err := s.blobClient(bucket, key).GetProperties(ctx, nil)
	if err != nil {
		if isBlobNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("head %s/%s: %w", bucket, key, ErrNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("head %s/%s: %w", bucket, key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         valueOf(props.ContentLength),
		ContentType:  valueOf(props.ContentType),
		LastModified: valueOf(props.LastModified),
	}, nil
}

func (s *AzureStore) Download(ctx context.Context, dir, bucket, key string) (string, int64, error) {
	ctx, span := s.tracer.Start(ctx, "objstore.Download",
		trace.WithAttributes(attribute.String("bucket", bucket), attribute.String("key", key)))
	defer span.End()

	f, err := os.CreateTemp(dir, "*-"+filepath.Base(key))
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	size, err := s.client.DownloadFile(ctx, bucket, key, f, nil)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		if isBlobNotFound(err) {
			downloadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket), attribute.String("reason", "not_found")))
			return "", 0, fmt.Errorf("download %s/%s: %w", bucket, key, ErrNotFound)
		}
		downloadErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", bucket), attribute.String("reason", "unknown")))
		return "", 0, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	downloadBytes.Add(ctx, size, metric.WithAttributes(attribute.String("bucket", bucket)))

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return f.Name(), size, nil
}

func (s *AzureStore) Upload(ctx context.Context, bucket, key, sourceFilename, contentType string) error {
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

	opts := &azblob.UploadFileOptions{
		Metadata: map[string]*string{"writer": to.Ptr("mediarunner")},
	}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)}
	}
	if _, err := s.client.UploadFile(ctx, bucket, key, file, opts); err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
	}
	uploadBytes.Add(ctx, stat.Size(), metric.WithAttributes(attribute.String("bucket", bucket)))
	return nil
}

// Copy starts a server-side copy and waits for it to leave the pending
// state. A cancelled wait aborts the copy.
func (s *AzureStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	ctx, span := s.tracer.Start(ctx, "objstore.Copy",
		trace.WithAttributes(
			attribute.String("srcBucket", srcBucket),
			attribute.String("srcKey", srcKey),
			attribute.String("dstBucket", dstBucket),
			attribute.String("dstKey", dstKey),
		))
	defer span.End()

	if _, err := s.Head(ctx, srcBucket, srcKey); err != nil {
		return err
	}

	dst := s.blobClient(dstBucket, dstKey)
	started, err := dst.StartCopyFromURL(ctx, s.blobClient(srcBucket, srcKey).URL(), nil)
	if err != nil {
		if isBlobNotFound(err) {
			return fmt.Errorf("copy %s/%s: %w", srcBucket, srcKey, ErrNotFound)
		}
		return fmt.Errorf("copy %s/%s to %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}

	status := valueOf(started.CopyStatus)
	description := ""
	for status == blob.CopyStatusTypePending {
		select {
		case <-ctx.Done():
			s.abortCopy(ctx, dst, valueOf(started.CopyID))
			return fmt.Errorf("copy %s/%s to %s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, context.Cause(ctx))
		case <-time.After(s.pollInterval):
		}
		props, err := dst.GetProperties(ctx, nil)
		if err != nil {
			return fmt.Errorf("poll copy to %s/%s: %w", dstBucket, dstKey, err)
		}
		status = valueOf(props.CopyStatus)
		description = valueOf(props.CopyStatusDescription)
	}
	if status != blob.CopyStatusTypeSuccess {
		return fmt.Errorf("copy %s/%s to %s/%s ended %q: %s", srcBucket, srcKey, dstBucket, dstKey, status, description)
	}
	copies.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", "azure")))
	return nil
}

func (s *AzureStore) abortCopy(ctx context.Context, dst *blob.Client, copyID string) {
	if copyID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := dst.AbortCopyFromURL(ctx, copyID, nil); err != nil {
		logctx.FromContext(ctx).Error("Failed to abort blob copy",
			slog.String("url", dst.URL()), slog.String("copyID", copyID), slog.Any("error", err))
	}
}

func (s *AzureStore) Delete(ctx context.Context, bucket, key string) error {
	ctx, span := s.tracer.Start(ctx, "objstore.Delete",
		trace.WithAttributes(attribute.String("bucket", bucket), attribute.String("key", key)))
	defer span.End()

	if _, err := s.client.DeleteBlob(ctx, bucket, key, nil); err != nil && !isBlobNotFound(err) {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *AzureStore) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	pager := s.client.NewListBlobsFlatPager(bucket, &azblob.ListBlobsFlatOptions{Prefix: to.Ptr(prefix)})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			info := ObjectInfo{Key: valueOf(item.Name)}
			if p := item.Properties; p != nil {
				info.Size = valueOf(p.ContentLength)
				info.ContentType = valueOf(p.ContentType)
				info.LastModified = valueOf(p.LastModified)
			}
			objects = append(objects, info)
		}
	}
	return objects, nil
}

func (s *AzureStore) Tags(ctx context.Context, bucket, key string) (map[string]string, error) {
	resp, err := s.blobClient(bucket, key).GetTags(ctx, nil)
	if err != nil {
		if isBlobNotFound(err) {
			return nil, fmt.Errorf("tags %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("tags %s/%s: %w", bucket, key, err)
	}
	tags := make(map[string]string, len(resp.BlobTagSet))
	for _, t := range resp.BlobTagSet {
		if t != nil {
			tags[valueOf(t.Key)] = valueOf(t.Value)
		}
	}
	return tags, nil
}
