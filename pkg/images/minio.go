package images

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// objectStore is the subset of the MinIO client the backend needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type minioClientWrapper struct {
	*minio.Client
}

func (c *minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}

type minioBackend struct {
	client objectStore
	bucket string
}

func newMinioBackend(ctx context.Context, cfg *config.Config) (*minioBackend, error) {
	// minio wants the endpoint without a scheme.
	endpoint := strings.TrimPrefix(cfg.MinioEndpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := cfg.MetadataHTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure:    cfg.MinioUseSSL,
		Region:    cfg.MinioRegion,
		Transport: transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create minio client")
	}

	b := &minioBackend{client: &minioClientWrapper{Client: client}, bucket: cfg.MinioBucket}
	if err := b.ensureBucket(ctx, cfg.MinioRegion); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *minioBackend) ensureBucket(ctx context.Context, region string) error {
	ok, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %q", b.bucket)
	}
	if ok {
		return nil
	}
	err = b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region})
	return errors.Wrapf(err, "create bucket %q", b.bucket)
}

func (b *minioBackend) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return errors.WithStack(err)
}

func (b *minioBackend) exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.WithStack(err)
}

func (b *minioBackend) open(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject is lazy and only reports a missing key on first read.
	ok, err := b.exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithStack(ErrNotFound)
	}
	rc, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return rc, nil
}

func (b *minioBackend) remove(ctx context.Context, key string) error {
	// RemoveObject succeeds for missing keys.
	return errors.WithStack(b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}))
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
