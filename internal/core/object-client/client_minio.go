package objectclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/nexbid/ragline/internal/config"
	"github.com/nexbid/ragline/internal/core"
)

// MinioClient implements the object store contract against MinIO (or any
// S3-compatible endpoint) for self-hosted deployments.
type MinioClient struct {
	client *minio.Client
	bucket string
	useSSL bool
}

var _ core.ObjectStore = (*MinioClient)(nil)

func NewMinioClient(ctx context.Context, cfg *cfg.Config) (*MinioClient, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	c := &MinioClient{client: client, bucket: cfg.BucketName, useSSL: cfg.MinioUseSSL}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	slog.Info("connected to MinIO", "endpoint", cfg.MinioEndpoint, "bucket", cfg.BucketName)
	return c, nil
}

func (c *MinioClient) ensureBucket(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (c *MinioClient) Upload(ctx context.Context, name string, data []byte, metadata map[string]string) (core.ObjectInfo, error) {
	_, err := c.client.PutObject(ctx, c.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		UserMetadata: metadata,
	})
	if err != nil {
		return core.ObjectInfo{}, fmt.Errorf("minio upload failed: %w", err)
	}

	scheme := "http"
	if c.useSSL {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, c.client.EndpointURL().Host, c.bucket, name)
	return core.ObjectInfo{URL: url, Name: name}, nil
}

func (c *MinioClient) Download(ctx context.Context, name string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get failed: %w", err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return body, nil
}

func (c *MinioClient) Delete(ctx context.Context, name string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete failed: %w", err)
	}
	return nil
}

func (c *MinioClient) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list failed: %w", obj.Err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}
