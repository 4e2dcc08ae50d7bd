// Package storage keeps photo evidence objects in MinIO / S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options MinIO 连接参数
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
}

// Store 对象存储
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New connects a MinIO client. It does not touch the network.
func New(opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	public := strings.TrimRight(opts.PublicURL, "/")
	if public == "" {
		public = client.EndpointURL().String()
	}
	return &Store{client: client, bucket: opts.Bucket, publicURL: public}, nil
}

// EnsureBucket 不存在则创建 bucket
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// Put uploads an object and returns its public URL.
func (s *Store) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return s.URL(objectName), nil
}

// URL 对象的访问地址
func (s *Store) URL(objectName string) string {
	return s.publicURL + "/" + path.Join(s.bucket, objectName)
}
