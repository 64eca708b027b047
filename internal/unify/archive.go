package unify

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver keeps a copy of each generated artifact. It returns the key the
// copy was stored under.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) (string, error)
}

// MinioArchiver stores artifacts in an S3-compatible bucket.
type MinioArchiver struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// normaliseEndpoint accepts "minio:9000" as well as "http://minio:9000" or
// "https://minio:9000" and reports whether TLS should be used.
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// Bare host:port is plain HTTP, as for a local MinIO.
	return raw, false, nil
}

// NewMinioArchiver connects to the endpoint and checks that bucket exists.
func NewMinioArchiver(ctx context.Context, endpoint, accessKey, secretKey, bucket string) (*MinioArchiver, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("archive configuration incomplete")
	}

	host, secure, err := normaliseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("archive bucket does not exist: %s", bucket)
	}

	return &MinioArchiver{client: client, bucket: bucket, now: time.Now}, nil
}

func (m *MinioArchiver) Bucket() string {
	return m.bucket
}

// objectKey builds unified/<timestamp>-<uuid><ext>.
func (m *MinioArchiver) objectKey(name string) string {
	ts := m.now().UTC().Format("20060102T150405Z")
	return path.Join("unified", ts+"-"+uuid.NewString()+path.Ext(name))
}

func (m *MinioArchiver) Archive(ctx context.Context, name string, data []byte) (string, error) {
	key := m.objectKey(name)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserMetadata: map[string]string{
			"source-name": name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
