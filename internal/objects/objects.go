// Package objects hands out download links for documents kept in S3-compatible
// object storage.
package objects

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"portal/api/internal/store"
)

var ErrNoObjectKey = errors.New("objects: document has no object key")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	LinkTTL   time.Duration
}

// Presigner signs time-limited GET links. Region is always set on the client so
// signing never has to look up the bucket location over the network.
type Presigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewPresigner(cfg Config) (*Presigner, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("objects: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("objects: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("objects: new client: %w", err)
	}
	return &Presigner{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

// Link returns where a document can be fetched. URL entries and documents that
// already point at an absolute http(s) location are returned unchanged; other
// Document entries treat their URL as an object key in the bucket.
func (p *Presigner) Link(ctx context.Context, doc store.Document) (string, error) {
	if doc.Type != store.DocumentFile || isAbsolute(doc.URL) {
		return doc.URL, nil
	}
	key := strings.TrimPrefix(strings.TrimSpace(doc.URL), "/")
	if key == "" {
		return "", ErrNoObjectKey
	}
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName(doc, key)))
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.ttl, params)
	if err != nil {
		return "", fmt.Errorf("objects: presign %s: %w", key, err)
	}
	return u.String(), nil
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func downloadName(doc store.Document, key string) string {
	name := key[strings.LastIndex(key, "/")+1:]
	if name == "" {
		name = doc.Name
	}
	return name
}
