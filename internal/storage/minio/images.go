// Package minio stores pin images in an S3-compatible bucket.
//
// The REST upload endpoint puts the file here and hands the public URL back to
// the client, which then sends it as the image field of createPin.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/xid"
)

// ErrUnsupportedType is returned for uploads that are not a known image type.
var ErrUnsupportedType = errors.New("minio: unsupported image type")

// imageTypes maps accepted content types to object key extensions.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// minioAPI is the part of *minio.Client we use; tests replace it with a fake.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var _ minioAPI = (*minio.Client)(nil)

// Config describes the bucket to use.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base the browser loads images from. Empty means
	// derived from Endpoint and UseSSL.
	PublicURL string
}

type ImageStore struct {
	api       minioAPI
	bucket    string
	publicURL string
}

// New connects to the endpoint in cfg and makes sure the bucket exists and is
// publicly readable.
func New(ctx context.Context, cfg Config) (*ImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: creating client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	return NewWithAPI(ctx, client, cfg.Bucket, publicURL)
}

// NewWithAPI builds an ImageStore over any minioAPI.
func NewWithAPI(ctx context.Context, api minioAPI, bucket, publicURL string) (*ImageStore, error) {
	s := &ImageStore{
		api:       api,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("minio: preparing bucket %s: %w", bucket, err)
	}
	return s, nil
}

func (s *ImageStore) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket: %w", err)
	}
	if err := s.api.SetBucketPolicy(ctx, s.bucket, readOnlyPolicy(s.bucket)); err != nil {
		return fmt.Errorf("setting bucket policy: %w", err)
	}
	return nil
}

// Upload stores one image for ownerID and returns its public URL. size may be
// -1 when unknown.
func (s *ImageStore) Upload(ctx context.Context, ownerID, contentType string, size int64, r io.Reader) (string, error) {
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if ownerID == "" || strings.Contains(ownerID, "/") {
		return "", fmt.Errorf("minio: invalid owner %q", ownerID)
	}

	key := "pins/" + ownerID + "/" + xid.New().String() + ext
	_, err := s.api.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("minio: uploading %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Owner reports who uploaded the image at url. Images uploaded before keys
// carried an owner, and URLs outside this bucket, have none.
func (s *ImageStore) Owner(url string) (string, bool) {
	key, ok := s.Key(url)
	if !ok {
		return "", false
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "pins" || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}

// Delete removes the object behind url. URLs outside this bucket are ignored.
func (s *ImageStore) Delete(ctx context.Context, url string) error {
	key, ok := s.Key(url)
	if !ok {
		return nil
	}
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio: deleting %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *ImageStore) URL(key string) string {
	return s.publicURL + "/" + s.bucket + "/" + key
}

// Key reports the object key of a URL produced by URL.
func (s *ImageStore) Key(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicURL+"/"+s.bucket+"/")
	return key, ok && key != ""
}

func readOnlyPolicy(bucket string) string {
	return `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},` +
		`"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::` + bucket + `/*"]}]}`
}
