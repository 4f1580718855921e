// Package media turns uploaded image files into durable public URLs backed
// by MinIO. Only the returned URL ever reaches site content.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"sitecms/api/internal/util"
)

var (
	ErrUploadFailed    = errors.New("media upload failed")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media file too large")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/avif": ".avif",
}

// ObjectPutter is the part of an object store the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
	Ping(ctx context.Context, bucket string) error
}

type Uploader struct {
	objects    ObjectPutter
	bucket     string
	publicBase string
	maxBytes   int64
	now        func() time.Time
}

// New connects to MinIO and creates the bucket when missing.
func New(ctx context.Context, cfg Config, maxBytes int64) (*Uploader, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return nil, fmt.Errorf("ensure media bucket %s: %w", cfg.Bucket, err)
	}
	return NewWithObjects(minioObjects{client: client}, cfg.Bucket, cfg.publicBase(), maxBytes), nil
}

func NewWithObjects(objects ObjectPutter, bucket, publicBase string, maxBytes int64) *Uploader {
	return &Uploader{
		objects:    objects,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		maxBytes:   maxBytes,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores body under a fresh key and returns its public URL. Store
// failures wrap ErrUploadFailed; nothing is written to site content here.
func (u *Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error) {
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size <= 0 {
		return "", fmt.Errorf("%w: empty file", ErrUploadFailed)
	}
	if u.maxBytes > 0 && size > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, u.maxBytes)
	}

	key := u.objectKey(filename, ext)
	if err := u.objects.PutObject(ctx, u.bucket, key, body, size, contentType); err != nil {
		log.Printf("media: put %s/%s failed: %v", u.bucket, key, err)
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return u.publicBase + "/" + key, nil
}

func (u *Uploader) Ping(ctx context.Context) error {
	return u.objects.Ping(ctx, u.bucket)
}

// objectKey is uploads/YYYY/MM/<id>-<slug><ext>.
func (u *Uploader) objectKey(filename, ext string) string {
	now := u.now()
	name := slug(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	id := util.NewID("m")
	if name != "" {
		id += "-" + name
	}
	return fmt.Sprintf("uploads/%04d/%02d/%s%s", now.Year(), int(now.Month()), id, ext)
}

func slug(input string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 40 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
