// Package publish uploads de-identified outputs to an S3-compatible bucket.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ContentType is set on every uploaded record.
const ContentType = "application/dicom"

// objectPutter is the part of *minio.Client the store needs.
type objectPutter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Options describes the export target.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

type Store struct {
	client objectPutter
	bucket string
	prefix string
	log    *slog.Logger
}

// New connects to the endpoint and creates the bucket when it does not exist.
func New(ctx context.Context, opts Options, log *slog.Logger) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create export client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("could not check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("could not create bucket %s: %w", opts.Bucket, err)
		}
	}

	return newStore(cli, opts.Bucket, opts.Prefix, log), nil
}

func newStore(client objectPutter, bucket, prefix string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log.With("bucket", bucket),
	}
}

// UploadDir uploads every regular file directly inside dir and returns the
// object keys in upload order. It stops at the first failed upload.
func (s *Store) UploadDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not list %s: %w", dir, err)
	}

	var keys []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return keys, err
		}

		key := objectKey(s.prefix, filepath.Base(dir), entry.Name())
		local := filepath.Join(dir, entry.Name())
		if _, err := s.client.FPutObject(ctx, s.bucket, key, local, minio.PutObjectOptions{
			ContentType: ContentType,
		}); err != nil {
			return keys, fmt.Errorf("could not upload %s: %w", entry.Name(), err)
		}

		s.log.Debug("uploaded", "key", key)
		keys = append(keys, key)
	}

	s.log.Info("export complete", "objects", len(keys))
	return keys, nil
}

// objectKey joins the non-empty parts with "/" regardless of host separator.
func objectKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(filepath.ToSlash(p), "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return path.Join(clean...)
}
