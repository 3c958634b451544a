// Package s3 stores objects in an S3 bucket or an S3-compatible server.
// Importing it registers the "s3" storage provider.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(cfg storage.Config, log *logger.Logger) (storage.Storage, error) {
		limit, err := cfg.MaxBytes()
		if err != nil {
			return nil, err
		}
		return New(context.Background(), cfg.S3, limit)
	})
}

// Storage implements storage.Storage on an S3 bucket.
type Storage struct {
	client  *awss3.Client
	bucket  string
	maxSize int64
}

// New creates a client for cfg.Bucket. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain.
// maxSize <= 0 disables the upload limit.
func New(ctx context.Context, cfg storage.S3Config, maxSize int64) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = storage.DefaultRegion
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
		awsconfig.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return &Storage{client: client, bucket: cfg.Bucket, maxSize: maxSize}, nil
}

func (s *Storage) key(key string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(key, "/"))
	if key == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	return clean, nil
}

// Upload buffers r and puts it under key. S3 replaces objects atomically.
func (s *Storage) Upload(ctx context.Context, key string, r io.Reader) (int64, error) {
	k, err := s.key(key)
	if err != nil {
		return 0, err
	}
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	var buf bytes.Buffer
	n, err := buf.ReadFrom(src)
	if err != nil {
		return 0, fmt.Errorf("storage: read %s: %w", key, err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return 0, storage.ErrTooLarge
	}
	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		ContentType:   aws.String(contentType(k)),
	})
	if err != nil {
		return 0, fmt.Errorf("storage: s3 upload %s: %w", key, err)
	}
	return n, nil
}

// Download opens the object body.
func (s *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	k, err := s.key(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return nil, s.wrap("download", key, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 treats missing keys as deleted.
func (s *Storage) Delete(ctx context.Context, key string) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil && !isNotFound(err) {
		return s.wrap("delete", key, err)
	}
	return nil
}

// Stat describes the object from a HEAD request.
func (s *Storage) Stat(ctx context.Context, key string) (*storage.FileInfo, error) {
	k, err := s.key(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return nil, s.wrap("stat", key, err)
	}
	fi := storage.FileInfo{
		Key:         k,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		fi.LastModified = *out.LastModified
	}
	if fi.ContentType == "" {
		fi.ContentType = contentType(k)
	}
	return &fi, nil
}

// List pages through the objects under prefix.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	in := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	var out []storage.FileInfo
	pages := awss3.NewListObjectsV2Paginator(s.client, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasPrefix(path.Base(key), ".") {
				continue
			}
			fi := storage.FileInfo{Key: key, Size: aws.ToInt64(obj.Size), ContentType: contentType(key)}
			if obj.LastModified != nil {
				fi.LastModified = *obj.LastModified
			}
			out = append(out, fi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Storage) wrap(op, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return fmt.Errorf("storage: s3 %s %s: %w", op, key, err)
}

func isNotFound(err error) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var _ storage.Storage = (*Storage)(nil)
