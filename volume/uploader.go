package volume

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArtifactDescriptor is an uploaded file's {path, content_type}, matching
// the Run.Files column.
type ArtifactDescriptor struct {
	Path        string
	ContentType string
}

// Uploader drains a volume's files to an S3-compatible object store.
// URL format: s3://bucket/prefix?region=us-east-1&endpoint=http://localhost:9000
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewUploader constructs an Uploader from an s3:// DSN.
func NewUploader(ctx context.Context, dsn string, logger *slog.Logger) (*Uploader, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse object store DSN: %w", err)
	}

	if parsed.Scheme != "s3" {
		return nil, fmt.Errorf("expected s3:// DSN, got %s://", parsed.Scheme)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	query := parsed.Query()

	clientOptions := []func(*s3.Options){}

	if region := query.Get("region"); region != "" {
		clientOptions = append(clientOptions, func(o *s3.Options) {
			o.Region = region
		})
	}

	if endpoint := query.Get("endpoint"); endpoint != "" {
		clientOptions = append(clientOptions, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &Uploader{
		client: s3.NewFromConfig(cfg, clientOptions...),
		bucket: parsed.Host,
		prefix: strings.TrimPrefix(parsed.Path, "/"),
		logger: logger,
	}, nil
}

// UploadAll enumerates every regular file in the volume and uploads it. On
// a per-file failure, the file is skipped and logged; if every upload
// fails, an empty list is returned rather than an error.
func (u *Uploader) UploadAll(ctx context.Context, v *Volume) []ArtifactDescriptor {
	files, err := v.Files()
	if err != nil {
		u.logger.Warn("could not enumerate volume files for upload", "error", err)

		return []ArtifactDescriptor{}
	}

	descriptors := make([]ArtifactDescriptor, 0, len(files))

	for _, file := range files {
		descriptor, err := u.upload(ctx, file)
		if err != nil {
			u.logger.Warn("could not upload file to object store", "path", file.RelPath, "error", err)

			continue
		}

		descriptors = append(descriptors, descriptor)
	}

	return descriptors
}

func (u *Uploader) upload(ctx context.Context, file File) (ArtifactDescriptor, error) {
	reader, err := os.Open(file.AbsPath)
	if err != nil {
		return ArtifactDescriptor{}, fmt.Errorf("could not open %q: %w", file.RelPath, err)
	}
	defer func() { _ = reader.Close() }()

	header := make([]byte, 512)

	n, err := reader.Read(header)
	if err != nil && n == 0 {
		return ArtifactDescriptor{}, fmt.Errorf("could not sniff content type for %q: %w", file.RelPath, err)
	}

	contentType := http.DetectContentType(header[:n])

	if _, err := reader.Seek(0, 0); err != nil {
		return ArtifactDescriptor{}, fmt.Errorf("could not rewind %q: %w", file.RelPath, err)
	}

	key := u.fullKey(file.RelPath)

	uploader := transfermanager.New(u.client, func(opts *transfermanager.Options) {
		opts.PartSizeBytes = 10 * 1024 * 1024
		opts.Concurrency = 3
	})

	_, err = uploader.UploadObject(ctx, &transfermanager.UploadObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return ArtifactDescriptor{}, fmt.Errorf("could not upload %q: %w", file.RelPath, err)
	}

	return ArtifactDescriptor{Path: file.RelPath, ContentType: contentType}, nil
}

func (u *Uploader) fullKey(key string) string {
	if u.prefix == "" {
		return key
	}

	return u.prefix + "/" + key
}
