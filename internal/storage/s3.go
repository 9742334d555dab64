package storage

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mrzor/pingpong-analyzer/internal/config"
)

// Destination is a parsed s3://bucket/prefix URL.
type Destination struct {
	Bucket string
	Prefix string
}

// ParseDestination parses an s3:// URL. The prefix may be empty.
func ParseDestination(raw string) (Destination, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Destination{}, fmt.Errorf("invalid upload URL %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return Destination{}, fmt.Errorf("invalid upload URL %q: scheme must be s3", raw)
	}
	if u.Host == "" {
		return Destination{}, fmt.Errorf("invalid upload URL %q: missing bucket", raw)
	}
	return Destination{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// Key returns the object key for a file uploaded under runID.
func (d Destination) Key(runID, file string) string {
	return path.Join(d.Prefix, runID, filepath.Base(file))
}

// objectPutter is the subset of the S3 client Uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies run artifacts to S3.
type Uploader struct {
	client objectPutter
	dest   Destination
}

// NewUploader builds an S3 client from the default AWS credential chain.
func NewUploader(ctx context.Context, cfg *config.S3Config, dest Destination) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &Uploader{client: client, dest: dest}, nil
}

// Upload puts each file under <prefix>/<runID>/ and returns the object URLs.
func (u *Uploader) Upload(ctx context.Context, runID string, files ...string) ([]string, error) {
	var urls []string
	for _, f := range files {
		key := u.dest.Key(runID, f)
		if err := u.put(ctx, key, f); err != nil {
			return urls, err
		}
		uploaded := fmt.Sprintf("s3://%s/%s", u.dest.Bucket, key)
		log.Printf("Uploaded %s to %s", f, uploaded)
		urls = append(urls, uploaded)
	}
	return urls, nil
}

func (u *Uploader) put(ctx context.Context, key, file string) error {
	//nolint:gosec // Uploads artifacts this process wrote
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close() //nolint:errcheck // Read-only

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.dest.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", file, err)
	}
	return nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
