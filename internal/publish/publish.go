// Package publish uploads exported recovery images to S3-compatible object
// storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/BadgerOps/recoveryusb/internal/config"
	"github.com/BadgerOps/recoveryusb/internal/engine"
	"github.com/BadgerOps/recoveryusb/internal/safety"
)

// ErrNoBucket is returned when publishing is attempted without a bucket.
var ErrNoBucket = errors.New("publish.bucket is not configured")

// Client wraps an S3 client bound to one bucket and key prefix.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Object is the metadata of one published object.
type Object struct {
	Key  string
	Size int64
}

// Result summarizes one Publish call.
type Result struct {
	Label    string
	Objects  []Object
	Bytes    int64
	Duration time.Duration
}

// NewClient builds a Client from the publish section of the config. A custom
// endpoint switches to path-style addressing; plain HTTP is only accepted
// for loopback endpoints. Without static keys the default AWS credential
// chain is used.
func NewClient(ctx context.Context, cfg config.PublishConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrNoBucket
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, fmt.Errorf("publish: access_key_id and secret_access_key must be set together")
	}

	var endpoint string
	if cfg.Endpoint != "" {
		var err error
		if endpoint, err = safety.ValidateEndpoint(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("publish.endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	// The SDK adds AWS_CA_BUNDLE roots to this client's transport.
	timeout, _ := time.ParseDuration(cfg.Timeout)
	httpClient := awshttp.NewBuildableClient().
		WithTimeout(timeout).
		WithDialerOptions(safety.BoundDialer).
		WithTransportOptions(safety.BoundTransport)

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.AccessKeyID != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger,
	}, nil
}

// ObjectKey joins the non-empty parts of prefix/label/name with slashes.
func ObjectKey(prefix, label, name string) string {
	var parts []string
	for _, p := range []string{prefix, label, name} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

// Publish uploads every file of the export in dir under prefix/<label>/.
// The manifest goes last so a reader never sees it before its archives. An
// empty label falls back to the label recorded in the export manifest.
func (c *Client) Publish(ctx context.Context, dir, label string) (*Result, error) {
	start := time.Now()

	manifest, err := engine.ReadImageManifest(dir)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = manifest.Label
	}
	if label == "" {
		return nil, fmt.Errorf("no label given and the export manifest has none")
	}

	result := &Result{Label: label}
	for _, name := range manifest.Files() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		local, err := safety.SafeJoinUnder(dir, name)
		if err != nil {
			return result, fmt.Errorf("unsafe file name in manifest: %w", err)
		}
		key := ObjectKey(c.prefix, label, name)
		size, err := c.uploadFile(ctx, key, local)
		if err != nil {
			return result, fmt.Errorf("uploading %s: %w", name, err)
		}
		c.logger.Info("uploaded", "key", key, "size", size)
		result.Objects = append(result.Objects, Object{Key: key, Size: size})
		result.Bytes += size
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (c *Client) uploadFile(ctx context.Context, key, filePath string) (int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// List returns the objects published under prefix/<label>/.
func (c *Client) List(ctx context.Context, label string) ([]Object, error) {
	prefix := ObjectKey(c.prefix, label, "")
	if prefix != "" {
		prefix += "/"
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}
	return objects, nil
}

func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".json":
		return "application/json"
	case ".zst":
		return "application/zstd"
	case ".gz":
		return "application/gzip"
	case ".xz":
		return "application/x-xz"
	case ".txt", ".sha256", ".b3":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
