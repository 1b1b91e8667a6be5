package s3

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/williamokano/dbb/pkg/storage"
)

// Settings holds the s3 specific options
type Settings struct {
	Region         string // AWS region
	Endpoint       string // Optional: S3 compatible endpoint (localstack, ceph)
	ForcePathStyle bool   // Needed by most S3 compatible services
	CheckBucket    bool   // HeadBucket on open; default true
}

type Backend struct {
	name     string
	client   *s3.Client
	bucket   string
	uploader *manager.Uploader
}

func init() {
	storage.RegisterBackend("s3", func(ctx context.Context, cfg storage.Config) (storage.ObjectStore, error) {
		return New(ctx, cfg)
	})
}

// ParseSettings extracts the s3 options
func ParseSettings(options map[string]interface{}) (*Settings, error) {
	s := &Settings{
		Region:   storage.StringOption(options, "region", ""),
		Endpoint: storage.StringOption(options, "endpoint", ""),
	}
	if s.Region == "" {
		return nil, fmt.Errorf("%w: missing required option: region", storage.ErrInvalidConfig)
	}

	var err error
	if s.ForcePathStyle, err = storage.BoolOption(options, "force_path_style", false); err != nil {
		return nil, err
	}
	if s.CheckBucket, err = storage.BoolOption(options, "check_bucket", true); err != nil {
		return nil, err
	}
	return s, nil
}

// New creates a new S3 backend bound to cfg.Bucket
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	settings, err := ParseSettings(cfg.Options)
	if err != nil {
		return nil, err
	}

	// Credentials always come from the provider document, never the ambient AWS chain
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(settings.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, storage.WrapError(cfg.Name(), "init", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
		o.UsePathStyle = settings.ForcePathStyle
	})

	if settings.CheckBucket {
		_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(cfg.Bucket),
		})
		if err != nil {
			return nil, storage.WrapError(cfg.Name(), "connection test", classify(err))
		}
	}

	return &Backend{
		name:     cfg.Name(),
		client:   client,
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "s3" }

// Put uploads a file to S3
func (b *Backend) Put(ctx context.Context, sourcePath, key string, vis storage.Visibility) error {
	file, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        file,
		ACL:         cannedACL(vis),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return storage.WrapError(b.name, "upload", classify(err))
	}

	return nil
}

// Stat returns metadata about an object
func (b *Backend) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, storage.WrapError(b.name, "stat", classify(err))
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    aws.ToInt64(result.ContentLength),
		ModTime: aws.ToTime(result.LastModified),
	}, nil
}

// Close is a no-op for S3
func (b *Backend) Close() error {
	return nil
}

func cannedACL(vis storage.Visibility) types.ObjectCannedACL {
	if vis == storage.PublicRead {
		return types.ObjectCannedACLPublicRead
	}
	return types.ObjectCannedACLPrivate
}

// classify maps SDK errors onto the storage sentinels, keeping the SDK error in the chain
func classify(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %w", storage.ErrAuthFailed, err)
		case "AccessDenied", "Forbidden", "AllAccessDisabled":
			return fmt.Errorf("%w: %w", storage.ErrPermissionDenied, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", storage.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", storage.ErrConnFailed, err)
}
