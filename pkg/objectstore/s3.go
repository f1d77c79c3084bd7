package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/config"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner defines the interface for presigning S3 GET requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Store struct {
	log           *zap.Logger
	api           S3API
	presigner     Presigner
	bucket        string
	region        string
	publicBaseURL string
	cdnDomain     string
	presignTTL    time.Duration
}

func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig, log *zap.Logger) (*S3Store, error) {
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		// Path-style addressing for LocalStack / MinIO
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase == "" && endpoint != "" {
		publicBase = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}

	s := NewS3StoreWithClient(client, s3.NewPresignClient(client), S3Options{
		Bucket:        cfg.Bucket,
		Region:        cfg.Region,
		PublicBaseURL: publicBase,
		CDNDomain:     cfg.CDNDomain,
		PresignTTL:    cfg.PresignTTL,
	}, log)

	s.log.Info("object storage initialized",
		zap.String("backend", "s3"),
		zap.String("bucket", s.bucket),
		zap.String("region", s.region),
		zap.String("endpoint", endpoint),
		zap.Duration("presign_ttl", s.presignTTL),
	)

	return s, nil
}

type S3Options struct {
	Bucket        string
	Region        string
	PublicBaseURL string
	CDNDomain     string
	PresignTTL    time.Duration
}

func NewS3StoreWithClient(api S3API, presigner Presigner, opts S3Options, log *zap.Logger) *S3Store {
	return &S3Store{
		log:           log.With(zap.String("component", "s3_store")),
		api:           api,
		presigner:     presigner,
		bucket:        opts.Bucket,
		region:        opts.Region,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		cdnDomain:     strings.TrimSpace(opts.CDNDomain),
		presignTTL:    opts.PresignTTL,
	}
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 body,
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}
	return nil
}

func (s *S3Store) ResolvePublicURL(ctx context.Context, key string) (string, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("head object %q: %w", key, err)
	}

	if s.presignTTL > 0 && s.presigner != nil {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, func(o *s3.PresignOptions) { o.Expires = s.presignTTL })
		if err != nil {
			return "", fmt.Errorf("presigning object %q: %w", key, err)
		}
		return req.URL, nil
	}

	return s.publicURL(key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

func (s *S3Store) publicURL(key string) string {
	key = escapeKeyPath(strings.TrimLeft(key, "/"))
	switch {
	case s.cdnDomain != "":
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	case s.publicBaseURL != "":
		return fmt.Sprintf("%s/%s", s.publicBaseURL, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
}
