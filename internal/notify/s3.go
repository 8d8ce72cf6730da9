package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"order-service/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ReceiptArchiver writes each placed order as JSON to
// {prefix}{userEmail}/{orderId}.json.
type S3ReceiptArchiver struct {
	client putObjectAPI
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3ReceiptArchiver loads the default AWS configuration for region and
// returns an archiver for bucket.
func NewS3ReceiptArchiver(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (*S3ReceiptArchiver, error) {
	logger = logger.With().Str("component", "s3-receipt-archiver").Logger()

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 receipt archiver initialised")

	return newS3ReceiptArchiver(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3ReceiptArchiver(client putObjectAPI, bucket, prefix string, logger zerolog.Logger) *S3ReceiptArchiver {
	return &S3ReceiptArchiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Key returns the object key for an order.
func (a *S3ReceiptArchiver) Key(order *model.Order) string {
	key := path.Join(a.prefix, order.UserEmail, order.ID.String()+".json")
	return strings.TrimPrefix(key, "/")
}

// Archive uploads the order.
func (a *S3ReceiptArchiver) Archive(ctx context.Context, order *model.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}

	key := a.Key(order)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.logger.Error().
			Err(err).
			Str("bucket", a.bucket).
			Str("key", key).
			Msg("failed to upload receipt")
		return fmt.Errorf("failed to upload receipt (bucket=%s, key=%s): %w", a.bucket, key, err)
	}

	a.logger.Debug().Str("key", key).Msg("receipt archived")
	return nil
}
