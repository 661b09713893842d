// Package archive copies conversation turns and transcript exports to an
// S3-compatible bucket when one is configured. Everything here is
// best-effort from the pipeline's point of view.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/copydesk-io/copydesk/internal/config"
	"github.com/copydesk-io/copydesk/internal/models"
)

// Client wraps the S3 client and target bucket.
type Client struct {
	*s3.Client
	BucketName string
}

// NewClient creates and configures a new S3 client. Returns (nil, nil) when
// no bucket is configured; callers treat a nil client as "archiving off".
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Archive.Bucket == "" {
		return nil, nil
	}
	log.Println("[ARCHIVE] initializing S3 client...")

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:           cfg.Archive.Endpoint,
			SigningRegion: cfg.Archive.Region,
		}, nil
	})

	awsCfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
		awsConfig.WithEndpointResolverWithOptions(resolver),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Archive.AccessKeyID, cfg.Archive.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("[ARCHIVE] S3 client initialized for bucket: %s, region: %s", cfg.Archive.Bucket, cfg.Archive.Region)
	return &Client{
		Client:     s3.NewFromConfig(awsCfg),
		BucketName: cfg.Archive.Bucket,
	}, nil
}

// ArchiveTurn copies one conversation turn into the bucket.
func (c *Client) ArchiveTurn(ctx context.Context, accountID string, role models.TurnRole, content string) error {
	key := fmt.Sprintf("transcripts/%s/%d-%s.txt", accountID, time.Now().UnixNano(), role)
	_, err := c.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.BucketName,
		Key:    &key,
		Body:   bytes.NewReader([]byte(content)),
	})
	if err != nil {
		return fmt.Errorf("failed to archive turn: %v", err)
	}
	return nil
}

// StoreExport uploads a transcript export and returns a presigned download
// URL valid for 24 hours.
func (c *Client) StoreExport(ctx context.Context, accountID string, body []byte) (string, error) {
	key := fmt.Sprintf("exports/%s/%s.json", accountID, time.Now().UTC().Format("2006-01-02T15-04-05"))
	_, err := c.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.BucketName,
		Key:    &key,
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store export: %v", err)
	}

	presignClient := s3.NewPresignClient(c.Client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.BucketName,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 24 * time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign export: %v", err)
	}
	return req.URL, nil
}
