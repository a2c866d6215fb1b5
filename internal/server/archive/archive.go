// Package archive stores raw uploaded documents in S3-compatible object
// storage (MinIO in development) so an extraction can be audited later.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/dmitrijs2005/healthchat/internal/server/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	now = time.Now
)

// PresignExpiry bounds the lifetime of download links.
const PresignExpiry = 15 * time.Minute

// Archiver writes uploads to a single bucket.
type Archiver struct {
	config *sc.Config
}

func NewArchiver(config *sc.Config) *Archiver {
	return &Archiver{config: config}
}

// Enabled reports whether a bucket is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.config.S3Bucket != ""
}

// StorageKey builds the object key for a user's upload:
// uploads/<user>/<yyyy>/<mm>/<dd>/<uuid>-<file name>.
func StorageKey(userID, fileName string) string {
	d := now().UTC()
	base := strings.ReplaceAll(path.Base(strings.ReplaceAll(fileName, `\`, "/")), " ", "_")
	if base == "." || base == "/" {
		base = "upload"
	}
	return fmt.Sprintf("uploads/%s/%04d/%02d/%02d/%s-%s", userID, d.Year(), d.Month(), d.Day(), uuid.New(), base)
}

func (a *Archiver) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(a.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Put uploads data and returns the object key.
func (a *Archiver) Put(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error) {
	c, err := a.client(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := a.config.S3Bucket
	key := StorageKey(userID, fileName)
	in := &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := putObject(c, ctx, in); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return key, nil
}

// PresignedGetURL returns a temporary download link for key.
func (a *Archiver) PresignedGetURL(ctx context.Context, key string) (string, error) {
	c, err := a.client(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := a.config.S3Bucket
	req, err := presignGetObject(newS3PresignClient(c), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
