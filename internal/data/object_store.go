package data

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"

	"restroom/internal/biz"
	"restroom/internal/conf"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-kratos/kratos/v2/log"
)

type objectStore struct {
	client   *s3.Client
	bucket   string
	publicEP *url.URL
	log      *log.Helper
}

// NewObjectStore creates an S3-backed ObjectStore from configuration.
func NewObjectStore(c *conf.Data, logger log.Logger) (biz.ObjectStore, error) {
	cfg, err := awsCfg.LoadDefaultConfig(
		context.Background(),
		awsCfg.WithBaseEndpoint(c.S3.Endpoint),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.S3.AccessKeyID, c.S3.SecretAccessKey, "")),
		awsCfg.WithRegion(c.S3.Region),
	)
	if err != nil {
		return nil, err
	}
	publicEP, err := url.Parse(c.S3.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	return &objectStore{
		client:   s3.NewFromConfig(cfg),
		bucket:   c.S3.Bucket,
		publicEP: publicEP,
		log:      log.NewHelper(logger),
	}, nil
}

// Put implements biz.ObjectStore.
func (s *objectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	uri := *s.publicEP
	uri.Path = key
	return uri.String(), nil
}

// Get implements biz.ObjectStore.
func (s *objectStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, biz.ErrObjectNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Delete implements biz.ObjectStore. Deleting an absent key succeeds.
func (s *objectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
