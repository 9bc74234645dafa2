// Package landing provides an S3-compatible object store client used as the
// warehouse's staging area
package landing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config configures the landing bucket
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	// PublicURL is the base URL the warehouse uses to reach the bucket
	// empty means scheme://Endpoint
	PublicURL string
}

// objectAPI is the slice of *minio.Client we use
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucket string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

// Client stages files in one bucket
type Client struct {
	api       objectAPI
	bucket    string
	publicURL string
	accessKey string
	secretKey string
}

var newAPI = func(cfg Config) (objectAPI, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// Open builds the client and creates the bucket if it does not exist
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("landing: endpoint and bucket are required")
	}
	api, err := newAPI(cfg)
	if err != nil {
		return nil, fmt.Errorf("landing: create client: %w", err)
	}
	c := &Client{
		api:       api,
		bucket:    cfg.Bucket,
		publicURL: publicURL(cfg),
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
	}
	if err := c.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return c, nil
}

func publicURL(cfg Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.Endpoint
}

func (c *Client) ensureBucket(ctx context.Context, region string) error {
	ok, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("landing: bucket exists %q: %w", c.bucket, err)
	}
	if ok {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// lost a race with another creator
		if exists, e2 := c.api.BucketExists(ctx, c.bucket); e2 == nil && exists {
			return nil
		}
		return fmt.Errorf("landing: make bucket %q: %w", c.bucket, err)
	}
	return nil
}

// Put uploads a local file to key and returns the stored size
func (c *Client) Put(ctx context.Context, localPath, key string) (int64, error) {
	info, err := c.api.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return 0, fmt.Errorf("landing: put %q: %w", key, err)
	}
	return info.Size, nil
}

// RemovePrefix deletes every object under prefix and returns how many were removed
func (c *Client) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	listed := c.api.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})

	toRemove := make(chan minio.ObjectInfo)
	listDone := make(chan struct{})
	var listErr error
	n := 0
	go func() {
		defer close(listDone)
		defer close(toRemove)
		for obj := range listed {
			if obj.Err != nil {
				listErr = obj.Err
				continue
			}
			select {
			case toRemove <- obj:
				n++
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	for rerr := range c.api.RemoveObjects(ctx, c.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("remove %q: %w", rerr.ObjectName, rerr.Err))
	}
	<-listDone
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if listErr != nil {
		errs = append(errs, fmt.Errorf("list %q: %w", prefix, listErr))
	}
	if len(errs) > 0 {
		return 0, fmt.Errorf("landing: %w", errors.Join(errs...))
	}
	return n, nil
}

// URL returns the address of key as seen by the warehouse
func (c *Client) URL(key string) string {
	return c.publicURL + "/" + c.bucket + "/" + strings.TrimLeft(key, "/")
}

// Credentials returns the static key pair the warehouse needs to read staged objects
func (c *Client) Credentials() (accessKey, secretKey string) {
	return c.accessKey, c.secretKey
}

// Ping checks the bucket is reachable
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("landing: bucket %q missing", c.bucket)
	}
	return nil
}
