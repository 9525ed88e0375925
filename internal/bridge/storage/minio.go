package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/pkg/log"
	"github.com/autopeer-io/voicelink/pkg/options"
)

const (
	shadowPrefix = "shadows"

	// maxMergeAttempts bounds retries when another writer changed the object.
	maxMergeAttempts = 5
)

var _ core.ShadowStore = (*MinIO)(nil)

// MinIO stores each shadow as a JSON object in an S3 bucket.
// State merges are read-modify-write guarded by the object's ETag.
type MinIO struct {
	client     *minio.Client
	bucketName string

	// locks serializes merges to the same object within this process.
	locks sync.Map
}

// NewMinIO creates a shadow store backed by an S3 compatible service.
func NewMinIO(opts *options.S3Options) (*MinIO, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}
	if opts.UseSSL && opts.InsecureSkipVerify {
		minioOpts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIO{
		client:     client,
		bucketName: opts.BucketName,
	}, nil
}

// CheckBucket creates the bucket when it does not exist.
func (p *MinIO) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		log.Info("Bucket does not exist, creating...", "bucket", p.bucketName)
		if err := p.client.MakeBucket(ctx, p.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func objectKey(username, endpointID string) string {
	return path.Join(shadowPrefix, username, endpointID+".json")
}

func (p *MinIO) Find(ctx context.Context, username, endpointID string) (*model.Shadow, error) {
	shadow, _, err := p.get(ctx, objectKey(username, endpointID))
	return shadow, err
}

func (p *MinIO) get(ctx context.Context, key string) (*model.Shadow, string, error) {
	obj, err := p.client.GetObject(ctx, p.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", mapMinioError(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", mapMinioError(err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", mapMinioError(err)
	}

	var shadow model.Shadow
	if err := json.Unmarshal(data, &shadow); err != nil {
		return nil, "", fmt.Errorf("failed to decode shadow object %s: %w", key, err)
	}
	if shadow.State == nil {
		shadow.State = map[string]any{}
	}
	return &shadow, info.ETag, nil
}

func (p *MinIO) MergeState(ctx context.Context, username, endpointID string, patch model.StatePatch) error {
	key := objectKey(username, endpointID)

	mu, _ := p.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	for attempt := 1; ; attempt++ {
		shadow, etag, err := p.get(ctx, key)
		if err != nil {
			return err
		}
		shadow.State = patch.Apply(shadow.State)

		err = p.put(ctx, key, shadow, etag)
		if err == nil {
			return nil
		}
		if !isPreconditionFailed(err) || attempt >= maxMergeAttempts {
			return fmt.Errorf("failed to write shadow %s: %w", key, err)
		}
		log.Debug("Shadow changed concurrently, retrying merge", "key", key, "attempt", attempt)
	}
}

// Put replaces a whole shadow object.
func (p *MinIO) Put(ctx context.Context, shadow *model.Shadow) error {
	return p.put(ctx, objectKey(shadow.Username, shadow.EndpointID), shadow, "")
}

func (p *MinIO) put(ctx context.Context, key string, shadow *model.Shadow, matchETag string) error {
	data, err := json.Marshal(shadow)
	if err != nil {
		return err
	}

	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if matchETag != "" {
		opts.SetMatchETag(matchETag)
	}

	_, err = p.client.PutObject(ctx, p.bucketName, key, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func mapMinioError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" {
		return core.ErrNotFound
	}
	return err
}

func isPreconditionFailed(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "PreconditionFailed" || resp.StatusCode == http.StatusPreconditionFailed
}
