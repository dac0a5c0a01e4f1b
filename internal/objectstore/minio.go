package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/types/media"
)

// Minio signs browser POST policies, which pin the key, the content type
// and the accepted size range.
type Minio struct {
	client     *minio.Client
	bucketName string
	cfg        config.Storage
}

func NewMinio(cfg config.Storage) (*Minio, error) {
	client, err := minio.New(hostOnly(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnconfigured, err, "failed to create MinIO client")
	}

	return &Minio{
		client:     client,
		bucketName: cfg.Bucket,
		cfg:        cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{Region: m.cfg.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func (m *Minio) PresignUpload(ctx context.Context, spec UploadSpec) (*Credential, error) {
	expiresAt := time.Now().UTC().Add(spec.TTL)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(m.bucketName); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "post policy bucket")
	}
	if err := policy.SetKey(spec.Key); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "post policy key")
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "post policy expiry")
	}
	if err := policy.SetContentType(spec.ContentType); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "post policy content type")
	}
	if err := policy.SetContentLengthRange(spec.MinBytes, spec.MaxBytes); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "post policy size range")
	}

	u, fields, err := m.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "failed to sign upload policy")
	}

	return &Credential{
		Method:    http.MethodPost,
		URL:       u.String(),
		Fields:    fields,
		ExpiresAt: expiresAt,
	}, nil
}

func (m *Minio) Stat(ctx context.Context, key string) (*media.ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		switch {
		case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
			return nil, apperr.Wrap(apperr.NotFound, err, "object not found")
		case resp.StatusCode == 0 || resp.StatusCode >= http.StatusInternalServerError:
			return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "object storage unavailable")
		default:
			return nil, apperr.Wrap(apperr.Internal, err, "stat object")
		}
	}

	return &media.ObjectInfo{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		ModifiedAt:  info.LastModified,
	}, nil
}

func (m *Minio) PublicURL(key string) string {
	return publicURL(m.cfg.PublicBaseURL, m.bucketName, m.cfg.Endpoint, m.cfg.UseSSL, key)
}
