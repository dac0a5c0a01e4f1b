// Package objectstore issues scoped write credentials against an S3-style
// bucket and inspects uploaded objects.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/types/media"
)

// Credential is a short-lived permission to write exactly one object.
type Credential struct {
	Method    string
	URL       string
	Fields    map[string]string
	Headers   map[string]string
	ExpiresAt time.Time
}

// UploadSpec scopes a credential.
type UploadSpec struct {
	Key         string
	ContentType string
	MinBytes    int64
	MaxBytes    int64
	TTL         time.Duration

	// DeclaredBytes is the size the client announced; PUT backends sign it
	// as the exact Content-Length.
	DeclaredBytes int64
}

// Store is implemented by every object storage backend.
type Store interface {
	PresignUpload(ctx context.Context, spec UploadSpec) (*Credential, error)
	// Stat returns an apperr.NotFound error when the object does not exist.
	Stat(ctx context.Context, key string) (*media.ObjectInfo, error)
	PublicURL(key string) string
}

// New builds the configured backend. It returns a storage_unconfigured
// error when endpoint, bucket or credentials are missing.
func New(cfg config.Storage) (Store, error) {
	if !cfg.Configured() {
		return nil, apperr.New(apperr.StorageUnconfigured, "endpoint, bucket and credentials are required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "minio":
		m, err := NewMinio(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "s3", "r2":
		s, err := NewS3(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperr.New(apperr.StorageUnconfigured, fmt.Sprintf("unknown storage provider %q", cfg.Provider))
	}
}

func publicURL(base, bucket, endpoint string, useSSL bool, key string) string {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		return base + "/" + key
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, hostOnly(endpoint), bucket, key)
}

func hostOnly(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimRight(endpoint, "/")
}
