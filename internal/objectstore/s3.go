package objectstore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/types/media"
)

// S3 presigns single PUT requests for S3-compatible stores such as R2.
// Content-Type and Content-Length are part of the signature, so the URL
// cannot be replayed for another key, type or size.
type S3 struct {
	svc    *s3.S3
	bucket string
	cfg    config.Storage
}

func NewS3(cfg config.Storage) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(endpoint),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		// retries are owned by internal/retry
		MaxRetries: aws.Int(0),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnconfigured, err, "failed to create AWS session")
	}

	return &S3{
		svc:    s3.New(sess),
		bucket: cfg.Bucket,
		cfg:    cfg,
	}, nil
}

func (s *S3) PresignUpload(ctx context.Context, spec UploadSpec) (*Credential, error) {
	size := spec.DeclaredBytes
	if size <= 0 || size > spec.MaxBytes {
		return nil, apperr.New(apperr.FileTooLarge, "declared size outside the accepted range")
	}

	req, _ := s.svc.PutObjectRequest(&s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(spec.Key),
		ContentType:   aws.String(spec.ContentType),
		ContentLength: aws.Int64(size),
	})
	req.SetContext(ctx)

	urlStr, signed, err := req.PresignRequest(spec.TTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to presign upload")
	}

	headers := make(map[string]string, len(signed))
	for name, values := range signed {
		if strings.EqualFold(name, "Host") || len(values) == 0 {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = values[0]
	}

	return &Credential{
		Method:    http.MethodPut,
		URL:       urlStr,
		Headers:   headers,
		ExpiresAt: time.Now().UTC().Add(spec.TTL),
	}, nil
}

func (s *S3) Stat(ctx context.Context, key string) (*media.ObjectInfo, error) {
	out, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var reqErr awserr.RequestFailure
		if errors.As(err, &reqErr) {
			switch {
			case reqErr.StatusCode() == http.StatusNotFound:
				return nil, apperr.Wrap(apperr.NotFound, err, "object not found")
			case reqErr.StatusCode() >= http.StatusInternalServerError:
				return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "object storage unavailable")
			default:
				return nil, apperr.Wrap(apperr.Internal, err, "head object")
			}
		}
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, err, "object storage unavailable")
	}

	return &media.ObjectInfo{
		Key:         key,
		Size:        aws.Int64Value(out.ContentLength),
		ContentType: aws.StringValue(out.ContentType),
		ModifiedAt:  aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3) PublicURL(key string) string {
	return publicURL(s.cfg.PublicBaseURL, s.bucket, s.cfg.Endpoint, s.cfg.UseSSL, key)
}
