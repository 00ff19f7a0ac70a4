package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/s3"
)

const (
	contentTypeCSV = "text/csv"
	contentTypePDF = "application/pdf"
)

type S3Repo struct {
	StorageS3 *s3.StorageS3
}

func NewS3Repo(storageS3 *s3.StorageS3) *S3Repo {
	return &S3Repo{
		StorageS3: storageS3,
	}
}

func UploadPrefix(owner string, id uuid.UUID) string {
	return path.Join("uploads", url.PathEscape(owner), id.String()) + "/"
}

func UploadKey(owner string, id uuid.UUID, label string) string {
	name := path.Base("/" + label)
	if name == "/" || name == "." {
		name = "upload.csv"
	}
	return UploadPrefix(owner, id) + name
}

func ReportKey(owner string, id uuid.UUID) string {
	return path.Join("reports", url.PathEscape(owner), id.String()+".pdf")
}

func (s *S3Repo) client() (*s3.StorageS3, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}
	return s.StorageS3, nil
}

func (s *S3Repo) put(ctx context.Context, key string, data []byte, contentType string) error {
	st, err := s.client()
	if err != nil {
		return err
	}

	_, err = st.Client.PutObject(
		ctx,
		st.Bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		},
	)
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// ArchiveUpload stores the raw CSV of a committed dataset.
func (s *S3Repo) ArchiveUpload(ctx context.Context, owner string, id uuid.UUID, label string, raw []byte) error {
	return s.put(ctx, UploadKey(owner, id, label), raw, contentTypeCSV)
}

func (s *S3Repo) PutReport(ctx context.Context, owner string, id uuid.UUID, pdf []byte) error {
	return s.put(ctx, ReportKey(owner, id), pdf, contentTypePDF)
}

// ReportURL returns a presigned URL for a stored report, or entity.ErrObjectNotFound.
func (s *S3Repo) ReportURL(ctx context.Context, owner string, id uuid.UUID, expiry time.Duration) (string, error) {
	st, err := s.client()
	if err != nil {
		return "", err
	}

	key := ReportKey(owner, id)
	if _, err := st.Client.StatObject(ctx, st.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return "", entity.ErrObjectNotFound
		}
		return "", fmt.Errorf("s3 stat object %s: %w", key, err)
	}

	presignedURL, err := st.Client.PresignedGetObject(ctx, st.Bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteDataset removes the archived upload and the rendered report of a dataset.
func (s *S3Repo) DeleteDataset(ctx context.Context, owner string, id uuid.UUID) error {
	st, err := s.client()
	if err != nil {
		return err
	}

	objects := st.Client.ListObjects(ctx, st.Bucket, minio.ListObjectsOptions{
		Prefix:    UploadPrefix(owner, id),
		Recursive: true,
	})

	var errs []error
	for obj := range objects {
		if obj.Err != nil {
			errs = append(errs, obj.Err)
			continue
		}
		if err := st.Client.RemoveObject(ctx, st.Bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", obj.Key, err))
		}
	}
	if err := st.Client.RemoveObject(ctx, st.Bucket, ReportKey(owner, id), minio.RemoveObjectOptions{}); err != nil {
		errs = append(errs, fmt.Errorf("remove report: %w", err))
	}
	return errors.Join(errs...)
}
