package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/domain"
)

// S3ArtifactStore хранилище артефактов на базе S3/MinIO.
// Ключ: <id>/<имя>, без id просто <имя>.
type S3ArtifactStore struct {
	client *minio.Client
	bucket string
}

// NewS3ArtifactStore создаёт новый экземпляр S3ArtifactStore
func NewS3ArtifactStore(ctx context.Context, cfg config.S3Config) (*S3ArtifactStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	// Проверяем/создаём bucket
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3ArtifactStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Save загружает артефакт в bucket
func (s *S3ArtifactStore) Save(ctx context.Context, id uuid.UUID, name string, reader io.Reader, size int64) error {
	key, err := objectKey(id, name)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:        domain.ContentTypeFromFileName(name),
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	return nil
}

// Open скачивает артефакт из S3
func (s *S3ArtifactStore) Open(ctx context.Context, id uuid.UUID, name string) (*domain.Artifact, error) {
	key, err := objectKey(id, name)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject ленивый: существование проверяем через Stat
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = domain.ContentTypeFromFileName(name)
	}

	return &domain.Artifact{
		Name:        name,
		ContentType: contentType,
		Size:        info.Size,
		ModTime:     info.LastModified,
		Body:        obj,
	}, nil
}

// Delete удаляет все артефакты запуска
func (s *S3ArtifactStore) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    id.String() + "/",
		Recursive: true,
	})

	for removeErr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if removeErr.Err != nil {
			return fmt.Errorf("failed to delete object %s: %w", removeErr.ObjectName, removeErr.Err)
		}
	}

	return nil
}

func objectKey(id uuid.UUID, name string) (string, error) {
	if _, err := domain.ValidateArtifactName(name); err != nil {
		return "", err
	}
	if id == uuid.Nil {
		return name, nil
	}
	return path.Join(id.String(), name), nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
