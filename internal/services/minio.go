package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tgfetch/url-uploader-bot/internal/configuration"
)

type MinioService struct {
	Client     *minio.Client
	BucketName string
}

// NewMinio connects to MinIO and creates the bucket if it doesn't exist.
func NewMinio(cfg configuration.MinIOConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	exists, err := client.BucketExists(context.Background(), cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %v", err)
	}
	if !exists {
		err = client.MakeBucket(context.Background(), cfg.BucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
		log.Printf("Created bucket: %s", cfg.BucketName)
	}

	log.Println("Connected to MinIO successfully")
	return &MinioService{Client: client, BucketName: cfg.BucketName}, nil
}

// CheckConnection is used by health checks.
func (m *MinioService) CheckConnection(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("minio service not initialized")
	}
	_, err := m.Client.BucketExists(ctx, m.BucketName)
	return err
}

// UploadLocalFile stores a local file under objectName and returns the
// stored size.
func (m *MinioService) UploadLocalFile(ctx context.Context, localPath, objectName, contentType string) (int64, error) {
	info, err := m.Client.FPutObject(ctx, m.BucketName, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %v", objectName, err)
	}
	return info.Size, nil
}

// PresignedURL returns a time-limited download link for an object.
func (m *MinioService) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.Client.PresignedGetObject(ctx, m.BucketName, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %v", objectName, err)
	}
	return u.String(), nil
}

func (m *MinioService) DeleteFile(ctx context.Context, objectName string) error {
	return m.Client.RemoveObject(ctx, m.BucketName, objectName, minio.RemoveObjectOptions{})
}

// ContentTypeForExt maps a file extension to a content type.
func ContentTypeForExt(extension string) string {
	switch extension {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
