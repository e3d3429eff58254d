// Package upload is the final stage of a completed transfer: scan, store in
// object storage, publish the completion event. It takes ownership of the
// local file and always removes it.
package upload

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tgfetch/url-uploader-bot/internal/models"
	"github.com/tgfetch/url-uploader-bot/internal/probe"
	"github.com/tgfetch/url-uploader-bot/internal/services"
)

// Receipt describes where an upload ended up.
type Receipt struct {
	ObjectName  string
	FileName    string
	ShareURL    string
	ContentType string
	UploadType  string
	Size        int64
}

// EffectiveUploadType resolves how a file is delivered. The "video"
// preference only applies to files that actually carry a video extension;
// everything else goes out as a document.
func EffectiveUploadType(prefs models.Preferences, fileName string) string {
	if prefs.UploadType == models.UploadTypeVideo && probe.IsVideoFilename(fileName) {
		return models.UploadTypeVideo
	}
	return models.UploadTypeDocument
}

// Uploader consumes a finished local download.
type Uploader interface {
	Upload(ctx context.Context, localPath string, userID int64, prefs models.Preferences) (*Receipt, error)
}

const shareLinkExpiry = 24 * time.Hour

// MinioUploader stores files in MinIO, optionally scanning them first.
type MinioUploader struct {
	minio     *services.MinioService
	events    *services.EventPublisher
	clamAvURL string // empty disables scanning
}

func NewMinioUploader(m *services.MinioService, events *services.EventPublisher, clamAvURL string) *MinioUploader {
	return &MinioUploader{minio: m, events: events, clamAvURL: clamAvURL}
}

func (u *MinioUploader) Upload(ctx context.Context, localPath string, userID int64, prefs models.Preferences) (*Receipt, error) {
	defer os.Remove(localPath)

	fileName := filepath.Base(localPath)

	if u.clamAvURL != "" {
		clean, signature, err := services.ScanFile(localPath, u.clamAvURL)
		if err != nil {
			// Scanner being down should not block uploads.
			log.Printf("Warning: scan of %s failed: %v", fileName, err)
		} else if !clean {
			return nil, fmt.Errorf("virus detected in %s: %s", fileName, signature)
		}
	}

	objectName := fmt.Sprintf("users/%d/%s_%s", userID, uuid.New().String()[:8], fileName)
	contentType := services.ContentTypeForExt(filepath.Ext(fileName))
	uploadType := EffectiveUploadType(prefs, fileName)

	size, err := u.minio.UploadLocalFile(ctx, localPath, objectName, contentType)
	if err != nil {
		return nil, err
	}

	shareURL, err := u.minio.PresignedURL(ctx, objectName, shareLinkExpiry)
	if err != nil {
		log.Printf("Warning: failed to presign %s: %v", objectName, err)
		shareURL = ""
	}

	if err := u.events.PublishUploadCompleted(services.UploadCompletedEvent{
		UserID:      userID,
		ObjectName:  objectName,
		FileName:    fileName,
		Size:        size,
		ContentType: contentType,
		UploadType:  uploadType,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("Warning: failed to publish upload event: %v", err)
	}

	return &Receipt{
		ObjectName:  objectName,
		FileName:    fileName,
		ShareURL:    shareURL,
		ContentType: contentType,
		UploadType:  uploadType,
		Size:        size,
	}, nil
}
