package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type cloudinaryUploadFunc func(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)

type CloudinaryUploader struct {
	upload     cloudinaryUploadFunc
	rootFolder string
}

func NewCloudinaryUploader(cfg config.CloudinaryConfig) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}

	return newCloudinaryUploader(cld, cfg.Folder), nil
}

func newCloudinaryUploader(cld *cloudinary.Cloudinary, rootFolder string) *CloudinaryUploader {
	return &CloudinaryUploader{
		upload:     cld.Upload.Upload,
		rootFolder: rootFolder,
	}
}

func (u *CloudinaryUploader) Upload(ctx context.Context, file io.Reader, folder, _ string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("empty file")
	}

	// the SDK accepts a string path or an io.Reader, not raw bytes
	result, err := u.upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       path.Join(u.rootFolder, folder),
		PublicID:     uuid.New().String(),
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload to Cloudinary: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary returned no url")
	}

	logrus.WithFields(logrus.Fields{
		"folder":    folder,
		"public_id": result.PublicID,
		"bytes":     result.Bytes,
	}).Debug("asset uploaded to cloudinary")

	return result.SecureURL, nil
}
