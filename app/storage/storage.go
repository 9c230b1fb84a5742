package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/google/uuid"
)

const (
	FolderAvatars = "avatars"
	FolderCovers  = "covers"
)

// AssetUploader stores a user-supplied file with the media host and returns its public URL.
type AssetUploader interface {
	Upload(ctx context.Context, file io.Reader, folder, filename string) (string, error)
}

// New builds the uploader selected by cfg.Driver.
func New(ctx context.Context, cfg config.AssetsConfig) (AssetUploader, error) {
	switch cfg.Driver {
	case config.AssetDriverCloudinary:
		return NewCloudinaryUploader(cfg.Cloudinary)
	case config.AssetDriverS3:
		return NewS3Uploader(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported asset driver %q", cfg.Driver)
	}
}

// objectKey returns a collision-free key under folder that keeps the upload's extension.
func objectKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, uuid.New().String()+ext)
}
