package dto

import (
	"io"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	User *entity.User
	TokenPair
}

// Upload is a file received from a multipart form, ready for the asset uploader.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadSeekCloser, error)
}

type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *Upload
	CoverImage *Upload
}
