package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/dto"
	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/repository"
	"github.com/vibast-solutions/ms-go-identity/app/storage"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AccountService interface {
	Register(ctx context.Context, in *dto.RegisterInput) (*entity.User, error)
	CurrentUser(ctx context.Context, userID string) (*entity.User, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*entity.User, error)
	UpdateAvatar(ctx context.Context, userID string, file *dto.Upload) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, userID string, file *dto.Upload) (*entity.User, error)
}

type accountService struct {
	userRepo userRepository
	hasher   PasswordHasher
	assets   storage.AssetUploader
	cfg      *config.Config
}

func NewAccountService(
	userRepo userRepository,
	hasher PasswordHasher,
	assets storage.AssetUploader,
	cfg *config.Config,
) AccountService {
	return &accountService{
		userRepo: userRepo,
		hasher:   hasher,
		assets:   assets,
		cfg:      cfg,
	}
}

func (s *accountService) Register(ctx context.Context, in *dto.RegisterInput) (*entity.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := NormalizeEmail(in.Email)
	username := NormalizeUsername(in.Username)
	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, ErrInvalidInput
	}
	if !validEmail(email) || !validUsername(username) {
		return nil, ErrInvalidInput
	}

	if existing, err := s.userRepo.FindByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUserExists
	}
	if existing, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUserExists
	}

	if err := s.cfg.Password.Policy.Validate(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}
	if in.Avatar == nil {
		return nil, ErrAvatarRequired
	}

	avatarURL, err := s.upload(ctx, in.Avatar, storage.FolderAvatars)
	if err != nil {
		return nil, err
	}
	var coverURL string
	if in.CoverImage != nil {
		if coverURL, err = s.upload(ctx, in.CoverImage, storage.FolderCovers); err != nil {
			return nil, err
		}
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  digest,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		Role:          entity.RoleUser,
		WatchHistory:  []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err = s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("user registered")

	return user, nil
}

func (s *accountService) CurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*entity.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = NormalizeEmail(email)
	if fullName == "" || email == "" || !validEmail(email) {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) UpdateAvatar(ctx context.Context, userID string, file *dto.Upload) (*entity.User, error) {
	if file == nil {
		return nil, ErrAvatarRequired
	}

	url, err := s.upload(ctx, file, storage.FolderAvatars)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) UpdateCoverImage(ctx context.Context, userID string, file *dto.Upload) (*entity.User, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: cover image file is missing", ErrInvalidInput)
	}

	url, err := s.upload(ctx, file, storage.FolderCovers)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *accountService) upload(ctx context.Context, file *dto.Upload, folder string) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, err.Error())
	}
	defer reader.Close()

	url, err := s.assets.Upload(ctx, reader, folder, file.Filename)
	if err != nil {
		logrus.WithError(err).WithField("folder", folder).Warn("asset upload failed")
		return "", fmt.Errorf("%w: %s", ErrUploadFailed, err.Error())
	}
	return url, nil
}
