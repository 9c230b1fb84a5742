package service

import (
	"context"
	"fmt"

	"github.com/vibast-solutions/ms-go-identity/app/entity"

	"github.com/sirupsen/logrus"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type AdminService interface {
	ListUsers(ctx context.Context, page, limit int) (*entity.UserPage, error)
	DeleteUser(ctx context.Context, userID string) error
	SetRole(ctx context.Context, userID, role string) (*entity.User, error)
	SetRoleByUsername(ctx context.Context, username, role string) (*entity.User, error)
}

type adminService struct {
	userRepo userRepository
}

func NewAdminService(userRepo userRepository) AdminService {
	return &adminService{userRepo: userRepo}
}

func (s *adminService) ListUsers(ctx context.Context, page, limit int) (*entity.UserPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return s.userRepo.List(ctx, page, limit)
}

func (s *adminService) DeleteUser(ctx context.Context, userID string) error {
	deleted, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}

	logrus.WithField("user_id", userID).Info("user deleted by admin")
	return nil
}

func (s *adminService) SetRole(ctx context.Context, userID, role string) (*entity.User, error) {
	if role != entity.RoleUser && role != entity.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	user, err := s.userRepo.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    role,
	}).Info("user role changed")
	return user, nil
}

func (s *adminService) SetRoleByUsername(ctx context.Context, username, role string) (*entity.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.SetRole(ctx, user.ID, role)
}
