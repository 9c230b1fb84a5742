package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
)

// ErrDuplicate is returned when a write violates the username or email uniqueness constraint.
var ErrDuplicate = errors.New("duplicate username or email")

// UserStore is the credential store contract shared by the MySQL, MongoDB and in-memory backends.
type UserStore interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*entity.User, error)
	FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, passwordHash string) (bool, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) (*entity.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error)
	UpdateRole(ctx context.Context, id, role string) (*entity.User, error)
	List(ctx context.Context, page, limit int) (*entity.UserPage, error)
	Delete(ctx context.Context, id string) (bool, error)
}

var (
	_ UserStore = (*UserRepository)(nil)
	_ UserStore = (*MongoUserRepository)(nil)
	_ UserStore = (*MemoryUserRepository)(nil)
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner func(dest ...interface{}) error

func pageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
