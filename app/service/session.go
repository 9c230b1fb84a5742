package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/dto"
	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/mailer"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/sirupsen/logrus"
)

const resetSecretBytes = 32

type userRepository interface {
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

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type SessionService interface {
	Login(ctx context.Context, identifier, password string) (*dto.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshAccess(ctx context.Context, refreshToken string) (*dto.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, secret, newPassword string) error
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type AsyncRunner func(task func())

type SessionServiceOption func(*sessionService)

type sessionService struct {
	userRepo    userRepository
	hasher      PasswordHasher
	tokens      *TokenIssuer
	mail        Mailer
	cfg         *config.Config
	asyncRunner AsyncRunner
	now         func() time.Time
}

func NewSessionService(
	userRepo userRepository,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	mail Mailer,
	cfg *config.Config,
	opts ...SessionServiceOption,
) SessionService {
	svc := &sessionService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		mail:     mail,
		cfg:      cfg,
		asyncRunner: func(task func()) {
			go task()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) SessionServiceOption {
	return func(s *sessionService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

func WithNow(now func() time.Time) SessionServiceOption {
	return func(s *sessionService) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *sessionService) Login(ctx context.Context, identifier, password string) (*dto.LoginResult, error) {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("stored password digest is unreadable")
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}
	if err = s.userRepo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, err
	}
	user.RefreshToken = pair.RefreshToken

	logrus.WithField("user_id", user.ID).Info("user logged in")

	return &dto.LoginResult{User: user, TokenPair: *pair}, nil
}

func (s *sessionService) Logout(ctx context.Context, userID string) error {
	if err := s.userRepo.ClearRefreshToken(ctx, userID); err != nil {
		return err
	}
	logrus.WithField("user_id", userID).Info("user logged out")
	return nil
}

// RefreshAccess rotates the session. The stored refresh token is replaced with
// a compare-and-swap, so of several concurrent refreshes with one token only
// the first to write succeeds.
func (s *sessionService) RefreshAccess(ctx context.Context, refreshToken string) (*dto.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return nil, ErrRefreshTokenExpired
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}

	swapped, err := s.userRepo.SwapRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !swapped {
		logrus.WithField("user_id", user.ID).Warn("refresh token rotated concurrently")
		return nil, ErrRefreshTokenExpired
	}

	return pair, nil
}

func (s *sessionService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrInvalidInput
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPasswordMismatch
	}

	if err = s.cfg.Password.Policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err = s.userRepo.UpdatePassword(ctx, user.ID, digest); err != nil {
		return err
	}

	if s.cfg.Password.RevokeSessionsOnChange {
		if err = s.userRepo.ClearRefreshToken(ctx, user.ID); err != nil {
			return err
		}
	}

	logrus.WithField("user_id", user.ID).Info("password changed")
	return nil
}

func (s *sessionService) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	secret, err := newResetSecret()
	if err != nil {
		return err
	}

	expiresAt := s.now().Add(s.cfg.Tokens.ResetTTL)
	if err = s.userRepo.SetResetToken(ctx, user.ID, hashResetSecret(secret), expiresAt); err != nil {
		return err
	}

	msg := mailer.Message{
		To:      user.Email,
		Subject: "Password Reset Request",
		Text:    fmt.Sprintf("Reset your password using this link :\n\n%s/reset-password/%s", s.cfg.Mail.ResetURLBase, secret),
	}

	if s.cfg.Mail.Async {
		s.asyncRunner(func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if sendErr := s.mail.Send(sendCtx, msg); sendErr != nil {
				logrus.WithError(sendErr).WithField("user_id", user.ID).Error("failed to send password reset email")
			}
		})
		return nil
	}

	if err = s.mail.Send(ctx, msg); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to send password reset email")
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, err.Error())
	}
	return nil
}

func (s *sessionService) ResetPassword(ctx context.Context, secret, newPassword string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrInvalidResetToken
	}
	if newPassword == "" {
		return ErrInvalidInput
	}

	// policy runs before the lookup so the answer does not depend on the secret
	if err := s.cfg.Password.Policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	now := s.now()
	tokenHash := hashResetSecret(secret)

	user, err := s.userRepo.FindByResetTokenHash(ctx, tokenHash, now)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	consumed, err := s.userRepo.ConsumeResetToken(ctx, user.ID, tokenHash, now, digest)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidResetToken
	}

	if s.cfg.Password.RevokeSessionsOnChange {
		if err = s.userRepo.ClearRefreshToken(ctx, user.ID); err != nil {
			return err
		}
	}

	logrus.WithField("user_id", user.ID).Info("password reset")
	return nil
}

func (s *sessionService) Authenticate(ctx context.Context, accessToken string) (*entity.User, error) {
	if accessToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func newResetSecret() (string, error) {
	buf := make([]byte, resetSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
