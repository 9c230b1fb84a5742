package service

import (
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/dto"
	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

type AccessClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenPayload is the kind-independent part of a verified token.
type TokenPayload struct {
	Kind     TokenKind
	UserID   string
	Email    string
	Username string
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. The two
// kinds use distinct secrets so neither verifies as the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type TokenIssuerOption func(*TokenIssuer)

func WithClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTokenIssuer(cfg config.JWTConfig, opts ...TokenIssuerOption) *TokenIssuer {
	issuer := &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

func (t *TokenIssuer) IssueAccess(user *entity.User) (string, error) {
	claims := &AccessClaims{
		UserID:           user.ID,
		Email:            user.Email,
		Username:         user.Username,
		RegisteredClaims: t.registered(user.ID, t.accessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
}

func (t *TokenIssuer) IssueRefresh(user *entity.User) (string, error) {
	claims := &RefreshClaims{
		UserID:           user.ID,
		RegisteredClaims: t.registered(user.ID, t.refreshTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
}

// IssuePair returns a fresh access and refresh token for user.
func (t *TokenIssuer) IssuePair(user *entity.User) (*dto.TokenPair, error) {
	accessToken, err := t.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := t.IssueRefresh(user)
	if err != nil {
		return nil, err
	}
	return &dto.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (t *TokenIssuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, claims, t.accessSecret); err != nil {
		logrus.WithError(err).WithField("kind", TokenAccess).Debug("access token rejected")
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := t.parse(token, claims, t.refreshSecret); err != nil {
		logrus.WithError(err).WithField("kind", TokenRefresh).Debug("refresh token rejected")
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) Verify(token string, kind TokenKind) (*TokenPayload, error) {
	switch kind {
	case TokenAccess:
		claims, err := t.VerifyAccess(token)
		if err != nil {
			return nil, err
		}
		return &TokenPayload{Kind: kind, UserID: claims.UserID, Email: claims.Email, Username: claims.Username}, nil
	case TokenRefresh:
		claims, err := t.VerifyRefresh(token)
		if err != nil {
			return nil, err
		}
		return &TokenPayload{Kind: kind, UserID: claims.UserID}, nil
	default:
		return nil, ErrInvalidToken
	}
}

func (t *TokenIssuer) AccessTTL() time.Duration {
	return t.accessTTL
}

func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

func (t *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := t.now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (t *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(t.now),
	)
	return err
}
