package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/dto"
	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/mailer"
	"github.com/vibast-solutions/ms-go-identity/app/repository"
	"github.com/vibast-solutions/ms-go-identity/app/service"
	"github.com/vibast-solutions/ms-go-identity/config"

	"golang.org/x/crypto/bcrypt"
)

const testPassword = "S3cr3t!"

func newTestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:    "access-secret",
			RefreshSecret:   "refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Tokens: config.TokenConfig{ResetTTL: 15 * time.Minute},
		Password: config.PasswordConfig{
			Policy: config.PasswordPolicy{
				MinLength:        8,
				RequireUppercase: true,
				RequireLowercase: true,
				RequireNumber:    true,
				RequireSpecial:   true,
			},
			BcryptCost: bcrypt.MinCost,
		},
		Mail: config.MailConfig{ResetURLBase: "https://videotube.example"},
	}
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]mailer.Message(nil), m.sent...)
}

type fakeUploader struct {
	calls []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, file io.Reader, folder, filename string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	u.calls = append(u.calls, folder+"/"+filename)
	return "https://cdn.example/" + folder + "/" + filename, nil
}

type nopReadSeekCloser struct {
	*strings.Reader
}

func (nopReadSeekCloser) Close() error { return nil }

func upload(name, content string) *dto.Upload {
	return &dto.Upload{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadSeekCloser, error) {
			return nopReadSeekCloser{strings.NewReader(content)}, nil
		},
	}
}

func brokenUpload() *dto.Upload {
	return &dto.Upload{
		Filename: "broken.png",
		Open: func() (io.ReadSeekCloser, error) {
			return nil, errors.New("temp file gone")
		},
	}
}

type sessionFixture struct {
	cfg    *config.Config
	repo   *repository.MemoryUserRepository
	hasher service.PasswordHasher
	tokens *service.TokenIssuer
	mail   *recordingMailer
	svc    service.SessionService
	now    time.Time
}

func newSessionFixture(t *testing.T, mutate func(*config.Config), opts ...service.SessionServiceOption) *sessionFixture {
	t.Helper()

	cfg := newTestConfig()
	if mutate != nil {
		mutate(cfg)
	}

	f := &sessionFixture{
		cfg:    cfg,
		repo:   repository.NewMemoryUserRepository(),
		hasher: service.NewBcryptHasher(cfg.Password.BcryptCost),
		tokens: service.NewTokenIssuer(cfg.JWT),
		mail:   &recordingMailer{},
		now:    time.Now(),
	}
	opts = append([]service.SessionServiceOption{
		service.WithAsyncRunner(func(task func()) { task() }),
	}, opts...)
	f.svc = service.NewSessionService(f.repo, f.hasher, f.tokens, f.mail, cfg, opts...)
	return f
}

func (f *sessionFixture) seedUser(t *testing.T, username, email, password string) *entity.User {
	t.Helper()

	digest, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	now := time.Now()
	user := &entity.User{
		ID:           username + "-id",
		Username:     username,
		Email:        email,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		PasswordHash: digest,
		AvatarURL:    "https://cdn.example/avatars/" + username + ".png",
		Role:         entity.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := f.repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return user
}

func (f *sessionFixture) stored(t *testing.T, id string) *entity.User {
	t.Helper()

	user, err := f.repo.FindByID(context.Background(), id)
	if err != nil || user == nil {
		t.Fatalf("expected stored user %s, got %v %v", id, user, err)
	}
	return user
}
