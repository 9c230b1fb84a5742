package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
)

// MemoryUserRepository keeps identities in process memory. It is meant for
// local development and tests; every method copies records in and out so
// callers never share state with the store.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*entity.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.ID == user.ID || existing.Username == user.Username || existing.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.WatchHistory == nil {
		user.WatchHistory = []string{}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneUser(r.users[id]), nil
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username }), nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email == email }), nil
}

func (r *MemoryUserRepository) FindByUsernameOrEmail(_ context.Context, identifier string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == identifier || u.Email == identifier }), nil
}

func (r *MemoryUserRepository) FindByResetTokenHash(_ context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return r.find(func(u *entity.User) bool {
		return u.ResetPasswordToken == tokenHash && u.ResetTokenActive(now)
	}), nil
}

func (r *MemoryUserRepository) SetRefreshToken(_ context.Context, id, token string) error {
	r.mutate(id, func(u *entity.User) bool {
		u.RefreshToken = token
		return true
	})
	return nil
}

func (r *MemoryUserRepository) SwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	return r.mutate(id, func(u *entity.User) bool {
		if u.RefreshToken == "" || u.RefreshToken != expected {
			return false
		}
		u.RefreshToken = next
		return true
	}), nil
}

func (r *MemoryUserRepository) ClearRefreshToken(_ context.Context, id string) error {
	r.mutate(id, func(u *entity.User) bool {
		u.RefreshToken = ""
		return true
	})
	return nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mutate(id, func(u *entity.User) bool {
		u.PasswordHash = passwordHash
		return true
	})
	return nil
}

func (r *MemoryUserRepository) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mutate(id, func(u *entity.User) bool {
		u.ResetPasswordToken = tokenHash
		u.ResetPasswordExpiresAt = &expiresAt
		return true
	})
	return nil
}

func (r *MemoryUserRepository) ConsumeResetToken(_ context.Context, id, tokenHash string, now time.Time, passwordHash string) (bool, error) {
	return r.mutate(id, func(u *entity.User) bool {
		if u.ResetPasswordToken != tokenHash || !u.ResetTokenActive(now) {
			return false
		}
		u.PasswordHash = passwordHash
		u.ResetPasswordToken = ""
		u.ResetPasswordExpiresAt = nil
		return true
	}), nil
}

func (r *MemoryUserRepository) UpdateProfile(_ context.Context, id, fullName, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	for _, other := range r.users {
		if other.ID != id && other.Email == email {
			return nil, ErrDuplicate
		}
	}
	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = time.Now()
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) UpdateAvatar(_ context.Context, id, url string) (*entity.User, error) {
	return r.mutateAndGet(id, func(u *entity.User) { u.AvatarURL = url }), nil
}

func (r *MemoryUserRepository) UpdateCoverImage(_ context.Context, id, url string) (*entity.User, error) {
	return r.mutateAndGet(id, func(u *entity.User) { u.CoverImageURL = url }), nil
}

func (r *MemoryUserRepository) UpdateRole(_ context.Context, id, role string) (*entity.User, error) {
	return r.mutateAndGet(id, func(u *entity.User) { u.Role = role }), nil
}

func (r *MemoryUserRepository) List(_ context.Context, page, limit int) (*entity.UserPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	offset := pageOffset(page, limit)
	users := make([]*entity.User, 0, limit)
	for i := offset; i < len(all) && len(users) < limit; i++ {
		users = append(users, cloneUser(all[i]))
	}

	return &entity.UserPage{Users: users, Total: int64(len(all)), Page: page, Limit: limit}, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *MemoryUserRepository) find(match func(*entity.User) bool) *entity.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

func (r *MemoryUserRepository) mutate(id string, apply func(*entity.User) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return false
	}
	if !apply(user) {
		return false
	}
	user.UpdatedAt = time.Now()
	return true
}

func (r *MemoryUserRepository) mutateAndGet(id string, apply func(*entity.User)) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil
	}
	apply(user)
	user.UpdatedAt = time.Now()
	return cloneUser(user)
}

func cloneUser(u *entity.User) *entity.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.ResetPasswordExpiresAt != nil {
		expires := *u.ResetPasswordExpiresAt
		out.ResetPasswordExpiresAt = &expires
	}
	out.WatchHistory = append([]string{}, u.WatchHistory...)
	return &out
}
