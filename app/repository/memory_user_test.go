package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/repository"
)

func seedMemoryUser(t *testing.T, repo *repository.MemoryUserRepository, id, username string, createdAt time.Time) {
	t.Helper()

	err := repo.Create(context.Background(), &entity.User{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		Role:      entity.RoleUser,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestMemoryUserRepository_CreateRejectsDuplicates(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	seedMemoryUser(t, repo, "1", "alice", time.Now())

	err := repo.Create(context.Background(), &entity.User{ID: "2", Username: "bob", Email: "alice@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for email, got %v", err)
	}
	err = repo.Create(context.Background(), &entity.User{ID: "3", Username: "alice", Email: "other@example.com"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for username, got %v", err)
	}
}

func TestMemoryUserRepository_ReturnsCopies(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	seedMemoryUser(t, repo, "1", "alice", time.Now())

	user, _ := repo.FindByID(context.Background(), "1")
	user.Role = entity.RoleAdmin

	again, _ := repo.FindByID(context.Background(), "1")
	if again.IsAdmin() {
		t.Fatalf("expected stored record to be unaffected by caller mutation")
	}
}

func TestMemoryUserRepository_SwapRefreshTokenSingleWinner(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	seedMemoryUser(t, repo, "1", "alice", time.Now())
	_ = repo.SetRefreshToken(context.Background(), "1", "r0")

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			swapped, err := repo.SwapRefreshToken(context.Background(), "1", "r0", "r1")
			if err == nil && swapped {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestMemoryUserRepository_SwapRefreshTokenRequiresStoredToken(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	seedMemoryUser(t, repo, "1", "alice", time.Now())

	swapped, _ := repo.SwapRefreshToken(context.Background(), "1", "", "r1")
	if swapped {
		t.Fatalf("expected swap against an empty slot to fail")
	}
}

func TestMemoryUserRepository_ResetTokenLifecycle(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	seedMemoryUser(t, repo, "1", "alice", time.Now())
	now := time.Now()

	_ = repo.SetResetToken(context.Background(), "1", "digest", now.Add(time.Minute))

	user, _ := repo.FindByResetTokenHash(context.Background(), "digest", now)
	if user == nil {
		t.Fatalf("expected active reset token to be found")
	}
	if found, _ := repo.FindByResetTokenHash(context.Background(), "digest", now.Add(2*time.Minute)); found != nil {
		t.Fatalf("expected expired reset token to be ignored")
	}

	consumed, _ := repo.ConsumeResetToken(context.Background(), "1", "digest", now, "new-hash")
	if !consumed {
		t.Fatalf("expected consume to succeed")
	}
	consumed, _ = repo.ConsumeResetToken(context.Background(), "1", "digest", now, "again")
	if consumed {
		t.Fatalf("expected second consume to fail")
	}

	user, _ = repo.FindByID(context.Background(), "1")
	if user.PasswordHash != "new-hash" || user.ResetPasswordToken != "" || user.ResetPasswordExpiresAt != nil {
		t.Fatalf("unexpected user after consume: %+v", user)
	}
}

func TestMemoryUserRepository_ListNewestFirst(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	base := time.Now()
	seedMemoryUser(t, repo, "1", "first", base)
	seedMemoryUser(t, repo, "2", "second", base.Add(time.Second))
	seedMemoryUser(t, repo, "3", "third", base.Add(2*time.Second))

	page, err := repo.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if page.Total != 3 || len(page.Users) != 2 || page.Users[0].Username != "third" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, _ = repo.List(context.Background(), 2, 2)
	if len(page.Users) != 1 || page.Users[0].Username != "first" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}

func TestMemoryUserRepository_DeleteAndUpdateMissing(t *testing.T) {
	repo := repository.NewMemoryUserRepository()

	deleted, _ := repo.Delete(context.Background(), "nope")
	if deleted {
		t.Fatalf("expected delete of unknown id to report false")
	}
	user, err := repo.UpdateRole(context.Background(), "nope", entity.RoleAdmin)
	if err != nil || user != nil {
		t.Fatalf("expected nil, nil for unknown id, got %+v %v", user, err)
	}
}
