package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/identity"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	pool := newSchemaPool(t)
	repo := identity.NewRepoPG(pool)

	admin := createTestUser(t, ctx, pool, "admin@example.com", auth.RoleAdmin)
	createTestUser(t, ctx, pool, "reviewer@example.com", auth.RoleReviewer)

	t.Run("GetByEmailIgnoresCase", func(t *testing.T) {
		u, err := repo.GetByEmail(ctx, "ADMIN@Example.com")
		if err != nil {
			t.Fatalf("get by email: %v", err)
		}
		if u.ID != admin.ID || u.PasswordHash == "" {
			t.Errorf("unexpected user %+v", u)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		dup := &identity.User{Email: "admin@example.com", Name: "Dup", PasswordHash: "x", Role: auth.RoleUser, IsActive: true}
		if err := repo.Create(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		users, total, err := repo.List(ctx, identity.UserFilter{Role: auth.RoleReviewer, Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if total != 1 || len(users) != 1 || users[0].Role != auth.RoleReviewer {
			t.Errorf("unexpected reviewers %d/%v", total, users)
		}
	})

	t.Run("UpdateAndTouch", func(t *testing.T) {
		admin.Name = "Renamed"
		admin.Organization = ptrStr("Acme Pharma")
		if err := repo.Update(ctx, admin); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := repo.TouchLastLogin(ctx, admin.ID); err != nil {
			t.Fatalf("touch: %v", err)
		}
		got, err := repo.GetByID(ctx, admin.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Renamed" || got.Organization == nil || *got.Organization != "Acme Pharma" || got.LastLoginAt == nil {
			t.Errorf("unexpected user %+v", got)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		u := createTestUser(t, ctx, pool, "gone@example.com", auth.RoleUser)
		if err := repo.Delete(ctx, u.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, u.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
