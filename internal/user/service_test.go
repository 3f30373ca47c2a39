package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/repository"
)

// --- モック ---

type mockHasher struct{}

func (mockHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

type mockSessionLister struct {
	activeFn func(ctx context.Context, userID int64) ([]*model.ActiveSession, error)
}

func (m *mockSessionLister) ActiveSessionsForUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx, userID)
	}
	return nil, nil
}

func newTestService(lister ActiveSessionLister) (*Service, *repository.MemoryUserRepo) {
	repo := repository.NewMemoryUserRepo(repository.NewMemoryStore())
	return NewService(repo, mockHasher{}, lister), repo
}

func strPtr(s string) *string { return &s }

func TestCreate_DefaultsToUsuario(t *testing.T) {
	svc, _ := newTestService(nil)

	u, err := svc.Create(context.Background(), CreateInput{Name: "Ana", Email: "ana@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if u.Role != model.RoleUser {
		t.Errorf("role = %s, want usuario", u.Role)
	}
	if u.PasswordHash != "hashed:x" {
		t.Errorf("PasswordHash = %q", u.PasswordHash)
	}
}

func TestCreate_InvalidRole(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.Create(context.Background(), CreateInput{Email: "a@b.c", Password: "x", Role: "root"})
	if !model.HasCode(err, model.ErrCodeInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	_, _ = svc.Create(ctx, CreateInput{Email: "a@b.c", Password: "x"})
	_, err := svc.Create(ctx, CreateInput{Email: "a@b.c", Password: "y"})
	if !model.HasCode(err, model.ErrCodeEmailTaken) {
		t.Fatalf("err = %v, want EMAIL_TAKEN", err)
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateInput{Name: "Ana", Email: "a@b.c", Password: "x"})

	admin := model.RoleAdmin
	got, err := svc.Update(ctx, u.ID, UpdateInput{Name: strPtr("Ana María"), Role: &admin})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got.Name != "Ana María" || got.Role != model.RoleAdmin || got.Email != "a@b.c" {
		t.Errorf("user = %+v", got)
	}
	if got.PasswordHash != "hashed:x" {
		t.Error("password must not change when not provided")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.Update(context.Background(), 99, UpdateInput{Name: strPtr("x")})
	if !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Fatalf("err = %v, want USER_NOT_FOUND", err)
	}
}

func TestDelete_RejectsUserWithActiveSessions(t *testing.T) {
	lister := &mockSessionLister{
		activeFn: func(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
			return []*model.ActiveSession{{ID: 1, UserID: userID, MachineID: 3}}, nil
		},
	}
	svc, repo := newTestService(lister)
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateInput{Email: "a@b.c", Password: "x"})

	err := svc.Delete(ctx, u.ID)
	if !model.HasCode(err, model.ErrCodeUserHasActiveSessions) {
		t.Fatalf("err = %v, want USER_HAS_ACTIVE_SESSIONS", err)
	}
	if still, _ := repo.FindByID(ctx, u.ID); still == nil {
		t.Error("user should not be deleted")
	}
}

func TestDelete_Success(t *testing.T) {
	svc, repo := newTestService(&mockSessionLister{})
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateInput{Email: "a@b.c", Password: "x"})

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if gone, _ := repo.FindByID(ctx, u.ID); gone != nil {
		t.Error("user should be deleted")
	}
	if err := svc.Delete(ctx, u.ID); !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("second Delete err = %v, want USER_NOT_FOUND", err)
	}
}

func TestDelete_ListerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := newTestService(&mockSessionLister{
		activeFn: func(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
			return nil, boom
		},
	})
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateInput{Email: "a@b.c", Password: "x"})

	if err := svc.Delete(ctx, u.ID); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
