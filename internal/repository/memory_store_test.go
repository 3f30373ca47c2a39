package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/gymqr/internal/model"
)

func TestMemoryUserRepo_CreateAssignsSequentialIDs(t *testing.T) {
	repo := NewMemoryUserRepo(NewMemoryStore())
	ctx := context.Background()

	a := &model.User{Name: "Ana", Email: "ana@example.com", Role: model.RoleUser}
	b := &model.User{Name: "Luis", Email: "luis@example.com", Role: model.RoleUser}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", a.ID, b.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryUserRepo_DuplicateEmailIgnoresCase(t *testing.T) {
	repo := NewMemoryUserRepo(NewMemoryStore())
	ctx := context.Background()

	_ = repo.Create(ctx, &model.User{Name: "Ana", Email: "ana@example.com"})
	err := repo.Create(ctx, &model.User{Name: "Ana 2", Email: "ANA@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	found, _ := repo.FindByEmail(ctx, "Ana@Example.com")
	if found == nil || found.Name != "Ana" {
		t.Errorf("FindByEmail = %+v", found)
	}
}

func TestMemoryUserRepo_ReturnsCopies(t *testing.T) {
	repo := NewMemoryUserRepo(NewMemoryStore())
	ctx := context.Background()
	u := &model.User{Name: "Ana", Email: "ana@example.com"}
	_ = repo.Create(ctx, u)

	got, _ := repo.FindByID(ctx, u.ID)
	got.Name = "changed"

	again, _ := repo.FindByID(ctx, u.ID)
	if again.Name != "Ana" {
		t.Errorf("stored user mutated through returned pointer: %q", again.Name)
	}
}

func TestMemoryUserRepo_NotFound(t *testing.T) {
	repo := NewMemoryUserRepo(NewMemoryStore())
	ctx := context.Background()

	u, err := repo.FindByID(ctx, 99)
	if u != nil || err != nil {
		t.Errorf("FindByID = %v, %v, want nil, nil", u, err)
	}
	if err := repo.DeleteByID(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteByID err = %v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, &model.User{ID: 99}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update err = %v, want ErrNotFound", err)
	}
}

func TestMemoryMachineRepo_ListByStatus(t *testing.T) {
	repo := NewMemoryMachineRepo(NewMemoryStore())
	ctx := context.Background()

	_ = repo.Create(ctx, &model.Machine{Name: "A", Status: model.MachineStatusAvailable})
	_ = repo.Create(ctx, &model.Machine{Name: "B", Status: model.MachineStatusMaintenance})
	_ = repo.Create(ctx, &model.Machine{Name: "C", Status: model.MachineStatusAvailable})

	got, err := repo.ListByStatus(ctx, model.MachineStatusAvailable)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "C" {
		t.Errorf("ListByStatus = %+v", got)
	}
}

func TestMemoryExerciseRepo_ListByMachineID(t *testing.T) {
	repo := NewMemoryExerciseRepo(NewMemoryStore())
	ctx := context.Background()
	one := int64(1)

	_ = repo.Create(ctx, &model.Exercise{Name: "Press", MachineID: &one})
	_ = repo.Create(ctx, &model.Exercise{Name: "Plancha"})

	got, _ := repo.ListByMachineID(ctx, 1)
	if len(got) != 1 || got[0].Name != "Press" {
		t.Errorf("ListByMachineID = %+v", got)
	}

	// 返却値のポインタを書き換えても保存値に影響しないこと
	*got[0].MachineID = 5
	again, _ := repo.ListByMachineID(ctx, 1)
	if len(again) != 1 {
		t.Error("stored exercise mutated through returned pointer")
	}
}

func TestMemoryUsageRepo_OneActiveSessionPerMachine(t *testing.T) {
	store := NewMemoryStore()
	repo := NewMemoryUsageRepo(store)
	ctx := context.Background()

	err := repo.RunInTx(ctx, func(tx UsageTx) error {
		if err := tx.InsertActiveSession(ctx, &model.ActiveSession{UserID: 7, MachineID: 1}); err != nil {
			return err
		}
		return tx.InsertActiveSession(ctx, &model.ActiveSession{UserID: 8, MachineID: 1})
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	active, _ := repo.ListActive(ctx)
	if len(active) != 0 {
		t.Errorf("active = %d, want 0 after rollback", len(active))
	}
}

func TestMemoryUsageRepo_SetStatusUnknownMachine(t *testing.T) {
	repo := NewMemoryUsageRepo(NewMemoryStore())
	ctx := context.Background()

	err := repo.RunInTx(ctx, func(tx UsageTx) error {
		return tx.SetMachineStatus(ctx, 1, model.MachineStatusInUse)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryUsageRepo_CancelledContext(t *testing.T) {
	repo := NewMemoryUsageRepo(NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.RunInTx(ctx, func(tx UsageTx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("err = %v, called = %v", err, called)
	}
}
