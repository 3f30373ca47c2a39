package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gymqr/internal/catalog"
	"github.com/hitoshi/gymqr/internal/config"
	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/user"
)

type demoMachine struct {
	name     string
	location string
}

var demoMachines = []demoMachine{
	{name: "Press banca", location: "Sala 1"},
	{name: "Máquina cardio 1", location: "Cardio"},
}

// Seed は管理者ユーザーとデモ用マシンを投入する。
// 何度実行しても同じ状態になる: 管理者が既に存在する場合や
// マシンが1台でも登録済みの場合はその投入を省略する。
func Seed(ctx context.Context, cfg *config.Config, users *user.Service, machines *catalog.MachineService) error {
	admin, err := users.Create(ctx, user.CreateInput{
		Name:     "Administrador",
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
		Role:     model.RoleAdmin,
	})
	switch {
	case model.HasCode(err, model.ErrCodeEmailTaken):
		slog.Info("seed: admin user already exists", slog.String("email", cfg.SeedAdminEmail))
	case err != nil:
		return fmt.Errorf("failed to seed admin user: %w", err)
	default:
		slog.Info("seed: admin user created", slog.Int64("user_id", admin.ID))
	}

	existing, err := machines.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list machines: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("seed: machines already registered", slog.Int("count", len(existing)))
		return nil
	}

	for _, d := range demoMachines {
		name, location := d.name, d.location
		m, err := machines.Create(ctx, catalog.MachineInput{Name: &name, Location: &location})
		if err != nil {
			return fmt.Errorf("failed to seed machine %q: %w", d.name, err)
		}
		slog.Info("seed: machine created",
			slog.Int64("machine_id", m.ID),
			slog.String("name", m.Name),
		)
	}
	return nil
}
