// Package catalog はマシンと運動種目のカタログ管理を提供する。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/repository"
)

// Sanitizer は自由記述欄のサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MachineInput はマシン作成・更新の入力。更新ではnilのフィールドは変更しない。
type MachineInput struct {
	Name        *string
	Description *string
	Location    *string
	Status      *string
}

// MachineService はマシン管理のサービス層。
//
// 状態の直接変更は利用中レコードと整合しない状態（en_uso なのに利用者がいない等）を
// 作りうる。これは管理者操作として許容し、監査ワーカーが検出する。
type MachineService struct {
	repo      repository.MachineRepository
	sanitizer Sanitizer
}

// NewMachineService はMachineServiceを生成する。
func NewMachineService(repo repository.MachineRepository, sanitizer Sanitizer) *MachineService {
	return &MachineService{repo: repo, sanitizer: sanitizer}
}

func parseStatus(raw string) (model.MachineStatus, error) {
	status := model.MachineStatus(raw)
	if !status.Valid() {
		return "", model.NewInvalidStatusError(raw)
	}
	return status, nil
}

// Create はマシンを作成する。状態の指定が無ければ disponible になる。
func (s *MachineService) Create(ctx context.Context, in MachineInput) (*model.Machine, error) {
	machine := &model.Machine{Status: model.MachineStatusAvailable}
	if err := s.apply(machine, in); err != nil {
		return nil, err
	}
	if machine.Name == "" {
		return nil, model.NewInvalidRequestError("nombre は必須です")
	}

	if err := s.repo.Create(ctx, machine); err != nil {
		return nil, fmt.Errorf("マシンの作成に失敗しました: %w", err)
	}

	slog.Info("マシンを作成しました",
		slog.Int64("machine_id", machine.ID),
		slog.String("status", string(machine.Status)),
	)
	return machine, nil
}

// List は全マシンを返す。
func (s *MachineService) List(ctx context.Context) ([]*model.Machine, error) {
	machines, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("マシン一覧の取得に失敗しました: %w", err)
	}
	return machines, nil
}

// ListByStatus は指定状態のマシンを返す。
func (s *MachineService) ListByStatus(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error) {
	machines, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("マシン一覧の取得に失敗しました: %w", err)
	}
	return machines, nil
}

// Get は指定IDのマシンを返す。
func (s *MachineService) Get(ctx context.Context, id int64) (*model.Machine, error) {
	machine, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("マシンの取得に失敗しました: %w", err)
	}
	if machine == nil {
		return nil, model.NewMachineNotFoundError(id)
	}
	return machine, nil
}

// Update はマシン情報を部分更新する。
func (s *MachineService) Update(ctx context.Context, id int64, in MachineInput) (*model.Machine, error) {
	machine, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(machine, in); err != nil {
		return nil, err
	}
	if machine.Name == "" {
		return nil, model.NewInvalidRequestError("nombre を空にはできません")
	}

	if err := s.repo.Update(ctx, machine); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewMachineNotFoundError(id)
		}
		return nil, fmt.Errorf("マシンの更新に失敗しました: %w", err)
	}
	return machine, nil
}

// SetStatus はマシンの状態のみを変更する。
func (s *MachineService) SetStatus(ctx context.Context, id int64, status string) (*model.Machine, error) {
	if _, err := parseStatus(status); err != nil {
		return nil, err
	}
	machine, err := s.Update(ctx, id, MachineInput{Status: &status})
	if err != nil {
		return nil, err
	}

	slog.Info("マシンの状態を変更しました",
		slog.Int64("machine_id", id),
		slog.String("status", status),
	)
	return machine, nil
}

// Delete はマシンを削除する。利用中レコードと利用履歴は残す。
func (s *MachineService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewMachineNotFoundError(id)
		}
		return fmt.Errorf("マシンの削除に失敗しました: %w", err)
	}

	slog.Info("マシンを削除しました", slog.Int64("machine_id", id))
	return nil
}

func (s *MachineService) apply(machine *model.Machine, in MachineInput) error {
	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			return err
		}
		machine.Status = status
	}
	if in.Name != nil {
		machine.Name = s.sanitizer.Sanitize(*in.Name)
	}
	if in.Description != nil {
		machine.Description = s.sanitizer.Sanitize(*in.Description)
	}
	if in.Location != nil {
		machine.Location = s.sanitizer.Sanitize(*in.Location)
	}
	return nil
}
