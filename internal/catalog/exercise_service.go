package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/repository"
)

// ExerciseInput は運動種目作成・更新の入力。更新ではnilのフィールドは変更しない。
// ClearMachine が true の場合はマシンとの紐付けを外す。
type ExerciseInput struct {
	Name         *string
	Description  *string
	MuscleGroup  *string
	MachineID    *int64
	ClearMachine bool
}

// ExerciseService は運動種目管理のサービス層。
type ExerciseService struct {
	repo      repository.ExerciseRepository
	machines  repository.MachineRepository
	sanitizer Sanitizer
}

// NewExerciseService はExerciseServiceを生成する。
func NewExerciseService(repo repository.ExerciseRepository, machines repository.MachineRepository, sanitizer Sanitizer) *ExerciseService {
	return &ExerciseService{repo: repo, machines: machines, sanitizer: sanitizer}
}

// Create は運動種目を作成する。紐付けるマシンが存在しなければMachineNotFoundを返す。
func (s *ExerciseService) Create(ctx context.Context, in ExerciseInput) (*model.Exercise, error) {
	exercise := &model.Exercise{}
	if err := s.apply(ctx, exercise, in); err != nil {
		return nil, err
	}
	if exercise.Name == "" {
		return nil, model.NewInvalidRequestError("nombre は必須です")
	}

	if err := s.repo.Create(ctx, exercise); err != nil {
		return nil, fmt.Errorf("運動種目の作成に失敗しました: %w", err)
	}
	return exercise, nil
}

// List は全運動種目を返す。
func (s *ExerciseService) List(ctx context.Context) ([]*model.Exercise, error) {
	exercises, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("運動種目一覧の取得に失敗しました: %w", err)
	}
	return exercises, nil
}

// ListByMachine は指定マシンに紐付く運動種目を返す。
func (s *ExerciseService) ListByMachine(ctx context.Context, machineID int64) ([]*model.Exercise, error) {
	exercises, err := s.repo.ListByMachineID(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("運動種目一覧の取得に失敗しました: %w", err)
	}
	return exercises, nil
}

// Get は指定IDの運動種目を返す。
func (s *ExerciseService) Get(ctx context.Context, id int64) (*model.Exercise, error) {
	exercise, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("運動種目の取得に失敗しました: %w", err)
	}
	if exercise == nil {
		return nil, model.NewExerciseNotFoundError(id)
	}
	return exercise, nil
}

// Update は運動種目を部分更新する。
func (s *ExerciseService) Update(ctx context.Context, id int64, in ExerciseInput) (*model.Exercise, error) {
	exercise, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, exercise, in); err != nil {
		return nil, err
	}
	if exercise.Name == "" {
		return nil, model.NewInvalidRequestError("nombre を空にはできません")
	}

	if err := s.repo.Update(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewExerciseNotFoundError(id)
		}
		return nil, fmt.Errorf("運動種目の更新に失敗しました: %w", err)
	}
	return exercise, nil
}

// Delete は運動種目を削除する。
func (s *ExerciseService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewExerciseNotFoundError(id)
		}
		return fmt.Errorf("運動種目の削除に失敗しました: %w", err)
	}
	return nil
}

func (s *ExerciseService) apply(ctx context.Context, exercise *model.Exercise, in ExerciseInput) error {
	switch {
	case in.ClearMachine:
		exercise.MachineID = nil
	case in.MachineID != nil:
		machine, err := s.machines.FindByID(ctx, *in.MachineID)
		if err != nil {
			return fmt.Errorf("マシンの取得に失敗しました: %w", err)
		}
		if machine == nil {
			return model.NewMachineNotFoundError(*in.MachineID)
		}
		id := machine.ID
		exercise.MachineID = &id
	}

	if in.Name != nil {
		exercise.Name = s.sanitizer.Sanitize(*in.Name)
	}
	if in.Description != nil {
		exercise.Description = s.sanitizer.Sanitize(*in.Description)
	}
	if in.MuscleGroup != nil {
		exercise.MuscleGroup = s.sanitizer.Sanitize(*in.MuscleGroup)
	}
	return nil
}
