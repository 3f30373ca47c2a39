package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gymqr/internal/model"
)

// PostgresMachineRepo はPostgreSQLを使用したマシンリポジトリ。
type PostgresMachineRepo struct {
	db *sql.DB
}

// NewPostgresMachineRepo はPostgresMachineRepoを生成する。
func NewPostgresMachineRepo(db *sql.DB) *PostgresMachineRepo {
	return &PostgresMachineRepo{db: db}
}

const machineColumns = `id, name, description, location, status, created_at, updated_at`

func scanMachine(row rowScanner) (*model.Machine, error) {
	m := &model.Machine{}
	var description, location sql.NullString
	var status string
	if err := row.Scan(&m.ID, &m.Name, &description, &location, &status,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Description = nullStringValue(description)
	m.Location = nullStringValue(location)
	m.Status = model.MachineStatus(status)
	return m, nil
}

// FindByID は指定IDのマシンを取得する。見つからない場合はnilを返す。
func (r *PostgresMachineRepo) FindByID(ctx context.Context, id int64) (*model.Machine, error) {
	m, err := scanMachine(r.db.QueryRowContext(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find machine by ID: %w", err)
	}
	return m, nil
}

// List は全マシンをID昇順で返す。
func (r *PostgresMachineRepo) List(ctx context.Context) ([]*model.Machine, error) {
	return r.query(ctx, `SELECT `+machineColumns+` FROM machines ORDER BY id`)
}

// ListByStatus は指定状態のマシンをID昇順で返す。
func (r *PostgresMachineRepo) ListByStatus(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error) {
	return r.query(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE status = $1 ORDER BY id`, string(status))
}

func (r *PostgresMachineRepo) query(ctx context.Context, query string, args ...any) ([]*model.Machine, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	defer rows.Close()

	machines := make([]*model.Machine, 0)
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate machines: %w", err)
	}
	return machines, nil
}

// Create はマシンを作成する。
func (r *PostgresMachineRepo) Create(ctx context.Context, machine *model.Machine) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO machines (name, description, location, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		machine.Name, nullString(machine.Description), nullString(machine.Location), string(machine.Status),
	).Scan(&machine.ID, &machine.CreatedAt, &machine.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert machine: %w", err)
	}
	return nil
}

// Update はマシン情報を上書き更新する。
func (r *PostgresMachineRepo) Update(ctx context.Context, machine *model.Machine) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE machines
		 SET name = $2, description = $3, location = $4, status = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		machine.ID, machine.Name, nullString(machine.Description), nullString(machine.Location), string(machine.Status),
	).Scan(&machine.CreatedAt, &machine.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update machine: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのマシンを削除する。
// 紐付く運動種目のmachine_idはON DELETE SET NULLで外れる。
func (r *PostgresMachineRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM machines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete machine: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	return nil
}

// PostgresExerciseRepo はPostgreSQLを使用した運動種目リポジトリ。
type PostgresExerciseRepo struct {
	db *sql.DB
}

// NewPostgresExerciseRepo はPostgresExerciseRepoを生成する。
func NewPostgresExerciseRepo(db *sql.DB) *PostgresExerciseRepo {
	return &PostgresExerciseRepo{db: db}
}

const exerciseColumns = `id, name, description, muscle_group, machine_id, created_at, updated_at`

func scanExercise(row rowScanner) (*model.Exercise, error) {
	e := &model.Exercise{}
	var description, muscleGroup sql.NullString
	var machineID sql.NullInt64
	if err := row.Scan(&e.ID, &e.Name, &description, &muscleGroup, &machineID,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Description = nullStringValue(description)
	e.MuscleGroup = nullStringValue(muscleGroup)
	if machineID.Valid {
		e.MachineID = &machineID.Int64
	}
	return e, nil
}

func nullMachineID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// FindByID は指定IDの運動種目を取得する。見つからない場合はnilを返す。
func (r *PostgresExerciseRepo) FindByID(ctx context.Context, id int64) (*model.Exercise, error) {
	e, err := scanExercise(r.db.QueryRowContext(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find exercise by ID: %w", err)
	}
	return e, nil
}

// List は全運動種目をID昇順で返す。
func (r *PostgresExerciseRepo) List(ctx context.Context) ([]*model.Exercise, error) {
	return r.query(ctx, `SELECT `+exerciseColumns+` FROM exercises ORDER BY id`)
}

// ListByMachineID は指定マシンに紐付く運動種目をID昇順で返す。
func (r *PostgresExerciseRepo) ListByMachineID(ctx context.Context, machineID int64) ([]*model.Exercise, error) {
	return r.query(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE machine_id = $1 ORDER BY id`, machineID)
}

func (r *PostgresExerciseRepo) query(ctx context.Context, query string, args ...any) ([]*model.Exercise, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	defer rows.Close()

	exercises := make([]*model.Exercise, 0)
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exercises: %w", err)
	}
	return exercises, nil
}

// Create は運動種目を作成する。
func (r *PostgresExerciseRepo) Create(ctx context.Context, exercise *model.Exercise) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO exercises (name, description, muscle_group, machine_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		exercise.Name, nullString(exercise.Description), nullString(exercise.MuscleGroup),
		nullMachineID(exercise.MachineID),
	).Scan(&exercise.ID, &exercise.CreatedAt, &exercise.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert exercise: %w", err)
	}
	return nil
}

// Update は運動種目を上書き更新する。
func (r *PostgresExerciseRepo) Update(ctx context.Context, exercise *model.Exercise) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE exercises
		 SET name = $2, description = $3, muscle_group = $4, machine_id = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		exercise.ID, exercise.Name, nullString(exercise.Description), nullString(exercise.MuscleGroup),
		nullMachineID(exercise.MachineID),
	).Scan(&exercise.CreatedAt, &exercise.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの運動種目を削除する。
func (r *PostgresExerciseRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ MachineRepository  = (*PostgresMachineRepo)(nil)
	_ ExerciseRepository = (*PostgresExerciseRepo)(nil)
)
