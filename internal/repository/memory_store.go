package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/gymqr/internal/model"
)

// MemoryStore はプロセス内メモリに全エンティティを保持するストア。
// 開発環境とテストで使用する。採番カウンタはストア内部に閉じ込め、
// 全ての読み書きを1つのRWMutexで直列化する。
// 利用中レコードのトランザクションもこのロックを保持したまま実行するため、
// Claim/Releaseの途中状態が他の読み取りから観測されることはない。
type MemoryStore struct {
	mu sync.RWMutex

	users     map[int64]*model.User
	machines  map[int64]*model.Machine
	exercises map[int64]*model.Exercise
	active    map[int64]*model.ActiveSession
	// activeByMachine はマシンIDから利用中レコードIDへの索引（一意制約）。
	activeByMachine map[int64]int64
	history         []*model.HistoryRecord

	nextUserID     int64
	nextMachineID  int64
	nextExerciseID int64
	nextSessionID  int64

	now func() time.Time
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[int64]*model.User),
		machines:        make(map[int64]*model.Machine),
		exercises:       make(map[int64]*model.Exercise),
		active:          make(map[int64]*model.ActiveSession),
		activeByMachine: make(map[int64]int64),
		nextUserID:      1,
		nextMachineID:   1,
		nextExerciseID:  1,
		nextSessionID:   1,
		now:             time.Now,
	}
}

// PingContext はHealthCheckerを実装する。メモリストアは常に利用可能。
func (s *MemoryStore) PingContext(ctx context.Context) error {
	return ctx.Err()
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// --- ユーザー ---

// MemoryUserRepo はMemoryStoreを使用したユーザーリポジトリ。
type MemoryUserRepo struct {
	store *MemoryStore
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo(store *MemoryStore) *MemoryUserRepo {
	return &MemoryUserRepo{store: store}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, u := range r.store.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// List は全ユーザーをID昇順で返す。
func (r *MemoryUserRepo) List(ctx context.Context) ([]*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]*model.User, 0, len(r.store.users))
	for _, id := range sortedKeys(r.store.users) {
		cp := *r.store.users[id]
		users = append(users, &cp)
	}
	return users, nil
}

// Count はユーザー数を返す。
func (r *MemoryUserRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.users), nil
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.emailTakenLocked(user.Email, 0) {
		return ErrDuplicate
	}

	now := r.store.now()
	user.ID = r.store.nextUserID
	r.store.nextUserID++
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	r.store.users[user.ID] = &cp
	return nil
}

// Update はユーザー情報を上書き更新する。
func (r *MemoryUserRepo) Update(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return ErrDuplicate
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = r.store.now()
	cp := *user
	r.store.users[user.ID] = &cp
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *MemoryUserRepo) DeleteByID(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.users, id)
	return nil
}

func (r *MemoryUserRepo) emailTakenLocked(email string, exceptID int64) bool {
	for id, u := range r.store.users {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// --- マシン ---

// MemoryMachineRepo はMemoryStoreを使用したマシンリポジトリ。
type MemoryMachineRepo struct {
	store *MemoryStore
}

// NewMemoryMachineRepo はMemoryMachineRepoを生成する。
func NewMemoryMachineRepo(store *MemoryStore) *MemoryMachineRepo {
	return &MemoryMachineRepo{store: store}
}

// FindByID は指定IDのマシンを取得する。見つからない場合はnilを返す。
func (r *MemoryMachineRepo) FindByID(ctx context.Context, id int64) (*model.Machine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	m, ok := r.store.machines[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

// List は全マシンをID昇順で返す。
func (r *MemoryMachineRepo) List(ctx context.Context) ([]*model.Machine, error) {
	return r.list(func(*model.Machine) bool { return true }), nil
}

// ListByStatus は指定状態のマシンをID昇順で返す。
func (r *MemoryMachineRepo) ListByStatus(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error) {
	return r.list(func(m *model.Machine) bool { return m.Status == status }), nil
}

func (r *MemoryMachineRepo) list(match func(*model.Machine) bool) []*model.Machine {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	machines := make([]*model.Machine, 0, len(r.store.machines))
	for _, id := range sortedKeys(r.store.machines) {
		m := r.store.machines[id]
		if match(m) {
			cp := *m
			machines = append(machines, &cp)
		}
	}
	return machines
}

// Create はマシンを作成する。
func (r *MemoryMachineRepo) Create(ctx context.Context, machine *model.Machine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	machine.ID = r.store.nextMachineID
	r.store.nextMachineID++
	machine.CreatedAt = now
	machine.UpdatedAt = now

	cp := *machine
	r.store.machines[machine.ID] = &cp
	return nil
}

// Update はマシン情報を上書き更新する。
func (r *MemoryMachineRepo) Update(ctx context.Context, machine *model.Machine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.machines[machine.ID]
	if !ok {
		return ErrNotFound
	}
	machine.CreatedAt = existing.CreatedAt
	machine.UpdatedAt = r.store.now()
	cp := *machine
	r.store.machines[machine.ID] = &cp
	return nil
}

// DeleteByID は指定IDのマシンを削除する。
func (r *MemoryMachineRepo) DeleteByID(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.machines[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.machines, id)
	return nil
}

// --- 運動種目 ---

// MemoryExerciseRepo はMemoryStoreを使用した運動種目リポジトリ。
type MemoryExerciseRepo struct {
	store *MemoryStore
}

// NewMemoryExerciseRepo はMemoryExerciseRepoを生成する。
func NewMemoryExerciseRepo(store *MemoryStore) *MemoryExerciseRepo {
	return &MemoryExerciseRepo{store: store}
}

func copyExercise(e *model.Exercise) *model.Exercise {
	cp := *e
	if e.MachineID != nil {
		id := *e.MachineID
		cp.MachineID = &id
	}
	return &cp
}

// FindByID は指定IDの運動種目を取得する。見つからない場合はnilを返す。
func (r *MemoryExerciseRepo) FindByID(ctx context.Context, id int64) (*model.Exercise, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.exercises[id]
	if !ok {
		return nil, nil
	}
	return copyExercise(e), nil
}

// List は全運動種目をID昇順で返す。
func (r *MemoryExerciseRepo) List(ctx context.Context) ([]*model.Exercise, error) {
	return r.list(func(*model.Exercise) bool { return true }), nil
}

// ListByMachineID は指定マシンに紐付く運動種目をID昇順で返す。
func (r *MemoryExerciseRepo) ListByMachineID(ctx context.Context, machineID int64) ([]*model.Exercise, error) {
	return r.list(func(e *model.Exercise) bool {
		return e.MachineID != nil && *e.MachineID == machineID
	}), nil
}

func (r *MemoryExerciseRepo) list(match func(*model.Exercise) bool) []*model.Exercise {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	exercises := make([]*model.Exercise, 0, len(r.store.exercises))
	for _, id := range sortedKeys(r.store.exercises) {
		e := r.store.exercises[id]
		if match(e) {
			exercises = append(exercises, copyExercise(e))
		}
	}
	return exercises
}

// Create は運動種目を作成する。
func (r *MemoryExerciseRepo) Create(ctx context.Context, exercise *model.Exercise) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := r.store.now()
	exercise.ID = r.store.nextExerciseID
	r.store.nextExerciseID++
	exercise.CreatedAt = now
	exercise.UpdatedAt = now

	r.store.exercises[exercise.ID] = copyExercise(exercise)
	return nil
}

// Update は運動種目を上書き更新する。
func (r *MemoryExerciseRepo) Update(ctx context.Context, exercise *model.Exercise) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, ok := r.store.exercises[exercise.ID]
	if !ok {
		return ErrNotFound
	}
	exercise.CreatedAt = existing.CreatedAt
	exercise.UpdatedAt = r.store.now()
	r.store.exercises[exercise.ID] = copyExercise(exercise)
	return nil
}

// DeleteByID は指定IDの運動種目を削除する。
func (r *MemoryExerciseRepo) DeleteByID(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.exercises[id]; !ok {
		return ErrNotFound
	}
	delete(r.store.exercises, id)
	return nil
}

// compile-time interface check
var (
	_ UserRepository     = (*MemoryUserRepo)(nil)
	_ MachineRepository  = (*MemoryMachineRepo)(nil)
	_ ExerciseRepository = (*MemoryExerciseRepo)(nil)
	_ HealthChecker      = (*MemoryStore)(nil)
)
