// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/gymqr/internal/model"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しないことを表す。
	// 検索系メソッドは見つからない場合にnilを返し、このエラーは使わない。
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate は一意制約（メールアドレス、マシンごとの利用中レコード）に違反したことを表す。
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーをID昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Count はユーザー数を返す。
	Count(ctx context.Context) (int, error)

	// Create はユーザーを作成し、採番したIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザー情報を上書き更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error
}

// MachineRepository はマシンデータの永続化インターフェース。
type MachineRepository interface {
	// FindByID は指定IDのマシンを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Machine, error)

	// List は全マシンをID昇順で返す。
	List(ctx context.Context) ([]*model.Machine, error)

	// ListByStatus は指定状態のマシンをID昇順で返す。
	ListByStatus(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error)

	// Create はマシンを作成し、採番したIDをmachine.IDに設定する。
	Create(ctx context.Context, machine *model.Machine) error

	// Update はマシン情報（状態を含む）を上書き更新する。
	// 管理者による直接編集のため、利用中レコードとの整合性は検査しない。
	Update(ctx context.Context, machine *model.Machine) error

	// DeleteByID は指定IDのマシンを削除する。存在しない場合はErrNotFoundを返す。
	// 利用中レコードと履歴は削除しない。
	DeleteByID(ctx context.Context, id int64) error
}

// ExerciseRepository は運動種目データの永続化インターフェース。
type ExerciseRepository interface {
	// FindByID は指定IDの運動種目を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Exercise, error)

	// List は全運動種目をID昇順で返す。
	List(ctx context.Context) ([]*model.Exercise, error)

	// ListByMachineID は指定マシンに紐付く運動種目をID昇順で返す。
	ListByMachineID(ctx context.Context, machineID int64) ([]*model.Exercise, error)

	// Create は運動種目を作成し、採番したIDをexercise.IDに設定する。
	Create(ctx context.Context, exercise *model.Exercise) error

	// Update は運動種目を上書き更新する。
	Update(ctx context.Context, exercise *model.Exercise) error

	// DeleteByID は指定IDの運動種目を削除する。存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id int64) error
}

// UsageRepository は利用中レコードと利用履歴の永続化インターフェース。
// マシンの状態と利用中レコードを同時に変更する操作はRunInTxの中で行う。
type UsageRepository interface {
	// RunInTx はfnを1つのトランザクションとして実行する。
	// fnがエラーを返した場合は全ての変更を取り消し、そのエラーをそのまま返す。
	// 同一マシンに対するトランザクションは直列化される。
	RunInTx(ctx context.Context, fn func(tx UsageTx) error) error

	// ListActive は全ての利用中レコードをID昇順で返す。
	ListActive(ctx context.Context) ([]*model.ActiveSession, error)

	// ListActiveByUser は指定ユーザーの利用中レコードをID昇順で返す。
	ListActiveByUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error)

	// ListHistory は全ての利用履歴を追記順で返す。
	ListHistory(ctx context.Context) ([]*model.HistoryRecord, error)

	// ListHistoryByUser は指定ユーザーの利用履歴を追記順で返す。
	ListHistoryByUser(ctx context.Context, userID int64) ([]*model.HistoryRecord, error)

	// ListHistoryByMachine は指定マシンの利用履歴を追記順で返す。
	ListHistoryByMachine(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error)
}

// UsageTx はRunInTx内で使用するトランザクション操作。
type UsageTx interface {
	// LockMachine はマシンを排他ロックして取得する。見つからない場合はnilを返す。
	LockMachine(ctx context.Context, machineID int64) (*model.Machine, error)

	// SetMachineStatus はマシンの状態を更新する。存在しない場合はErrNotFoundを返す。
	SetMachineStatus(ctx context.Context, machineID int64, status model.MachineStatus) error

	// InsertActiveSession は利用中レコードを作成し、採番したIDをsession.IDに設定する。
	// 同一マシンの利用中レコードが既に存在する場合はErrDuplicateを返す。
	InsertActiveSession(ctx context.Context, session *model.ActiveSession) error

	// LockActiveSession は利用中レコードを排他ロックして取得する。見つからない場合はnilを返す。
	LockActiveSession(ctx context.Context, sessionID int64) (*model.ActiveSession, error)

	// DeleteActiveSession は利用中レコードを削除する。存在しない場合はErrNotFoundを返す。
	DeleteActiveSession(ctx context.Context, sessionID int64) error

	// AppendHistory は利用履歴を追記する。
	AppendHistory(ctx context.Context, record *model.HistoryRecord) error
}

// HealthChecker はストレージの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
