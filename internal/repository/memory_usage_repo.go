package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/gymqr/internal/model"
)

// MemoryUsageRepo はMemoryStoreを使用した利用記録リポジトリ。
type MemoryUsageRepo struct {
	store *MemoryStore
}

// NewMemoryUsageRepo はMemoryUsageRepoを生成する。
func NewMemoryUsageRepo(store *MemoryStore) *MemoryUsageRepo {
	return &MemoryUsageRepo{store: store}
}

// RunInTx はストアの書き込みロックを保持したままfnを実行する。
// fnがエラーを返した場合は取り消しログを逆順に適用して変更を元に戻す。
func (r *MemoryUsageRepo) RunInTx(ctx context.Context, fn func(tx UsageTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx := &memoryUsageTx{store: r.store}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// ListActive は全ての利用中レコードをID昇順で返す。
func (r *MemoryUsageRepo) ListActive(ctx context.Context) ([]*model.ActiveSession, error) {
	return r.listActive(func(*model.ActiveSession) bool { return true }), nil
}

// ListActiveByUser は指定ユーザーの利用中レコードをID昇順で返す。
func (r *MemoryUsageRepo) ListActiveByUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
	return r.listActive(func(s *model.ActiveSession) bool { return s.UserID == userID }), nil
}

func (r *MemoryUsageRepo) listActive(match func(*model.ActiveSession) bool) []*model.ActiveSession {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sessions := make([]*model.ActiveSession, 0)
	for _, id := range sortedKeys(r.store.active) {
		s := r.store.active[id]
		if match(s) {
			cp := *s
			sessions = append(sessions, &cp)
		}
	}
	return sessions
}

// ListHistory は全ての利用履歴を追記順で返す。
func (r *MemoryUsageRepo) ListHistory(ctx context.Context) ([]*model.HistoryRecord, error) {
	return r.listHistory(func(*model.HistoryRecord) bool { return true }), nil
}

// ListHistoryByUser は指定ユーザーの利用履歴を追記順で返す。
func (r *MemoryUsageRepo) ListHistoryByUser(ctx context.Context, userID int64) ([]*model.HistoryRecord, error) {
	return r.listHistory(func(h *model.HistoryRecord) bool { return h.UserID == userID }), nil
}

// ListHistoryByMachine は指定マシンの利用履歴を追記順で返す。
func (r *MemoryUsageRepo) ListHistoryByMachine(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error) {
	return r.listHistory(func(h *model.HistoryRecord) bool { return h.MachineID == machineID }), nil
}

func (r *MemoryUsageRepo) listHistory(match func(*model.HistoryRecord) bool) []*model.HistoryRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]*model.HistoryRecord, 0)
	for _, h := range r.store.history {
		if match(h) {
			cp := *h
			records = append(records, &cp)
		}
	}
	return records
}

// memoryUsageTx はRunInTx内の操作。呼び出し時点でstore.muの書き込みロックを保持している。
type memoryUsageTx struct {
	store *MemoryStore
	undo  []func()
}

func (tx *memoryUsageTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryUsageTx) LockMachine(ctx context.Context, machineID int64) (*model.Machine, error) {
	m, ok := tx.store.machines[machineID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (tx *memoryUsageTx) SetMachineStatus(ctx context.Context, machineID int64, status model.MachineStatus) error {
	m, ok := tx.store.machines[machineID]
	if !ok {
		return ErrNotFound
	}
	prevStatus, prevUpdated := m.Status, m.UpdatedAt
	m.Status = status
	m.UpdatedAt = tx.store.now()
	tx.undo = append(tx.undo, func() {
		m.Status = prevStatus
		m.UpdatedAt = prevUpdated
	})
	return nil
}

func (tx *memoryUsageTx) InsertActiveSession(ctx context.Context, session *model.ActiveSession) error {
	if _, taken := tx.store.activeByMachine[session.MachineID]; taken {
		return ErrDuplicate
	}

	session.ID = tx.store.nextSessionID
	tx.store.nextSessionID++

	cp := *session
	tx.store.active[cp.ID] = &cp
	tx.store.activeByMachine[cp.MachineID] = cp.ID
	tx.undo = append(tx.undo, func() {
		delete(tx.store.active, cp.ID)
		delete(tx.store.activeByMachine, cp.MachineID)
		// 採番は巻き戻さない（Postgresのシーケンスと同じ挙動）
	})
	return nil
}

func (tx *memoryUsageTx) LockActiveSession(ctx context.Context, sessionID int64) (*model.ActiveSession, error) {
	s, ok := tx.store.active[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (tx *memoryUsageTx) DeleteActiveSession(ctx context.Context, sessionID int64) error {
	s, ok := tx.store.active[sessionID]
	if !ok {
		return ErrNotFound
	}
	delete(tx.store.active, sessionID)
	delete(tx.store.activeByMachine, s.MachineID)
	tx.undo = append(tx.undo, func() {
		tx.store.active[s.ID] = s
		tx.store.activeByMachine[s.MachineID] = s.ID
	})
	return nil
}

func (tx *memoryUsageTx) AppendHistory(ctx context.Context, record *model.HistoryRecord) error {
	if record.ID == 0 {
		return fmt.Errorf("append history: record id is required")
	}
	cp := *record
	n := len(tx.store.history)
	tx.store.history = append(tx.store.history, &cp)
	tx.undo = append(tx.undo, func() {
		tx.store.history = tx.store.history[:n]
	})
	return nil
}

// compile-time interface check
var (
	_ UsageRepository = (*MemoryUsageRepo)(nil)
	_ UsageTx         = (*memoryUsageTx)(nil)
)
