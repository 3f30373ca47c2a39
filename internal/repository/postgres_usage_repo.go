package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/gymqr/internal/model"
)

// PostgresUsageRepo はPostgreSQLを使用した利用記録リポジトリ。
// Claim/Releaseの直列化は行ロック（SELECT ... FOR UPDATE）と
// active_sessions.machine_id の一意制約で担保する。
type PostgresUsageRepo struct {
	db *sql.DB
}

// NewPostgresUsageRepo はPostgresUsageRepoを生成する。
func NewPostgresUsageRepo(db *sql.DB) *PostgresUsageRepo {
	return &PostgresUsageRepo{db: db}
}

// RunInTx はfnを1つのデータベーストランザクションで実行する。
func (r *PostgresUsageRepo) RunInTx(ctx context.Context, fn func(tx UsageTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresUsageTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const (
	activeSessionColumns = `id, user_id, machine_id, started_at`
	historyColumns       = `id, user_id, machine_id, started_at, ended_at`
)

func scanActiveSession(row rowScanner) (*model.ActiveSession, error) {
	s := &model.ActiveSession{}
	if err := row.Scan(&s.ID, &s.UserID, &s.MachineID, &s.StartedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func scanHistory(row rowScanner) (*model.HistoryRecord, error) {
	h := &model.HistoryRecord{}
	if err := row.Scan(&h.ID, &h.UserID, &h.MachineID, &h.StartedAt, &h.EndedAt); err != nil {
		return nil, err
	}
	return h, nil
}

// ListActive は全ての利用中レコードをID昇順で返す。
func (r *PostgresUsageRepo) ListActive(ctx context.Context) ([]*model.ActiveSession, error) {
	return r.queryActive(ctx, `SELECT `+activeSessionColumns+` FROM active_sessions ORDER BY id`)
}

// ListActiveByUser は指定ユーザーの利用中レコードをID昇順で返す。
func (r *PostgresUsageRepo) ListActiveByUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
	return r.queryActive(ctx,
		`SELECT `+activeSessionColumns+` FROM active_sessions WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *PostgresUsageRepo) queryActive(ctx context.Context, query string, args ...any) ([]*model.ActiveSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*model.ActiveSession, 0)
	for rows.Next() {
		s, err := scanActiveSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active sessions: %w", err)
	}
	return sessions, nil
}

// ListHistory は全ての利用履歴を追記順で返す。
func (r *PostgresUsageRepo) ListHistory(ctx context.Context) ([]*model.HistoryRecord, error) {
	return r.queryHistory(ctx, `SELECT `+historyColumns+` FROM usage_history ORDER BY seq`)
}

// ListHistoryByUser は指定ユーザーの利用履歴を追記順で返す。
func (r *PostgresUsageRepo) ListHistoryByUser(ctx context.Context, userID int64) ([]*model.HistoryRecord, error) {
	return r.queryHistory(ctx,
		`SELECT `+historyColumns+` FROM usage_history WHERE user_id = $1 ORDER BY seq`, userID)
}

// ListHistoryByMachine は指定マシンの利用履歴を追記順で返す。
func (r *PostgresUsageRepo) ListHistoryByMachine(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error) {
	return r.queryHistory(ctx,
		`SELECT `+historyColumns+` FROM usage_history WHERE machine_id = $1 ORDER BY seq`, machineID)
}

func (r *PostgresUsageRepo) queryHistory(ctx context.Context, query string, args ...any) ([]*model.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage history: %w", err)
	}
	defer rows.Close()

	records := make([]*model.HistoryRecord, 0)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage history: %w", err)
		}
		records = append(records, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage history: %w", err)
	}
	return records, nil
}

// postgresUsageTx はRunInTx内の操作をsql.Txで実装する。
type postgresUsageTx struct {
	tx *sql.Tx
}

func (t *postgresUsageTx) LockMachine(ctx context.Context, machineID int64) (*model.Machine, error) {
	m, err := scanMachine(t.tx.QueryRowContext(ctx,
		`SELECT `+machineColumns+` FROM machines WHERE id = $1 FOR UPDATE`, machineID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock machine: %w", err)
	}
	return m, nil
}

func (t *postgresUsageTx) SetMachineStatus(ctx context.Context, machineID int64, status model.MachineStatus) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE machines SET status = $2, updated_at = now() WHERE id = $1`,
		machineID, string(status))
	if err != nil {
		return fmt.Errorf("failed to update machine status: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	return nil
}

func (t *postgresUsageTx) InsertActiveSession(ctx context.Context, session *model.ActiveSession) error {
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO active_sessions (user_id, machine_id, started_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		session.UserID, session.MachineID, session.StartedAt,
	).Scan(&session.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert active session: %w", err)
	}
	return nil
}

func (t *postgresUsageTx) LockActiveSession(ctx context.Context, sessionID int64) (*model.ActiveSession, error) {
	s, err := scanActiveSession(t.tx.QueryRowContext(ctx,
		`SELECT `+activeSessionColumns+` FROM active_sessions WHERE id = $1 FOR UPDATE`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock active session: %w", err)
	}
	return s, nil
}

func (t *postgresUsageTx) DeleteActiveSession(ctx context.Context, sessionID int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM active_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete active session: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	return nil
}

func (t *postgresUsageTx) AppendHistory(ctx context.Context, record *model.HistoryRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO usage_history (id, user_id, machine_id, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.UserID, record.MachineID, record.StartedAt, record.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage history: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ UsageRepository = (*PostgresUsageRepo)(nil)
	_ UsageTx         = (*postgresUsageTx)(nil)
)
