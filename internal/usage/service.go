// Package usage はマシン利用の台帳（Claim/Release）のドメインロジックを提供する。
//
// マシンの状態、利用中レコード、利用履歴の3つを1つのトランザクションで更新し、
// 操作完了後にこれらが互いに矛盾した状態で観測されないことを保証する。
package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/repository"
)

// 操作結果のラベル。メトリクスの result ラベルに使用する。
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultForbid   = "forbidden"
	ResultError    = "error"
)

// MetricsRecorder は台帳操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordClaim(result string)
	RecordRelease(result string)
	ObserveSessionDuration(d time.Duration)
	AddActiveSessions(delta float64)
}

type noopMetrics struct{}

func (noopMetrics) RecordClaim(string)                   {}
func (noopMetrics) RecordRelease(string)                 {}
func (noopMetrics) ObserveSessionDuration(time.Duration) {}
func (noopMetrics) AddActiveSessions(float64)            {}

// Service はマシン利用台帳のサービス層。
type Service struct {
	repo    repository.UsageRepository
	metrics MetricsRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsとloggerはnilでもよい。
func NewService(repo repository.UsageRepository, metrics MetricsRecorder, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える（テスト用）。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Claim はマシンの利用を開始する。
// マシンが存在しなければNotFound、disponible以外ならMachineUnavailableを返す。
// 同一マシンへの並行したClaimは高々1件のみ成功する。
func (s *Service) Claim(ctx context.Context, userID, machineID int64) (*model.ActiveSession, error) {
	var session *model.ActiveSession

	err := s.repo.RunInTx(ctx, func(tx repository.UsageTx) error {
		machine, err := tx.LockMachine(ctx, machineID)
		if err != nil {
			return err
		}
		if machine == nil {
			return model.NewMachineNotFoundError(machineID)
		}
		if machine.Status != model.MachineStatusAvailable {
			return model.NewMachineUnavailableError(machineID, machine.Status)
		}

		session = &model.ActiveSession{
			UserID:    userID,
			MachineID: machineID,
			StartedAt: s.now(),
		}
		if err := tx.InsertActiveSession(ctx, session); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return model.NewMachineUnavailableError(machineID, model.MachineStatusInUse)
			}
			return err
		}

		return tx.SetMachineStatus(ctx, machineID, model.MachineStatusInUse)
	})
	if err != nil {
		err = s.classify(err)
		result := resultOf(err)
		s.metrics.RecordClaim(result)
		s.logFailure("claim", result, err,
			slog.Int64("user_id", userID),
			slog.Int64("machine_id", machineID),
		)
		return nil, err
	}

	s.metrics.RecordClaim(ResultOK)
	s.metrics.AddActiveSessions(1)
	s.logger.Info("machine claimed",
		slog.Int64("user_id", userID),
		slog.Int64("machine_id", machineID),
		slog.Int64("session_id", session.ID),
	)
	return session, nil
}

// Release は利用中レコードを終了し、利用履歴に移す。
// 利用中レコードが無ければNotFound、要求者が所有者でなければSessionForbiddenを返す。
// マシンが削除済みの場合も履歴への移動は行い、状態の復帰は省略する。
// 管理者がメンテナンスに変更していた場合など、en_uso以外の状態は上書きしない。
func (s *Service) Release(ctx context.Context, userID, sessionID int64) (*model.HistoryRecord, error) {
	var record *model.HistoryRecord

	err := s.repo.RunInTx(ctx, func(tx repository.UsageTx) error {
		session, err := tx.LockActiveSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return model.NewSessionNotFoundError(sessionID)
		}
		if session.UserID != userID {
			return model.NewSessionForbiddenError()
		}

		machine, err := tx.LockMachine(ctx, session.MachineID)
		if err != nil {
			return err
		}
		if machine != nil && machine.Status == model.MachineStatusInUse {
			if err := tx.SetMachineStatus(ctx, machine.ID, model.MachineStatusAvailable); err != nil {
				return err
			}
		}

		endedAt := s.now()
		if endedAt.Before(session.StartedAt) {
			endedAt = session.StartedAt
		}
		record = session.Close(endedAt)
		if err := tx.AppendHistory(ctx, record); err != nil {
			return err
		}

		return tx.DeleteActiveSession(ctx, session.ID)
	})
	if err != nil {
		err = s.classify(err)
		result := resultOf(err)
		s.metrics.RecordRelease(result)
		s.logFailure("release", result, err,
			slog.Int64("user_id", userID),
			slog.Int64("session_id", sessionID),
		)
		return nil, err
	}

	s.metrics.RecordRelease(ResultOK)
	s.metrics.AddActiveSessions(-1)
	s.metrics.ObserveSessionDuration(record.Duration())
	s.logger.Info("machine released",
		slog.Int64("user_id", userID),
		slog.Int64("machine_id", record.MachineID),
		slog.Int64("session_id", record.ID),
		slog.Int("duration_minutes", record.DurationMinutes()),
	)
	return record, nil
}

// ActiveSessions は全ての利用中レコードを返す。
func (s *Service) ActiveSessions(ctx context.Context) ([]*model.ActiveSession, error) {
	sessions, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, s.classify(err)
	}
	return sessions, nil
}

// ActiveSessionsForUser は指定ユーザーの利用中レコードを返す。
func (s *Service) ActiveSessionsForUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
	sessions, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, s.classify(err)
	}
	return sessions, nil
}

// HistoryForUser は指定ユーザーの利用履歴を返す。
func (s *Service) HistoryForUser(ctx context.Context, userID int64) ([]*model.HistoryRecord, error) {
	records, err := s.repo.ListHistoryByUser(ctx, userID)
	if err != nil {
		return nil, s.classify(err)
	}
	return records, nil
}

// HistoryForMachine は指定マシンの利用履歴を返す。
func (s *Service) HistoryForMachine(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error) {
	records, err := s.repo.ListHistoryByMachine(ctx, machineID)
	if err != nil {
		return nil, s.classify(err)
	}
	return records, nil
}

// classify はAPIError以外のエラーをStorageUnavailableに包む。
func (s *Service) classify(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewStorageUnavailableError(err)
}

func resultOf(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return ResultError
	}
	switch apiErr.Code {
	case model.ErrCodeMachineNotFound, model.ErrCodeSessionNotFound:
		return ResultNotFound
	case model.ErrCodeMachineUnavailable:
		return ResultConflict
	case model.ErrCodeSessionForbidden:
		return ResultForbid
	default:
		return ResultError
	}
}

func (s *Service) logFailure(op, result string, err error, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+2)
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args, slog.String("result", result), slog.String("error", err.Error()))

	if result == ResultError {
		s.logger.Error(op+" failed", args...)
		return
	}
	s.logger.Info(op+" rejected", args...)
}
