// Package audit は利用中レコードとマシン状態の整合性を定期的に点検するジョブを提供する。
// 点検は読み取りのみで、不整合の修正は管理者の状態変更に任せる。
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/repository"
)

// DefaultStaleAfter は長時間利用とみなす経過時間のデフォルト値。
const DefaultStaleAfter = 4 * time.Hour

// Gauges は点検結果を反映するメトリクスのインターフェース。
type Gauges interface {
	SetActiveSessions(n int)
	SetStatusMismatches(n int)
}

// Report は1回の点検結果。
type Report struct {
	ActiveSessions int
	// InUseWithoutSession は en_uso なのに利用中レコードが無いマシンのID。
	InUseWithoutSession []int64
	// OrphanSessions は対応するマシンが en_uso でない（または存在しない）利用中レコードのID。
	OrphanSessions []int64
	// StaleSessions は開始からStaleAfter以上経過した利用中レコードのID。
	StaleSessions []int64
}

// Mismatches は状態の不整合の件数を返す。長時間利用は含まない。
func (r *Report) Mismatches() int {
	return len(r.InUseWithoutSession) + len(r.OrphanSessions)
}

// Job は整合性点検ジョブ。
type Job struct {
	machines   repository.MachineRepository
	usage      repository.UsageRepository
	gauges     Gauges
	logger     *slog.Logger
	now        func() time.Time
	StaleAfter time.Duration
}

// NewJob はJobを生成する。gaugesはnilでもよい。
func NewJob(
	machines repository.MachineRepository,
	usage repository.UsageRepository,
	gauges Gauges,
	logger *slog.Logger,
) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		machines:   machines,
		usage:      usage,
		gauges:     gauges,
		logger:     logger,
		now:        time.Now,
		StaleAfter: DefaultStaleAfter,
	}
}

// SetClock はテスト用に現在時刻の取得関数を差し替える。
func (j *Job) SetClock(now func() time.Time) {
	j.now = now
}

// Start はintervalごとに点検を実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("整合性点検ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", j.StaleAfter),
	)

	j.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("整合性点検ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("整合性点検の実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run は1回点検を行い、結果をログとメトリクスに反映する。
func (j *Job) Run(ctx context.Context) (*Report, error) {
	start := j.now()

	machines, err := j.machines.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("マシン一覧の取得に失敗: %w", err)
	}
	active, err := j.usage.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("利用中レコードの取得に失敗: %w", err)
	}

	report := check(machines, active, start, j.StaleAfter)

	for _, id := range report.InUseWithoutSession {
		j.logger.Warn("利用者のいない en_uso のマシンがあります",
			slog.Int64("machine_id", id),
		)
	}
	for _, id := range report.OrphanSessions {
		j.logger.Warn("マシン状態と一致しない利用中レコードがあります",
			slog.Int64("session_id", id),
		)
	}
	for _, id := range report.StaleSessions {
		j.logger.Warn("長時間継続している利用があります",
			slog.Int64("session_id", id),
			slog.Duration("stale_after", j.StaleAfter),
		)
	}

	if j.gauges != nil {
		j.gauges.SetActiveSessions(report.ActiveSessions)
		j.gauges.SetStatusMismatches(report.Mismatches())
	}

	j.logger.Info("整合性点検が完了しました",
		slog.Int("active_sessions", report.ActiveSessions),
		slog.Int("mismatches", report.Mismatches()),
		slog.Int("stale_sessions", len(report.StaleSessions)),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return report, nil
}

func check(machines []*model.Machine, active []*model.ActiveSession, now time.Time, staleAfter time.Duration) *Report {
	report := &Report{
		ActiveSessions:      len(active),
		InUseWithoutSession: []int64{},
		OrphanSessions:      []int64{},
		StaleSessions:       []int64{},
	}

	status := make(map[int64]model.MachineStatus, len(machines))
	for _, m := range machines {
		status[m.ID] = m.Status
	}
	occupied := make(map[int64]bool, len(active))
	for _, s := range active {
		occupied[s.MachineID] = true
		if st, ok := status[s.MachineID]; !ok || st != model.MachineStatusInUse {
			report.OrphanSessions = append(report.OrphanSessions, s.ID)
		}
		if staleAfter > 0 && now.Sub(s.StartedAt) >= staleAfter {
			report.StaleSessions = append(report.StaleSessions, s.ID)
		}
	}
	for _, m := range machines {
		if m.Status == model.MachineStatusInUse && !occupied[m.ID] {
			report.InUseWithoutSession = append(report.InUseWithoutSession, m.ID)
		}
	}
	return report
}
