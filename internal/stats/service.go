// Package stats は利用状況の集計（ダッシュボード・レポート）を提供する。
// 全て読み取り専用で、台帳の最新のコミット済み状態を参照する。
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/repository"
)

// DefaultMostUsedLimit はMostUsedの件数の既定値。
const DefaultMostUsedLimit = 5

// Summary はマシン稼働状況の概要。
type Summary struct {
	TotalMachines int
	ByStatus      map[model.MachineStatus]int
	ActiveUsers   int
	ActiveUsages  int
}

// Report は管理者向けの全体レポート。
type Report struct {
	Machines       []*model.Machine
	ActiveSessions []*model.ActiveSession
	TotalUsers     int
}

// MachineUsage はマシンごとの利用集計。
type MachineUsage struct {
	MachineID    int64
	MachineName  string
	Uses         int
	TotalMinutes int
}

// Service は集計のサービス層。
type Service struct {
	machines repository.MachineRepository
	users    repository.UserRepository
	usage    repository.UsageRepository
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(machines repository.MachineRepository, users repository.UserRepository, usage repository.UsageRepository) *Service {
	return &Service{
		machines: machines,
		users:    users,
		usage:    usage,
		now:      time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える（テスト用）。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Summary はマシン数、状態別の台数、利用中のユーザー数を返す。
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	machines, err := s.machines.List(ctx)
	if err != nil {
		return nil, unavailable("マシン一覧の取得に失敗しました", err)
	}
	active, err := s.usage.ListActive(ctx)
	if err != nil {
		return nil, unavailable("利用中レコードの取得に失敗しました", err)
	}

	summary := &Summary{
		TotalMachines: len(machines),
		ByStatus:      make(map[model.MachineStatus]int, len(model.MachineStatuses)),
		ActiveUsages:  len(active),
	}
	for _, st := range model.MachineStatuses {
		summary.ByStatus[st] = 0
	}
	for _, m := range machines {
		summary.ByStatus[m.Status]++
	}

	users := make(map[int64]struct{})
	for _, a := range active {
		users[a.UserID] = struct{}{}
	}
	summary.ActiveUsers = len(users)

	return summary, nil
}

// MachinesByStatus はマシンを状態ごとに分類して返す。全ての状態のキーを含む。
func (s *Service) MachinesByStatus(ctx context.Context) (map[model.MachineStatus][]*model.Machine, error) {
	machines, err := s.machines.List(ctx)
	if err != nil {
		return nil, unavailable("マシン一覧の取得に失敗しました", err)
	}

	grouped := make(map[model.MachineStatus][]*model.Machine, len(model.MachineStatuses))
	for _, st := range model.MachineStatuses {
		grouped[st] = []*model.Machine{}
	}
	for _, m := range machines {
		grouped[m.Status] = append(grouped[m.Status], m)
	}
	return grouped, nil
}

// Report は全マシン、全利用中レコード、ユーザー数をまとめて返す。
func (s *Service) Report(ctx context.Context) (*Report, error) {
	machines, err := s.machines.List(ctx)
	if err != nil {
		return nil, unavailable("マシン一覧の取得に失敗しました", err)
	}
	active, err := s.usage.ListActive(ctx)
	if err != nil {
		return nil, unavailable("利用中レコードの取得に失敗しました", err)
	}
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, unavailable("ユーザー数の取得に失敗しました", err)
	}

	return &Report{
		Machines:       machines,
		ActiveSessions: active,
		TotalUsers:     users,
	}, nil
}

// UsageToday は本日（サーバーのローカル時刻）終了した利用をマシンごとに集計する。
// 結果はマシンID昇順。
func (s *Service) UsageToday(ctx context.Context) ([]MachineUsage, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	usages, err := s.aggregate(ctx, func(h *model.HistoryRecord) bool {
		return !h.EndedAt.Before(start) && h.EndedAt.Before(end)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(usages, func(i, j int) bool { return usages[i].MachineID < usages[j].MachineID })
	return usages, nil
}

// MostUsed は利用回数の多い順にマシンを返す。limitが0以下の場合は既定値を使う。
// 同数の場合はマシンID昇順。
func (s *Service) MostUsed(ctx context.Context, limit int) ([]MachineUsage, error) {
	if limit <= 0 {
		limit = DefaultMostUsedLimit
	}

	usages, err := s.aggregate(ctx, func(*model.HistoryRecord) bool { return true })
	if err != nil {
		return nil, err
	}

	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Uses != usages[j].Uses {
			return usages[i].Uses > usages[j].Uses
		}
		return usages[i].MachineID < usages[j].MachineID
	})
	if len(usages) > limit {
		usages = usages[:limit]
	}
	return usages, nil
}

// unavailable はストレージ層のエラーをSTORAGE_UNAVAILABLEに包む。
func unavailable(what string, err error) error {
	return model.NewStorageUnavailableError(fmt.Errorf("%s: %w", what, err))
}

func (s *Service) aggregate(ctx context.Context, match func(*model.HistoryRecord) bool) ([]MachineUsage, error) {
	history, err := s.usage.ListHistory(ctx)
	if err != nil {
		return nil, unavailable("利用履歴の取得に失敗しました", err)
	}
	machines, err := s.machines.List(ctx)
	if err != nil {
		return nil, unavailable("マシン一覧の取得に失敗しました", err)
	}

	names := make(map[int64]string, len(machines))
	for _, m := range machines {
		names[m.ID] = m.Name
	}

	byMachine := make(map[int64]*MachineUsage)
	for _, h := range history {
		if !match(h) {
			continue
		}
		u, ok := byMachine[h.MachineID]
		if !ok {
			// 削除済みマシンは名前が空になる
			u = &MachineUsage{MachineID: h.MachineID, MachineName: names[h.MachineID]}
			byMachine[h.MachineID] = u
		}
		u.Uses++
		u.TotalMinutes += h.DurationMinutes()
	}

	result := make([]MachineUsage, 0, len(byMachine))
	for _, u := range byMachine {
		result = append(result, *u)
	}
	return result, nil
}
