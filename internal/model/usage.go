package model

import "time"

// ActiveSession は利用中のマシンとユーザーの紐付け（利用中レコード）を表す。
// 同一マシンに対して同時に存在できるのは1件のみ。
type ActiveSession struct {
	ID        int64
	UserID    int64
	MachineID int64
	StartedAt time.Time
}

// Close は終了時刻を付与して履歴レコードを生成する。
// 履歴のIDはセッションのIDをそのまま引き継ぐ。
func (s *ActiveSession) Close(endedAt time.Time) *HistoryRecord {
	return &HistoryRecord{
		ID:        s.ID,
		UserID:    s.UserID,
		MachineID: s.MachineID,
		StartedAt: s.StartedAt,
		EndedAt:   endedAt,
	}
}

// HistoryRecord は終了した利用の記録。追記のみで更新・削除はしない。
type HistoryRecord struct {
	ID        int64
	UserID    int64
	MachineID int64
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration は利用時間を返す。
func (h *HistoryRecord) Duration() time.Duration {
	d := h.EndedAt.Sub(h.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// DurationMinutes は利用時間を分単位（切り捨て）で返す。
func (h *HistoryRecord) DurationMinutes() int {
	return int(h.Duration() / time.Minute)
}
