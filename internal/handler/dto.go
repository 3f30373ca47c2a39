package handler

import (
	"time"

	"github.com/hitoshi/gymqr/internal/auth"
	"github.com/hitoshi/gymqr/internal/model"
)

// レスポンスのフィールド名は既存のモバイルクライアントに合わせる。

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Email     string    `json:"email"`
	Role      string    `json:"rol"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func toUserResponses(users []*model.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

// sessionResponse はログイン・登録のレスポンス。
// expires_in はトークンの有効期間（秒）。
type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      userResponse `json:"user"`
}

func toSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		ExpiresIn: int64(s.ExpiresIn.Seconds()),
		User:      toUserResponse(s.User),
	}
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type machineResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"nombre"`
	Description string    `json:"descripcion"`
	Location    string    `json:"ubicacion"`
	Status      string    `json:"estado"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMachineResponse(m *model.Machine) machineResponse {
	return machineResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Location:    m.Location,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toMachineResponses(machines []*model.Machine) []machineResponse {
	out := make([]machineResponse, 0, len(machines))
	for _, m := range machines {
		out = append(out, toMachineResponse(m))
	}
	return out
}

type exerciseResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"nombre"`
	Description string    `json:"descripcion"`
	MuscleGroup string    `json:"grupo_muscular"`
	MachineID   *int64    `json:"maquina_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toExerciseResponse(e *model.Exercise) exerciseResponse {
	return exerciseResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		MuscleGroup: e.MuscleGroup,
		MachineID:   e.MachineID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toExerciseResponses(exercises []*model.Exercise) []exerciseResponse {
	out := make([]exerciseResponse, 0, len(exercises))
	for _, e := range exercises {
		out = append(out, toExerciseResponse(e))
	}
	return out
}

// activeSessionResponse は利用中レコード（uso）のレスポンス。
type activeSessionResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"usuario_id"`
	MachineID int64     `json:"maquina_id"`
	StartedAt time.Time `json:"fecha_inicio"`
}

func toActiveSessionResponse(s *model.ActiveSession) activeSessionResponse {
	return activeSessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		MachineID: s.MachineID,
		StartedAt: s.StartedAt,
	}
}

func toActiveSessionResponses(sessions []*model.ActiveSession) []activeSessionResponse {
	out := make([]activeSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toActiveSessionResponse(s))
	}
	return out
}

// historyResponse は利用履歴（historial）のレスポンス。
type historyResponse struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"usuario_id"`
	MachineID       int64     `json:"maquina_id"`
	StartedAt       time.Time `json:"fecha_inicio"`
	EndedAt         time.Time `json:"fecha_fin"`
	DurationMinutes int       `json:"duracion_minutos"`
}

func toHistoryResponse(h *model.HistoryRecord) historyResponse {
	return historyResponse{
		ID:              h.ID,
		UserID:          h.UserID,
		MachineID:       h.MachineID,
		StartedAt:       h.StartedAt,
		EndedAt:         h.EndedAt,
		DurationMinutes: h.DurationMinutes(),
	}
}

func toHistoryResponses(records []*model.HistoryRecord) []historyResponse {
	out := make([]historyResponse, 0, len(records))
	for _, h := range records {
		out = append(out, toHistoryResponse(h))
	}
	return out
}

// releaseResponse は利用終了のレスポンス。
type releaseResponse struct {
	OK      bool            `json:"ok"`
	History historyResponse `json:"historial"`
}
