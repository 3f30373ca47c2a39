package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/stats"
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	Summary(ctx context.Context) (*stats.Summary, error)
	MachinesByStatus(ctx context.Context) (map[model.MachineStatus][]*model.Machine, error)
	Report(ctx context.Context) (*stats.Report, error)
	UsageToday(ctx context.Context) ([]stats.MachineUsage, error)
	MostUsed(ctx context.Context, limit int) ([]stats.MachineUsage, error)
}

// StatsHandler は統計（statistics）のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

type summaryResponse struct {
	TotalMachines int `json:"total_maquinas"`
	Available     int `json:"disponibles"`
	InUse         int `json:"en_uso"`
	Maintenance   int `json:"mantenimiento"`
	ActiveUsers   int `json:"usuarios_activos"`
	ActiveUsages  int `json:"usos_activos"`
}

type reportResponse struct {
	Machines []machineResponse       `json:"machines"`
	Usages   []activeSessionResponse `json:"usos"`
	Users    int                     `json:"usuarios"`
}

type machineUsageResponse struct {
	MachineID    int64  `json:"maquina_id"`
	MachineName  string `json:"nombre"`
	Uses         int    `json:"usos"`
	TotalMinutes int    `json:"minutos_totales"`
}

func toMachineUsageResponses(usages []stats.MachineUsage) []machineUsageResponse {
	out := make([]machineUsageResponse, 0, len(usages))
	for _, u := range usages {
		out = append(out, machineUsageResponse{
			MachineID:    u.MachineID,
			MachineName:  u.MachineName,
			Uses:         u.Uses,
			TotalMinutes: u.TotalMinutes,
		})
	}
	return out
}

// Summary はマシン稼働状況の概要を返す。
// GET /statistics/summary
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summary(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalMachines: s.TotalMachines,
		Available:     s.ByStatus[model.MachineStatusAvailable],
		InUse:         s.ByStatus[model.MachineStatusInUse],
		Maintenance:   s.ByStatus[model.MachineStatusMaintenance],
		ActiveUsers:   s.ActiveUsers,
		ActiveUsages:  s.ActiveUsages,
	})
}

// MachinesByStatus は状態ごとのマシン一覧を返す。
// GET /statistics/machines-by-status
func (h *StatsHandler) MachinesByStatus(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.service.MachinesByStatus(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	out := make(map[string][]machineResponse, len(grouped))
	for status, machines := range grouped {
		out[string(status)] = toMachineResponses(machines)
	}
	writeJSON(w, http.StatusOK, out)
}

// Report は全マシン、全利用中レコード、ユーザー数を返す。
// GET /statistics/report
func (h *StatsHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Machines: toMachineResponses(report.Machines),
		Usages:   toActiveSessionResponses(report.ActiveSessions),
		Users:    report.TotalUsers,
	})
}

// UsageToday は本日終了した利用のマシン別集計を返す。
// GET /statistics/usage-today
func (h *StatsHandler) UsageToday(w http.ResponseWriter, r *http.Request) {
	usages, err := h.service.UsageToday(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineUsageResponses(usages))
}

// MostUsed は利用回数の多いマシンを返す。limitクエリで件数を指定できる。
// GET /statistics/most-used?limit=N
func (h *StatsHandler) MostUsed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limit は1から100の整数で指定してください"))
			return
		}
		limit = n
	}

	usages, err := h.service.MostUsed(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineUsageResponses(usages))
}
