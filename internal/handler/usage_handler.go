package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/qr"
)

// UsageServiceInterface は利用記録ハンドラーが必要とするサービスインターフェース。
// usage.Serviceが実装する。
type UsageServiceInterface interface {
	// Claim はマシンの利用を開始する。同一マシンへの並行したClaimは高々1件のみ成功する。
	Claim(ctx context.Context, userID, machineID int64) (*model.ActiveSession, error)
	// Release は呼び出し元の利用を終了し、履歴レコードを返す。
	Release(ctx context.Context, userID, sessionID int64) (*model.HistoryRecord, error)
	ActiveSessions(ctx context.Context) ([]*model.ActiveSession, error)
	ActiveSessionsForUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error)
	HistoryForUser(ctx context.Context, userID int64) ([]*model.HistoryRecord, error)
	HistoryForMachine(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error)
}

// UsageHandler はマシン利用（usos）のHTTPハンドラー。
type UsageHandler struct {
	service UsageServiceInterface
}

// NewUsageHandler はUsageHandlerを生成する。
func NewUsageHandler(service UsageServiceInterface) *UsageHandler {
	return &UsageHandler{service: service}
}

type claimRequest struct {
	MachineID int64 `json:"maquina_id" validate:"required,gt=0"`
}

type scanRequest struct {
	QR string `json:"qr" validate:"required,max=512"`
}

// Start は呼び出し元としてマシンの利用を開始する。
// POST /usos/iniciar
func (h *UsageHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	h.claim(w, r, principal.UserID, req.MachineID)
}

// Scan は読み取ったQRペイロードからマシンを特定し、利用を開始する。
// POST /usos/escanear
func (h *UsageHandler) Scan(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var req scanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	machineID, err := qr.ParseMachineID(req.QR)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.claim(w, r, principal.UserID, machineID)
}

func (h *UsageHandler) claim(w http.ResponseWriter, r *http.Request, userID, machineID int64) {
	session, err := h.service.Claim(r.Context(), userID, machineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveSessionResponse(session))
}

// Finish は呼び出し元の利用を終了する。
// PUT /usos/finalizar/{id}
func (h *UsageHandler) Finish(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	sessionID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	record, err := h.service.Release(r.Context(), principal.UserID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, releaseResponse{OK: true, History: toHistoryResponse(record)})
}

// Active は全ての利用中レコードを返す。
// GET /usos/activos
func (h *UsageHandler) Active(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ActiveSessions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveSessionResponses(sessions))
}

// MyActive は呼び出し元の利用中レコードを返す。
// GET /usos/mis-activos
func (h *UsageHandler) MyActive(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ActiveSessionsForUser(r.Context(), principal.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveSessionResponses(sessions))
}

// MyHistory は呼び出し元の利用履歴を返す。
// GET /usos/historial
func (h *UsageHandler) MyHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	h.writeUserHistory(w, r, principal.UserID)
}

// UserHistory は指定ユーザーの利用履歴を返す。本人または管理者のみ参照できる。
// GET /usos/historial/{userId}
func (h *UsageHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	userID, ok := parseIDParam(w, r, "userId")
	if !ok {
		return
	}
	if userID != principal.UserID && principal.Role != model.RoleAdmin {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	h.writeUserHistory(w, r, userID)
}

func (h *UsageHandler) writeUserHistory(w http.ResponseWriter, r *http.Request, userID int64) {
	records, err := h.service.HistoryForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponses(records))
}

// MachineHistory は指定マシンの利用履歴を返す。
// GET /usos/maquina/{maquinaId}
func (h *UsageHandler) MachineHistory(w http.ResponseWriter, r *http.Request) {
	machineID, ok := parseIDParam(w, r, "maquinaId")
	if !ok {
		return
	}

	records, err := h.service.HistoryForMachine(r.Context(), machineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponses(records))
}
