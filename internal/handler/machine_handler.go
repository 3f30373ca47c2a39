package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/gymqr/internal/catalog"
	"github.com/hitoshi/gymqr/internal/model"
)

// MachineServiceInterface はマシンハンドラーが必要とするサービスインターフェース。
type MachineServiceInterface interface {
	Create(ctx context.Context, in catalog.MachineInput) (*model.Machine, error)
	List(ctx context.Context) ([]*model.Machine, error)
	ListByStatus(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error)
	Get(ctx context.Context, id int64) (*model.Machine, error)
	Update(ctx context.Context, id int64, in catalog.MachineInput) (*model.Machine, error)
	SetStatus(ctx context.Context, id int64, status string) (*model.Machine, error)
	Delete(ctx context.Context, id int64) error
}

// MachineHandler はマシン管理のHTTPハンドラー。
type MachineHandler struct {
	service MachineServiceInterface
}

// NewMachineHandler はMachineHandlerを生成する。
func NewMachineHandler(service MachineServiceInterface) *MachineHandler {
	return &MachineHandler{service: service}
}

type createMachineRequest struct {
	Name        string `json:"nombre" validate:"required,max=100"`
	Description string `json:"descripcion" validate:"max=1000"`
	Location    string `json:"ubicacion" validate:"max=100"`
	Status      string `json:"estado"`
}

type updateMachineRequest struct {
	Name        *string `json:"nombre" validate:"omitempty,min=1,max=100"`
	Description *string `json:"descripcion" validate:"omitempty,max=1000"`
	Location    *string `json:"ubicacion" validate:"omitempty,max=100"`
	Status      *string `json:"estado"`
}

type changeStatusRequest struct {
	Status string `json:"estado" validate:"required"`
}

// Create はマシンを作成する（管理者のみ）。
// POST /machines/create
func (h *MachineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMachineRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := catalog.MachineInput{
		Name:        &req.Name,
		Description: &req.Description,
		Location:    &req.Location,
	}
	if req.Status != "" {
		in.Status = &req.Status
	}

	m, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineResponse(m))
}

// List は全マシンを返す。
// GET /machines/getAll
func (h *MachineHandler) List(w http.ResponseWriter, r *http.Request) {
	machines, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineResponses(machines))
}

// ListByStatus は指定状態のマシン一覧を返すハンドラーを生成する。
// GET /machines/disponibles, /machines/en-uso, /machines/mantenimiento
func (h *MachineHandler) ListByStatus(status model.MachineStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		machines, err := h.service.ListByStatus(r.Context(), status)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMachineResponses(machines))
	}
}

// Get は指定IDのマシンを返す。
// GET /machines/get/{id}
func (h *MachineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineResponse(m))
}

// Update はマシンを部分更新する（管理者のみ）。
// PUT /machines/update/{id}
func (h *MachineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req updateMachineRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.service.Update(r.Context(), id, catalog.MachineInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineResponse(m))
}

// ChangeStatus はマシンの状態を直接変更する（管理者のみ）。
// 利用中レコードとの整合性は検査しない。
// PUT /machines/cambiar-estado/{id}
func (h *MachineHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMachineResponse(m))
}

// Delete はマシンを削除する（管理者のみ）。利用中レコードと履歴は残る。
// DELETE /machines/delete/{id}
func (h *MachineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeOK(w)
}
