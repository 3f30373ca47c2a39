package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/gymqr/internal/catalog"
	"github.com/hitoshi/gymqr/internal/model"
)

// ExerciseServiceInterface は運動種目ハンドラーが必要とするサービスインターフェース。
type ExerciseServiceInterface interface {
	Create(ctx context.Context, in catalog.ExerciseInput) (*model.Exercise, error)
	List(ctx context.Context) ([]*model.Exercise, error)
	ListByMachine(ctx context.Context, machineID int64) ([]*model.Exercise, error)
	Get(ctx context.Context, id int64) (*model.Exercise, error)
	Update(ctx context.Context, id int64, in catalog.ExerciseInput) (*model.Exercise, error)
	Delete(ctx context.Context, id int64) error
}

// ExerciseHandler は運動種目管理のHTTPハンドラー。
type ExerciseHandler struct {
	service ExerciseServiceInterface
}

// NewExerciseHandler はExerciseHandlerを生成する。
func NewExerciseHandler(service ExerciseServiceInterface) *ExerciseHandler {
	return &ExerciseHandler{service: service}
}

type createExerciseRequest struct {
	Name        string `json:"nombre" validate:"required,max=100"`
	Description string `json:"descripcion" validate:"max=1000"`
	MuscleGroup string `json:"grupo_muscular" validate:"max=100"`
	MachineID   *int64 `json:"maquina_id" validate:"omitempty,gt=0"`
}

// updateExerciseRequest は運動種目更新のリクエストボディ。
// maquina_id に null を指定するとマシンとの紐付けを外す。
type updateExerciseRequest struct {
	Name        *string         `json:"nombre" validate:"omitempty,min=1,max=100"`
	Description *string         `json:"descripcion" validate:"omitempty,max=1000"`
	MuscleGroup *string         `json:"grupo_muscular" validate:"omitempty,max=100"`
	MachineID   json.RawMessage `json:"maquina_id"`
}

// Create は運動種目を作成する（管理者のみ）。
// POST /exercises/create
func (h *ExerciseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExerciseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	e, err := h.service.Create(r.Context(), catalog.ExerciseInput{
		Name:        &req.Name,
		Description: &req.Description,
		MuscleGroup: &req.MuscleGroup,
		MachineID:   req.MachineID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseResponse(e))
}

// List は全運動種目を返す。
// GET /exercises/getAll
func (h *ExerciseHandler) List(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseResponses(exercises))
}

// ListByMachine は指定マシンに紐付く運動種目を返す。
// GET /exercises/por-maquina/{maquinaId}
func (h *ExerciseHandler) ListByMachine(w http.ResponseWriter, r *http.Request) {
	machineID, ok := parseIDParam(w, r, "maquinaId")
	if !ok {
		return
	}

	exercises, err := h.service.ListByMachine(r.Context(), machineID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseResponses(exercises))
}

// Get は指定IDの運動種目を返す。
// GET /exercises/get/{id}
func (h *ExerciseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseResponse(e))
}

// Update は運動種目を部分更新する（管理者のみ）。
// PUT /exercises/update/{id}
func (h *ExerciseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req updateExerciseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	in := catalog.ExerciseInput{
		Name:        req.Name,
		Description: req.Description,
		MuscleGroup: req.MuscleGroup,
	}
	switch raw := bytes.TrimSpace(req.MachineID); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		in.ClearMachine = true
	default:
		var machineID int64
		if err := json.Unmarshal(raw, &machineID); err != nil || machineID <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("maquina_id は正の整数か null で指定してください"))
			return
		}
		in.MachineID = &machineID
	}

	e, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseResponse(e))
}

// Delete は運動種目を削除する（管理者のみ）。
// DELETE /exercises/delete/{id}
func (h *ExerciseHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
