package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gymqr/internal/auth"
	"github.com/hitoshi/gymqr/internal/catalog"
	"github.com/hitoshi/gymqr/internal/middleware"
	"github.com/hitoshi/gymqr/internal/model"
	"github.com/hitoshi/gymqr/internal/stats"
	"github.com/hitoshi/gymqr/internal/user"
)

// --- モック定義 ---

type mockVerifier struct{}

func (mockVerifier) Authenticate(token string) (*model.Principal, error) {
	switch token {
	case "user-token":
		return &model.Principal{UserID: 7, Email: "user@gym.test", Role: model.RoleUser}, nil
	case "admin-token":
		return &model.Principal{UserID: 1, Email: "admin@gym.test", Role: model.RoleAdmin}, nil
	}
	return nil, errors.New("invalid token")
}

type mockHealth struct {
	err error
}

func (m mockHealth) PingContext(ctx context.Context) error { return m.err }

type mockAuthService struct {
	registerFn       func(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	loginFn          func(ctx context.Context, email, password string) (*auth.Session, error)
	profileFn        func(ctx context.Context, userID int64) (*model.User, error)
	changePasswordFn func(ctx context.Context, userID int64, oldPassword, newPassword string) error
	refreshFn        func(ctx context.Context, principal *model.Principal) (*auth.Session, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, oldPassword, newPassword)
	}
	return errors.New("not implemented")
}

func (m *mockAuthService) Refresh(ctx context.Context, principal *model.Principal) (*auth.Session, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, principal)
	}
	return nil, errors.New("not implemented")
}

type mockUserService struct {
	createFn func(ctx context.Context, in user.CreateInput) (*model.User, error)
	listFn   func(ctx context.Context) ([]*model.User, error)
	getFn    func(ctx context.Context, id int64) (*model.User, error)
	updateFn func(ctx context.Context, id int64, in user.UpdateInput) (*model.User, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockUserService) Create(ctx context.Context, in user.CreateInput) (*model.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) Update(ctx context.Context, id int64, in user.UpdateInput) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUserService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockMachineService struct {
	createFn       func(ctx context.Context, in catalog.MachineInput) (*model.Machine, error)
	listFn         func(ctx context.Context) ([]*model.Machine, error)
	listByStatusFn func(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error)
	getFn          func(ctx context.Context, id int64) (*model.Machine, error)
	updateFn       func(ctx context.Context, id int64, in catalog.MachineInput) (*model.Machine, error)
	setStatusFn    func(ctx context.Context, id int64, status string) (*model.Machine, error)
	deleteFn       func(ctx context.Context, id int64) error
}

func (m *mockMachineService) Create(ctx context.Context, in catalog.MachineInput) (*model.Machine, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMachineService) List(ctx context.Context) ([]*model.Machine, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Machine{}, nil
}

func (m *mockMachineService) ListByStatus(ctx context.Context, status model.MachineStatus) ([]*model.Machine, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status)
	}
	return []*model.Machine{}, nil
}

func (m *mockMachineService) Get(ctx context.Context, id int64) (*model.Machine, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewMachineNotFoundError(id)
}

func (m *mockMachineService) Update(ctx context.Context, id int64, in catalog.MachineInput) (*model.Machine, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMachineService) SetStatus(ctx context.Context, id int64, status string) (*model.Machine, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, status)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMachineService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockExerciseService struct {
	createFn        func(ctx context.Context, in catalog.ExerciseInput) (*model.Exercise, error)
	listByMachineFn func(ctx context.Context, machineID int64) ([]*model.Exercise, error)
	updateFn        func(ctx context.Context, id int64, in catalog.ExerciseInput) (*model.Exercise, error)
}

func (m *mockExerciseService) Create(ctx context.Context, in catalog.ExerciseInput) (*model.Exercise, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockExerciseService) List(ctx context.Context) ([]*model.Exercise, error) {
	return []*model.Exercise{}, nil
}

func (m *mockExerciseService) ListByMachine(ctx context.Context, machineID int64) ([]*model.Exercise, error) {
	if m.listByMachineFn != nil {
		return m.listByMachineFn(ctx, machineID)
	}
	return []*model.Exercise{}, nil
}

func (m *mockExerciseService) Get(ctx context.Context, id int64) (*model.Exercise, error) {
	return nil, model.NewExerciseNotFoundError(id)
}

func (m *mockExerciseService) Update(ctx context.Context, id int64, in catalog.ExerciseInput) (*model.Exercise, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockExerciseService) Delete(ctx context.Context, id int64) error {
	return nil
}

type mockUsageService struct {
	claimFn             func(ctx context.Context, userID, machineID int64) (*model.ActiveSession, error)
	releaseFn           func(ctx context.Context, userID, sessionID int64) (*model.HistoryRecord, error)
	activeFn            func(ctx context.Context) ([]*model.ActiveSession, error)
	activeForUserFn     func(ctx context.Context, userID int64) ([]*model.ActiveSession, error)
	historyForUserFn    func(ctx context.Context, userID int64) ([]*model.HistoryRecord, error)
	historyForMachineFn func(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error)
}

func (m *mockUsageService) Claim(ctx context.Context, userID, machineID int64) (*model.ActiveSession, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, userID, machineID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUsageService) Release(ctx context.Context, userID, sessionID int64) (*model.HistoryRecord, error) {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, userID, sessionID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockUsageService) ActiveSessions(ctx context.Context) ([]*model.ActiveSession, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx)
	}
	return []*model.ActiveSession{}, nil
}

func (m *mockUsageService) ActiveSessionsForUser(ctx context.Context, userID int64) ([]*model.ActiveSession, error) {
	if m.activeForUserFn != nil {
		return m.activeForUserFn(ctx, userID)
	}
	return []*model.ActiveSession{}, nil
}

func (m *mockUsageService) HistoryForUser(ctx context.Context, userID int64) ([]*model.HistoryRecord, error) {
	if m.historyForUserFn != nil {
		return m.historyForUserFn(ctx, userID)
	}
	return []*model.HistoryRecord{}, nil
}

func (m *mockUsageService) HistoryForMachine(ctx context.Context, machineID int64) ([]*model.HistoryRecord, error) {
	if m.historyForMachineFn != nil {
		return m.historyForMachineFn(ctx, machineID)
	}
	return []*model.HistoryRecord{}, nil
}

type mockStatsService struct {
	summaryFn  func(ctx context.Context) (*stats.Summary, error)
	mostUsedFn func(ctx context.Context, limit int) ([]stats.MachineUsage, error)
}

func (m *mockStatsService) Summary(ctx context.Context) (*stats.Summary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx)
	}
	return &stats.Summary{ByStatus: map[model.MachineStatus]int{}}, nil
}

func (m *mockStatsService) MachinesByStatus(ctx context.Context) (map[model.MachineStatus][]*model.Machine, error) {
	return map[model.MachineStatus][]*model.Machine{}, nil
}

func (m *mockStatsService) Report(ctx context.Context) (*stats.Report, error) {
	return &stats.Report{}, nil
}

func (m *mockStatsService) UsageToday(ctx context.Context) ([]stats.MachineUsage, error) {
	return []stats.MachineUsage{}, nil
}

func (m *mockStatsService) MostUsed(ctx context.Context, limit int) ([]stats.MachineUsage, error) {
	if m.mostUsedFn != nil {
		return m.mostUsedFn(ctx, limit)
	}
	return []stats.MachineUsage{}, nil
}

// --- ヘルパー ---

// newTestDeps は全てのサービスをモックにしたRouterDepsを返す。
func newTestDeps(t *testing.T) *RouterDeps {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return &RouterDeps{
		TokenVerifier:     mockVerifier{},
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		Logger:            slogDiscard(),
		Health:            mockHealth{},
		AuthService:       &mockAuthService{},
		UserService:       &mockUserService{},
		MachineService:    &mockMachineService{},
		ExerciseService:   &mockExerciseService{},
		UsageService:      &mockUsageService{},
		StatsService:      &mockStatsService{},
	}
}

// doRequest はルーターにリクエストを送り、レスポンスを返す。
func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Result()
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func assertError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	body := decodeBody[middleware.ErrorResponseBody](t, resp)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}
