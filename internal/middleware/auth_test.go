package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/gymqr/internal/model"
)

// --- モック定義 ---

type mockTokenVerifier struct {
	authenticateFn func(token string) (*model.Principal, error)
}

func (m *mockTokenVerifier) Authenticate(token string) (*model.Principal, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(token)
	}
	return nil, errors.New("invalid token")
}

func staticVerifier(token string, principal *model.Principal) *mockTokenVerifier {
	return &mockTokenVerifier{
		authenticateFn: func(got string) (*model.Principal, error) {
			if got == token {
				return principal, nil
			}
			return nil, errors.New("invalid token")
		},
	}
}

// --- テスト ---

func TestAuthMiddleware_ValidToken_InjectsPrincipal(t *testing.T) {
	mw := NewAuthMiddleware(staticVerifier("good-token", &model.Principal{UserID: 7, Email: "a@b.c", Role: model.RoleUser}))

	var captured *model.Principal
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := PrincipalFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		captured = p
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured == nil || captured.UserID != 7 {
		t.Errorf("principal = %+v, want user 7", captured)
	}
}

func TestAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	mw := NewAuthMiddleware(staticVerifier("tok", &model.Principal{UserID: 1}))
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"スキーム違い", "Basic dXNlcjpwYXNz"},
		{"トークンが空", "Bearer    "},
		{"無効なトークン", "Bearer bad-token"},
	}

	mw := NewAuthMiddleware(staticVerifier("good-token", &model.Principal{UserID: 7}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/usos/activos", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		principal *model.Principal
		want      int
	}{
		{"管理者は通過", &model.Principal{UserID: 1, Role: model.RoleAdmin}, http.StatusOK},
		{"一般ユーザーは403", &model.Principal{UserID: 2, Role: model.RoleUser}, http.StatusForbidden},
		{"未認証は401", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodDelete, "/api/v1/machines/delete/1", nil)
			if tt.principal != nil {
				req = req.WithContext(ContextWithPrincipal(req.Context(), tt.principal))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.want {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.want)
			}
		})
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), &model.Principal{UserID: 42})

	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}
