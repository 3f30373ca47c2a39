// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, usage, system
	Action   string // ユーザー向け対処方法

	cause error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *APIError) Unwrap() error {
	return e.cause
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeInvalidQR             = "INVALID_QR"
	ErrCodeInvalidStatus         = "INVALID_STATUS"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeWrongPassword         = "WRONG_PASSWORD"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeEmailTaken            = "EMAIL_TAKEN"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeUserHasActiveSessions = "USER_HAS_ACTIVE_SESSIONS"
	ErrCodeMachineNotFound       = "MACHINE_NOT_FOUND"
	ErrCodeExerciseNotFound      = "EXERCISE_NOT_FOUND"
	ErrCodeMachineUnavailable    = "MACHINE_UNAVAILABLE"
	ErrCodeSessionNotFound       = "SESSION_NOT_FOUND"
	ErrCodeSessionForbidden      = "SESSION_FORBIDDEN"
	ErrCodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// HasCode はerrのチェーン中に指定コードのAPIErrorが含まれるかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewInvalidRequestError はリクエスト内容の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidQRError は読み取ったQRコードがマシンを指していない場合のエラーを生成する。
func NewInvalidQRError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQR,
		Message:  "このQRコードはマシンのものではありません。",
		Category: "validation",
		Action:   "ジムのマシンに貼られたQRコードを読み取ってください。",
	}
}

// NewInvalidStatusError は未知のマシン状態が指定された場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な状態です: %s", status),
		Category: "validation",
		Action:   "状態には disponible、en_uso、mantenimiento のいずれかを指定してください。",
	}
}

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewWrongPasswordError はパスワード変更時に現在のパスワードが一致しない場合のエラーを生成する。
func NewWrongPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWrongPassword,
		Message:  "現在のパスワードが正しくありません。",
		Category: "validation",
		Action:   "現在のパスワードを確認してください。",
	}
}

// NewForbiddenError は管理者権限が必要な操作を一般ユーザーが行った場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewEmailTakenError はメールアドレスが既に登録されている場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewUserHasActiveSessionsError は利用中のマシンがあるユーザーを削除しようとした場合のエラーを生成する。
func NewUserHasActiveSessionsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserHasActiveSessions,
		Message:  "このユーザーは利用中のマシンがあります。",
		Category: "usage",
		Action:   "利用を終了してから削除してください。",
	}
}

// NewMachineNotFoundError はマシンが見つからない場合のエラーを生成する。
func NewMachineNotFoundError(machineID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMachineNotFound,
		Message:  fmt.Sprintf("マシンが見つかりません: %d", machineID),
		Category: "catalog",
		Action:   "QRコードが正しいか確認してください。",
	}
}

// NewExerciseNotFoundError は運動種目が見つからない場合のエラーを生成する。
func NewExerciseNotFoundError(exerciseID int64) *APIError {
	return &APIError{
		Code:     ErrCodeExerciseNotFound,
		Message:  fmt.Sprintf("運動種目が見つかりません: %d", exerciseID),
		Category: "catalog",
		Action:   "運動種目IDを確認してください。",
	}
}

// NewMachineUnavailableError はマシンが利用中またはメンテナンス中でClaimできない場合のエラーを生成する。
func NewMachineUnavailableError(machineID int64, status MachineStatus) *APIError {
	return &APIError{
		Code:     ErrCodeMachineUnavailable,
		Message:  fmt.Sprintf("マシン %d は現在利用できません（状態: %s）。", machineID, status),
		Category: "usage",
		Action:   "別のマシンを選ぶか、しばらく待ってから再度QRコードを読み取ってください。",
	}
}

// NewSessionNotFoundError は利用中レコードが見つからない場合のエラーを生成する。
// 既に終了済みのセッションに対しても返される。
func NewSessionNotFoundError(sessionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("利用中レコードが見つかりません: %d", sessionID),
		Category: "usage",
		Action:   "利用状況を再読み込みしてください。",
	}
}

// NewSessionForbiddenError は他人の利用中レコードを終了しようとした場合のエラーを生成する。
func NewSessionForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionForbidden,
		Message:  "この利用はあなたのものではありません。",
		Category: "usage",
		Action:   "自分が開始した利用のみ終了できます。",
	}
}

// NewStorageUnavailableError はストレージ層の障害を表すエラーを生成する。
// 原因のエラーはUnwrapで取得できる。呼び出し側はバックオフ付きで再試行する。
func NewStorageUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "データストアに一時的に接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		cause:    cause,
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
