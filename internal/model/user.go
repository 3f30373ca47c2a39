// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	// RoleUser は一般利用者。
	RoleUser Role = "usuario"
	// RoleAdmin は管理者。マシン・運動種目・ユーザーの管理操作を行える。
	RoleAdmin Role = "admin"
)

// Valid は既知のロールかどうかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はジムの利用者を表す。
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin は管理者ロールかどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Principal は認証済みリクエストの呼び出し元を表す。
// トークンの形式に依存しないよう、検証後のクレームのみを保持する。
type Principal struct {
	UserID int64
	Email  string
	Role   Role
}
