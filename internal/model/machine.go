package model

import "time"

// MachineStatus はマシンの稼働状態を表す。
type MachineStatus string

const (
	// MachineStatusAvailable は利用可能な状態。Claimできるのはこの状態のみ。
	MachineStatusAvailable MachineStatus = "disponible"
	// MachineStatusInUse は利用中の状態。対応するActiveSessionが1件だけ存在する。
	MachineStatusInUse MachineStatus = "en_uso"
	// MachineStatusMaintenance はメンテナンス中の状態。
	MachineStatusMaintenance MachineStatus = "mantenimiento"
)

// MachineStatuses は全ての状態を表示順に並べたもの。
var MachineStatuses = []MachineStatus{
	MachineStatusAvailable,
	MachineStatusInUse,
	MachineStatusMaintenance,
}

// Valid は既知の状態かどうかを返す。
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineStatusAvailable, MachineStatusInUse, MachineStatusMaintenance:
		return true
	default:
		return false
	}
}

// Machine はQRコードが貼られたジムのマシンを表す。
// Statusはアクティブセッションの有無から導かれるキャッシュ値で、
// 利用記録の台帳（usageパッケージ）が en_uso と disponible の間でのみ遷移させる。
type Machine struct {
	ID          int64
	Name        string
	Description string
	Location    string
	Status      MachineStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Exercise はマシンに紐付けられる運動種目を表す。
type Exercise struct {
	ID          int64
	Name        string
	Description string
	MuscleGroup string
	MachineID   *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
