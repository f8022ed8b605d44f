package model

import "time"

// OperationLog 管理端对许可证的操作记录
type OperationLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	TargetID  string    `json:"target_id" gorm:"index"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionSeatIncrement = "seat_increment"
	ActionSeatDecrement = "seat_decrement"
	ActionSeatReset     = "seat_reset"

	TargetLicense = "license"
)
