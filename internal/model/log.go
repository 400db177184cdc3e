package model

import "time"

// OperationLog 管理端操作日志
type OperationLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id"`
	Action    string    `json:"action"` // generate, update, delete, adjust_time, unbind, force_offline 等
	Target    string    `json:"target"` // code, device, session, blacklist, tenant
	TargetID  string    `json:"target_id"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
