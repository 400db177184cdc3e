package model

import "time"

// 租户状态
const (
	TenantStatusActive   = "active"
	TenantStatusDisabled = "disabled"
)

// Tenant 租户（接入的第三方应用）
type Tenant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"unique;not null"`
	AppKey    string    `json:"app_key" gorm:"uniqueIndex"`
	Status    string    `json:"status" gorm:"default:'active'"`
	Contact   string    `json:"contact"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}
