package model

import "time"

// 黑名单类型
const (
	BlacklistTypeDevice = "device" // 按设备指纹封禁
	BlacklistTypeIP     = "ip"     // 按IP封禁
)

// BlacklistEntry 黑名单条目。TenantID 为空表示全局封禁。
type BlacklistEntry struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	TenantID *uint  `json:"tenant_id" gorm:"index"`
	Type     string `json:"type" gorm:"index;not null"`
	Value    string `json:"value" gorm:"index;not null"` // 指纹或IP
	Reason   string `json:"reason"`

	CreatedAt time.Time `json:"created_at"`
}

func (BlacklistEntry) TableName() string {
	return "blacklist_entries"
}
