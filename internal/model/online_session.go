package model

import "time"

// OnlineSession 在线会话。只保存令牌的单向哈希，原始令牌不落库。
// 同一 (DeviceID, CodeID) 至多保留一条会话记录，重复创建时原地刷新。
type OnlineSession struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	DeviceID uint `json:"device_id" gorm:"index;not null"`
	TenantID uint `json:"tenant_id" gorm:"index;not null"`
	CodeID   uint `json:"code_id" gorm:"index;not null"`

	TokenHash       string     `json:"-" gorm:"index;not null"`
	IsValid         bool       `json:"is_valid" gorm:"index;default:true"`
	ForceOffline    bool       `json:"force_offline" gorm:"default:false"`
	LoginTime       time.Time  `json:"login_time"`
	LastHeartbeat   time.Time  `json:"last_heartbeat" gorm:"index"`
	TokenExpireTime *time.Time `json:"token_expire_time"`

	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OnlineSession) TableName() string {
	return "online_sessions"
}

// IsLive 会话存活判定：有效、未被踢下线、令牌未到期
func (s *OnlineSession) IsLive(now time.Time) bool {
	if !s.IsValid || s.ForceOffline {
		return false
	}
	if s.TokenExpireTime != nil && now.After(*s.TokenExpireTime) {
		return false
	}
	return true
}
