package model

import (
	"time"
)

// 计费模式
type BillingType string

const (
	BillingDuration BillingType = "duration" // 时长卡
	BillingPoints   BillingType = "points"   // 点数卡
)

// 授权码状态
const (
	CodeStatusUnused   = "unused"   // 未使用
	CodeStatusActive   = "active"   // 已激活
	CodeStatusExpired  = "expired"  // 已过期
	CodeStatusDisabled = "disabled" // 已禁用
)

// 时长卡类型
const (
	CardTypeMinute    = "minute"
	CardTypeHour      = "hour"
	CardTypeDay       = "day"
	CardTypeWeek      = "week"
	CardTypeMonth     = "month"
	CardTypeQuarter   = "quarter"
	CardTypeYear      = "year"
	CardTypePermanent = "permanent"
)

// 激活方式
const (
	ActivateModeFirstUse  = "first_use" // 首次使用时计时
	ActivateModeScheduled = "scheduled" // 固定起止时间
)

// DurationInfo 时长卡计费字段，仅 Billing == duration 时有意义
type DurationInfo struct {
	CardType     string     `json:"card_type" gorm:"column:card_type"`
	Duration     int        `json:"duration" gorm:"column:duration"` // 以 CardType 为单位的时长
	ActivateMode string     `json:"activate_mode" gorm:"column:activate_mode"`
	StartTime    *time.Time `json:"start_time" gorm:"column:start_time"`
	ExpireTime   *time.Time `json:"expire_time" gorm:"column:expire_time"`
}

// PointsInfo 点数卡计费字段，仅 Billing == points 时有意义
type PointsInfo struct {
	TotalPoints     int    `json:"total_points" gorm:"column:total_points"`
	RemainingPoints int    `json:"remaining_points" gorm:"column:remaining_points"`
	DeductType      string `json:"deduct_type" gorm:"column:deduct_type"`   // 扣点方式说明，如 per_use
	DeductAmount    int    `json:"deduct_amount" gorm:"column:deduct_amount"` // 默认单次扣点数
}

// AuthCode 授权码。公共表头加计费标签，时长/点数字段按标签互斥，
// 通过 NewDurationCode / NewPointsCode 构造、DurationFields / PointsFields 访问。
type AuthCode struct {
	ID       uint        `json:"id" gorm:"primaryKey"`
	TenantID uint        `json:"tenant_id" gorm:"index;not null"`
	Code     string      `json:"code" gorm:"uniqueIndex;not null"` // 卡密本体
	BatchID  string      `json:"batch_id" gorm:"index"`            // 生成批次
	Billing  BillingType `json:"billing" gorm:"not null"`

	Duration DurationInfo `json:"duration_info" gorm:"embedded"`
	Points   PointsInfo   `json:"points_info" gorm:"embedded"`

	MaxDevices   int    `json:"max_devices" gorm:"default:1"`  // 同时绑定设备上限
	AllowRebind  int    `json:"allow_rebind" gorm:"default:0"` // 允许换绑次数
	RebindCount  int    `json:"rebind_count" gorm:"default:0"` // 已换绑次数
	SingleOnline bool   `json:"single_online" gorm:"default:false"`
	Status       string `json:"status" gorm:"index;default:'unused'"`
	Remark       string `json:"remark"`

	UsedTime  *time.Time `json:"used_time"` // 首次激活时间
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (AuthCode) TableName() string {
	return "auth_codes"
}

// NewDurationCode 构造时长卡
func NewDurationCode(tenantID uint, code string, info DurationInfo) *AuthCode {
	return &AuthCode{
		TenantID: tenantID,
		Code:     code,
		Billing:  BillingDuration,
		Duration: info,
		Status:   CodeStatusUnused,
	}
}

// NewPointsCode 构造点数卡，剩余点数初始化为总点数
func NewPointsCode(tenantID uint, code string, info PointsInfo) *AuthCode {
	info.RemainingPoints = info.TotalPoints
	return &AuthCode{
		TenantID: tenantID,
		Code:     code,
		Billing:  BillingPoints,
		Points:   info,
		Status:   CodeStatusUnused,
	}
}

// DurationFields 仅对时长卡返回计费字段
func (a *AuthCode) DurationFields() (*DurationInfo, bool) {
	if a.Billing != BillingDuration {
		return nil, false
	}
	return &a.Duration, true
}

// PointsFields 仅对点数卡返回计费字段
func (a *AuthCode) PointsFields() (*PointsInfo, bool) {
	if a.Billing != BillingPoints {
		return nil, false
	}
	return &a.Points, true
}

// IsExpiredAt 判断授权码在给定时刻是否应视为过期
func (a *AuthCode) IsExpiredAt(now time.Time) bool {
	if a.Status == CodeStatusExpired {
		return true
	}
	switch a.Billing {
	case BillingDuration:
		return a.Duration.ExpireTime != nil && now.After(*a.Duration.ExpireTime)
	case BillingPoints:
		return a.Status == CodeStatusActive && a.Points.RemainingPoints <= 0
	}
	return false
}
