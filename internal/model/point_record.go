package model

import "time"

// PointDeductionRecord 扣点流水，只增不改
type PointDeductionRecord struct {
	ID       uint  `json:"id" gorm:"primaryKey"`
	TenantID uint  `json:"tenant_id" gorm:"index;not null"`
	CodeID   uint  `json:"code_id" gorm:"index;not null"`
	DeviceID *uint `json:"device_id" gorm:"index"`

	Amount  int    `json:"amount" gorm:"not null"` // 本次扣除点数
	Balance int    `json:"balance" gorm:"not null"` // 扣除后余额
	Reason  string `json:"reason"`
	IP      string `json:"ip"`

	CreatedAt time.Time `json:"created_at"`
}

func (PointDeductionRecord) TableName() string {
	return "point_deduction_records"
}
