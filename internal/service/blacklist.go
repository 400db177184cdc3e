package service

import (
	"errors"

	"auth-code-system/internal/model"

	"gorm.io/gorm"
)

// BlacklistGate 黑名单只读查询。先查租户范围再查全局，同范围内取最新一条。
type BlacklistGate struct {
	db *gorm.DB
}

func NewBlacklistGate(db *gorm.DB) *BlacklistGate {
	return &BlacklistGate{db: db}
}

// BlacklistResult 查询结果
type BlacklistResult struct {
	Blacklisted bool
	Reason      string
}

func (g *BlacklistGate) lookup(entryType, value string, tenantID uint) (BlacklistResult, error) {
	var entry model.BlacklistEntry

	// 租户范围优先
	err := g.db.Where("type = ? AND value = ? AND tenant_id = ?", entryType, value, tenantID).
		Order("created_at DESC").First(&entry).Error
	if err == nil {
		return BlacklistResult{Blacklisted: true, Reason: entry.Reason}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return BlacklistResult{}, err
	}

	// 全局条目
	err = g.db.Where("type = ? AND value = ? AND tenant_id IS NULL", entryType, value).
		Order("created_at DESC").First(&entry).Error
	if err == nil {
		return BlacklistResult{Blacklisted: true, Reason: entry.Reason}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return BlacklistResult{}, err
	}
	return BlacklistResult{}, nil
}

// IsDeviceBlacklisted 指纹是否被封禁
func (g *BlacklistGate) IsDeviceBlacklisted(fingerprint string, tenantID uint) (BlacklistResult, error) {
	return g.lookup(model.BlacklistTypeDevice, fingerprint, tenantID)
}

// IsIPBlacklisted IP是否被封禁
func (g *BlacklistGate) IsIPBlacklisted(ip string, tenantID uint) (BlacklistResult, error) {
	return g.lookup(model.BlacklistTypeIP, ip, tenantID)
}
