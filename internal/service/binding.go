package service

import (
	"errors"
	"time"

	"auth-code-system/internal/model"

	"gorm.io/gorm"
)

// BindingManager 设备与授权码的绑定关系。设备记录按指纹唯一，
// 解绑和换绑只清除指向，不删除记录。
type BindingManager struct {
	db          *gorm.DB
	fingerprint *FingerprintValidator
	blacklist   *BlacklistGate
}

func NewBindingManager(db *gorm.DB, fv *FingerprintValidator, gate *BlacklistGate) *BindingManager {
	return &BindingManager{db: db, fingerprint: fv, blacklist: gate}
}

// bindTx 在事务内把指纹绑定到授权码。已有设备记录时原地刷新并重新指向，
// 指纹永不重复建行，重复调用幂等。
func (m *BindingManager) bindTx(tx *gorm.DB, code *model.AuthCode, fingerprint string, info model.DeviceInfo, ip string) (*model.Device, error) {
	var device model.Device
	err := tx.Where("fingerprint = ?", fingerprint).First(&device).Error
	switch {
	case err == nil:
		device.TenantID = code.TenantID
		device.BoundCodeID = &code.ID
		device.Status = model.DeviceStatusActive
		device.ApplyInfo(info, ip)
		if err := tx.Save(&device).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = model.Device{
			TenantID:    code.TenantID,
			Fingerprint: fingerprint,
			BoundCodeID: &code.ID,
			Status:      model.DeviceStatusActive,
			LastIP:      ip,
		}
		device.ApplyInfo(info, ip)
		if err := tx.Create(&device).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &device, nil
}

// Bind 把指纹绑定到授权码
func (m *BindingManager) Bind(codeID uint, fingerprint string, info model.DeviceInfo, ip string) (*model.Device, error) {
	if !m.fingerprint.VerifyFormat(fingerprint) {
		return nil, invalidInput(ReasonBadFingerprint, "设备指纹格式错误")
	}

	var code model.AuthCode
	if err := m.db.First(&code, codeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonCodeNotFound, "授权码不存在")
		}
		return nil, err
	}

	return m.bindTx(m.db, &code, fingerprint, info, ip)
}

// ListBound 查询当前绑定到授权码的全部设备
func (m *BindingManager) ListBound(codeID uint) ([]model.Device, error) {
	var devices []model.Device
	if err := m.db.Where("bound_code_id = ?", codeID).Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// CountBoundExcluding 统计绑定设备数，排除指定指纹。配额校验用：
// 已绑定的指纹重复激活不占新配额。
func (m *BindingManager) CountBoundExcluding(codeID uint, fingerprint string) (int64, error) {
	var count int64
	err := m.db.Model(&model.Device{}).
		Where("bound_code_id = ? AND fingerprint <> ?", codeID, fingerprint).
		Count(&count).Error
	return count, err
}

// UnbindAdmin 管理端解绑：清除指向并置为闲置，不消耗换绑次数
func (m *BindingManager) UnbindAdmin(codeID, deviceID uint) error {
	var device model.Device
	if err := m.db.First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(ReasonDeviceNotFound, "设备不存在")
		}
		return err
	}
	if device.BoundCodeID == nil || *device.BoundCodeID != codeID {
		return conflict(ReasonDeviceNotBound, "设备未绑定到该授权码")
	}

	return m.db.Model(&device).Updates(map[string]interface{}{
		"bound_code_id": nil,
		"status":        model.DeviceStatusInactive,
		"updated_at":    time.Now(),
	}).Error
}

// Rebind 换绑：老设备解绑、新指纹绑定、换绑计数加一，整体在一个事务里完成，
// 对外要么全部生效要么全部不生效。
func (m *BindingManager) Rebind(codeValue, oldFingerprint, newFingerprint string, info model.DeviceInfo, ip string) (*model.AuthCode, *model.Device, error) {
	if !m.fingerprint.VerifyFormat(newFingerprint) {
		return nil, nil, invalidInput(ReasonBadFingerprint, "新设备指纹格式错误")
	}

	var code model.AuthCode
	if err := m.db.Where("code = ?", codeValue).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound(ReasonCodeNotFound, "授权码不存在")
		}
		return nil, nil, err
	}

	// 只有已激活状态可以换绑，各失败状态给出区分的原因
	switch code.Status {
	case model.CodeStatusActive:
	case model.CodeStatusUnused:
		return nil, nil, conflict(ReasonCodeUnused, "授权码尚未激活")
	case model.CodeStatusExpired:
		return nil, nil, stale(ReasonCodeExpired, "授权码已过期")
	case model.CodeStatusDisabled:
		return nil, nil, forbidden(ReasonCodeDisabled, "授权码已禁用")
	default:
		return nil, nil, forbidden(ReasonCodeDisabled, "授权码状态异常")
	}

	if code.RebindCount >= code.AllowRebind {
		return nil, nil, conflict(ReasonRebindLimit, "换绑次数已用完")
	}

	// 只校验新指纹的黑名单
	result, err := m.blacklist.IsDeviceBlacklisted(newFingerprint, code.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if result.Blacklisted {
		return nil, nil, forbidden(ReasonBlacklisted, result.Reason)
	}

	var oldDevice model.Device
	if err := m.db.Where("fingerprint = ? AND bound_code_id = ?", oldFingerprint, code.ID).
		First(&oldDevice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, conflict(ReasonDeviceNotBound, "原设备未绑定到该授权码")
		}
		return nil, nil, err
	}

	// 新指纹已经绑在这张卡上就没有换绑的意义
	var dup int64
	if err := m.db.Model(&model.Device{}).
		Where("fingerprint = ? AND bound_code_id = ?", newFingerprint, code.ID).
		Count(&dup).Error; err != nil {
		return nil, nil, err
	}
	if dup > 0 {
		return nil, nil, conflict(ReasonRebindSameDevice, "新设备已绑定到该授权码")
	}

	var newDevice *model.Device
	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&oldDevice).Updates(map[string]interface{}{
			"bound_code_id": nil,
			"status":        model.DeviceStatusInactive,
			"updated_at":    time.Now(),
		}).Error; err != nil {
			return err
		}

		var err error
		newDevice, err = m.bindTx(tx, &code, newFingerprint, info, ip)
		if err != nil {
			return err
		}

		// 换绑计数原子加一
		return tx.Model(&model.AuthCode{}).Where("id = ?", code.ID).
			UpdateColumn("rebind_count", gorm.Expr("rebind_count + 1")).Error
	})
	if err != nil {
		return nil, nil, err
	}

	// 重新加载，调用方能看到更新后的计数
	if err := m.db.First(&code, code.ID).Error; err != nil {
		return nil, nil, err
	}
	return &code, newDevice, nil
}
