package service

import (
	"errors"
	"time"

	"auth-code-system/internal/config"
	"auth-code-system/internal/model"

	"gorm.io/gorm"
)

// ActivationEngine 授权码状态机：激活、验证、扣点。
// 状态只向前走 unused → active → expired，disabled 仅由管理端设置。
type ActivationEngine struct {
	db          *gorm.DB
	cfg         *config.Config
	fingerprint *FingerprintValidator
	blacklist   *BlacklistGate
	binding     *BindingManager
}

func NewActivationEngine(db *gorm.DB, cfg *config.Config, fv *FingerprintValidator, gate *BlacklistGate, binding *BindingManager) *ActivationEngine {
	return &ActivationEngine{db: db, cfg: cfg, fingerprint: fv, blacklist: gate, binding: binding}
}

// ActivateResult 激活结果
type ActivateResult struct {
	Code            *model.AuthCode `json:"code"`
	Device          *model.Device   `json:"device"`
	IsNewActivation bool            `json:"is_new_activation"`
}

// loadCodeWithTenant 按卡密加载授权码并做租户/状态门禁
func (e *ActivationEngine) loadCodeWithTenant(codeValue string) (*model.AuthCode, error) {
	var code model.AuthCode
	if err := e.db.Where("code = ?", codeValue).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonCodeNotFound, "授权码不存在")
		}
		return nil, err
	}

	var tenant model.Tenant
	if err := e.db.First(&tenant, code.TenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonTenantNotFound, "租户不存在")
		}
		return nil, err
	}
	if tenant.Status != model.TenantStatusActive {
		return nil, forbidden(ReasonTenantDisabled, "租户已禁用")
	}

	switch code.Status {
	case model.CodeStatusDisabled:
		return nil, forbidden(ReasonCodeDisabled, "授权码已禁用")
	case model.CodeStatusExpired:
		return nil, stale(ReasonCodeExpired, "授权码已过期")
	}
	return &code, nil
}

// checkBlacklist 指纹与IP双重黑名单校验，IP为空时跳过IP项
func (e *ActivationEngine) checkBlacklist(fingerprint, ip string, tenantID uint) error {
	result, err := e.blacklist.IsDeviceBlacklisted(fingerprint, tenantID)
	if err != nil {
		return err
	}
	if result.Blacklisted {
		return forbidden(ReasonBlacklisted, result.Reason)
	}
	if ip != "" {
		result, err = e.blacklist.IsIPBlacklisted(ip, tenantID)
		if err != nil {
			return err
		}
		if result.Blacklisted {
			return forbidden(ReasonBlacklisted, result.Reason)
		}
	}
	return nil
}

// Activate 激活授权码并绑定设备。同一指纹重复激活幂等返回，不再变更任何状态。
func (e *ActivationEngine) Activate(codeValue, fingerprint string, info model.DeviceInfo, ip string) (*ActivateResult, error) {
	if !e.fingerprint.VerifyFormat(fingerprint) {
		return nil, invalidInput(ReasonBadFingerprint, "设备指纹格式错误")
	}

	code, err := e.loadCodeWithTenant(codeValue)
	if err != nil {
		return nil, err
	}

	if err := e.checkBlacklist(fingerprint, ip, code.TenantID); err != nil {
		return nil, err
	}

	// 已绑定设备重复激活：幂等返回，不做任何写入
	var bound model.Device
	err = e.db.Where("fingerprint = ? AND bound_code_id = ?", fingerprint, code.ID).First(&bound).Error
	if err == nil {
		return &ActivateResult{Code: code, Device: &bound, IsNewActivation: false}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 设备配额：已绑定数（不含本指纹）必须小于上限
	count, err := e.binding.CountBoundExcluding(code.ID, fingerprint)
	if err != nil {
		return nil, err
	}
	if count >= int64(code.MaxDevices) {
		return nil, conflict(ReasonDeviceLimit, "设备数量已达上限")
	}

	// 首次激活的状态迁移
	if code.Status == model.CodeStatusUnused {
		now := time.Now()
		code.Status = model.CodeStatusActive
		code.UsedTime = &now

		switch code.Billing {
		case model.BillingDuration:
			mode := code.Duration.ActivateMode
			// 固定起止但生成时没定起始时间的，退化为首次使用计时
			scheduled := mode == model.ActivateModeScheduled &&
				code.Duration.StartTime != nil && code.Duration.ExpireTime != nil
			if !scheduled {
				start := now
				expire, derr := expireFrom(start, code.Duration.CardType, code.Duration.Duration)
				if derr != nil {
					return nil, derr
				}
				code.Duration.StartTime = &start
				code.Duration.ExpireTime = &expire
			}
		case model.BillingPoints:
			if code.Points.RemainingPoints == 0 && code.Points.TotalPoints > 0 {
				code.Points.RemainingPoints = code.Points.TotalPoints
			}
		}

		if err := e.db.Save(code).Error; err != nil {
			return nil, err
		}
	}

	device, err := e.binding.Bind(code.ID, fingerprint, info, ip)
	if err != nil {
		return nil, err
	}

	return &ActivateResult{Code: code, Device: device, IsNewActivation: true}, nil
}

// VerifyResult 验证结果
type VerifyResult struct {
	Valid            bool            `json:"valid"`
	Reason           string          `json:"reason,omitempty"`
	Code             *model.AuthCode `json:"code,omitempty"`
	Device           *model.Device   `json:"device,omitempty"`
	RemainingSeconds int64           `json:"remaining_seconds,omitempty"` // 时长卡剩余秒数
	RemainingPoints  int             `json:"remaining_points,omitempty"`  // 点数卡剩余点数
}

// Verify 验证授权有效性。除懒惰的过期落库外不产生任何写入。
func (e *ActivationEngine) Verify(codeValue, fingerprint, ip string) (*VerifyResult, error) {
	if !e.fingerprint.VerifyFormat(fingerprint) {
		return nil, invalidInput(ReasonBadFingerprint, "设备指纹格式错误")
	}

	code, err := e.loadCodeWithTenant(codeValue)
	if err != nil {
		var berr *Error
		if errors.As(err, &berr) {
			return &VerifyResult{Valid: false, Reason: berr.Reason}, nil
		}
		return nil, err
	}

	if err := e.checkBlacklist(fingerprint, ip, code.TenantID); err != nil {
		var berr *Error
		if errors.As(err, &berr) {
			return &VerifyResult{Valid: false, Reason: berr.Reason}, nil
		}
		return nil, err
	}

	var device model.Device
	err = e.db.Where("fingerprint = ? AND bound_code_id = ?", fingerprint, code.ID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &VerifyResult{Valid: false, Reason: ReasonDeviceNotBound}, nil
		}
		return nil, err
	}
	if device.Status != model.DeviceStatusActive {
		return &VerifyResult{Valid: false, Reason: ReasonDeviceDisabled}, nil
	}

	now := time.Now()
	switch code.Billing {
	case model.BillingDuration:
		if code.Duration.ExpireTime != nil && now.After(*code.Duration.ExpireTime) {
			// 发现过期立即落库，重复验证幂等
			if code.Status != model.CodeStatusExpired {
				code.Status = model.CodeStatusExpired
				if err := e.db.Model(code).Update("status", model.CodeStatusExpired).Error; err != nil {
					return nil, err
				}
			}
			return &VerifyResult{Valid: false, Reason: ReasonCodeExpired}, nil
		}
		result := &VerifyResult{Valid: true, Code: code, Device: &device}
		if code.Duration.ExpireTime != nil {
			result.RemainingSeconds = int64(code.Duration.ExpireTime.Sub(now).Seconds())
		}
		return result, nil
	case model.BillingPoints:
		if code.Points.RemainingPoints <= 0 {
			if code.Status != model.CodeStatusExpired {
				code.Status = model.CodeStatusExpired
				if err := e.db.Model(code).Update("status", model.CodeStatusExpired).Error; err != nil {
					return nil, err
				}
			}
			return &VerifyResult{Valid: false, Reason: ReasonPointsExhausted}, nil
		}
		return &VerifyResult{
			Valid:           true,
			Code:            code,
			Device:          &device,
			RemainingPoints: code.Points.RemainingPoints,
		}, nil
	}
	return &VerifyResult{Valid: false, Reason: ReasonWrongBilling}, nil
}

// DeductInput 扣点参数。Amount 为0时使用卡面默认扣点数。
type DeductInput struct {
	Amount   int
	Reason   string
	DeviceID *uint
	IP       string
}

// DeductPoints 点数卡扣点。余额扣到0时同一事务里把状态置为过期，
// 并追加一条不可变的扣点流水。
func (e *ActivationEngine) DeductPoints(codeID uint, input DeductInput) (*model.AuthCode, error) {
	var code model.AuthCode
	if err := e.db.First(&code, codeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonCodeNotFound, "授权码不存在")
		}
		return nil, err
	}

	if code.Billing != model.BillingPoints {
		return nil, unsupported(ReasonWrongBilling, "时长卡不支持扣点")
	}
	if code.Status != model.CodeStatusActive {
		return nil, stale(ReasonCodeExpired, "授权码不在激活状态")
	}

	amount := input.Amount
	if amount == 0 {
		amount = code.Points.DeductAmount
	}
	if amount <= 0 {
		return nil, invalidInput(ReasonBadAmount, "扣点数量必须大于0")
	}
	if amount > code.Points.RemainingPoints {
		return nil, conflict(ReasonInsufficientPoints, "剩余点数不足")
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		// 原子减量加条件更新：并发双扣既不会打穿余额，也不会丢更新
		result := tx.Model(&model.AuthCode{}).
			Where("id = ? AND remaining_points >= ?", code.ID, amount).
			UpdateColumn("remaining_points", gorm.Expr("remaining_points - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflict(ReasonInsufficientPoints, "剩余点数不足")
		}

		// 回读扣减后的真实余额，流水与状态都以它为准
		if err := tx.First(&code, code.ID).Error; err != nil {
			return err
		}
		if code.Points.RemainingPoints == 0 && code.Status == model.CodeStatusActive {
			if err := tx.Model(&code).Update("status", model.CodeStatusExpired).Error; err != nil {
				return err
			}
			code.Status = model.CodeStatusExpired
		}

		record := model.PointDeductionRecord{
			TenantID: code.TenantID,
			CodeID:   code.ID,
			DeviceID: input.DeviceID,
			Amount:   amount,
			Balance:  code.Points.RemainingPoints,
			Reason:   input.Reason,
			IP:       input.IP,
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &code, nil
}
