package service

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"auth-code-system/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 卡密字符表：数字加大写字母，共36个符号
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CodeRegistry 授权码的批量生成与管理
type CodeRegistry struct {
	db *gorm.DB
}

func NewCodeRegistry(db *gorm.DB) *CodeRegistry {
	return &CodeRegistry{db: db}
}

// BatchConfig 批量生成参数
type BatchConfig struct {
	Billing model.BillingType `json:"billing"`

	// 时长卡
	CardType     string     `json:"card_type"`
	Duration     int        `json:"duration"`
	ActivateMode string     `json:"activate_mode"`
	StartTime    *time.Time `json:"start_time"`

	// 点数卡
	TotalPoints  int    `json:"total_points"`
	DeductType   string `json:"deduct_type"`
	DeductAmount int    `json:"deduct_amount"`

	// 公共配额
	MaxDevices   int    `json:"max_devices"`
	AllowRebind  int    `json:"allow_rebind"`
	SingleOnline bool   `json:"single_online"`
	Remark       string `json:"remark"`
}

// randomCode 生成形如 XXXX-XXXX-XXXX-XXXX 的卡密，字符取自CSPRNG
func randomCode() (string, error) {
	groups := make([]string, 4)
	max := big.NewInt(int64(len(codeAlphabet)))
	for g := 0; g < 4; g++ {
		var sb strings.Builder
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			sb.WriteByte(codeAlphabet[n.Int64()])
		}
		groups[g] = sb.String()
	}
	return strings.Join(groups, "-"), nil
}

// GenerateBatch 为租户批量生成授权码。每个卡密都对全量已有卡密做确定性查重，
// 直到不冲突为止。返回生成的记录和批次号。
func (r *CodeRegistry) GenerateBatch(tenantID uint, cfg BatchConfig, count int) ([]model.AuthCode, string, error) {
	if count <= 0 {
		return nil, "", invalidInput(ReasonBadAmount, "生成数量必须大于0")
	}

	var tenant model.Tenant
	if err := r.db.First(&tenant, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", notFound(ReasonTenantNotFound, "租户不存在")
		}
		return nil, "", err
	}

	if cfg.Billing == model.BillingDuration && cfg.CardType != model.CardTypePermanent {
		if _, derr := durationFor(cfg.CardType, cfg.Duration); derr != nil {
			return nil, "", derr
		}
	}

	batchID := uuid.NewString()
	inBatch := make(map[string]struct{}, count)
	codes := make([]model.AuthCode, 0, count)

	for len(codes) < count {
		value, err := randomCode()
		if err != nil {
			return nil, "", err
		}
		if _, dup := inBatch[value]; dup {
			continue
		}
		// 对库内全量卡密查重，不依赖概率唯一
		var existing int64
		if err := r.db.Model(&model.AuthCode{}).Where("code = ?", value).Count(&existing).Error; err != nil {
			return nil, "", err
		}
		if existing > 0 {
			continue
		}
		inBatch[value] = struct{}{}

		var code *model.AuthCode
		switch cfg.Billing {
		case model.BillingPoints:
			code = model.NewPointsCode(tenantID, value, model.PointsInfo{
				TotalPoints:  cfg.TotalPoints,
				DeductType:   cfg.DeductType,
				DeductAmount: cfg.DeductAmount,
			})
		default:
			info := model.DurationInfo{
				CardType:     cfg.CardType,
				Duration:     cfg.Duration,
				ActivateMode: cfg.ActivateMode,
			}
			// 固定起止模式在生成时就预先算好过期时间
			if cfg.ActivateMode == model.ActivateModeScheduled && cfg.StartTime != nil {
				start := *cfg.StartTime
				expire, derr := expireFrom(start, cfg.CardType, cfg.Duration)
				if derr != nil {
					return nil, "", derr
				}
				info.StartTime = &start
				info.ExpireTime = &expire
			}
			code = model.NewDurationCode(tenantID, value, info)
		}
		code.BatchID = batchID
		code.MaxDevices = cfg.MaxDevices
		if code.MaxDevices <= 0 {
			code.MaxDevices = 1
		}
		code.AllowRebind = cfg.AllowRebind
		code.SingleOnline = cfg.SingleOnline
		code.Remark = cfg.Remark
		codes = append(codes, *code)
	}

	if err := r.db.Create(&codes).Error; err != nil {
		return nil, "", err
	}
	return codes, batchID, nil
}

// ListQuery 列表过滤参数
type ListQuery struct {
	TenantID uint
	Status   string
	Billing  string
	Keyword  string // 卡密子串
	Page     int
	PageSize int
}

// List 分页查询授权码
func (r *CodeRegistry) List(q ListQuery) ([]model.AuthCode, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}

	db := r.db.Model(&model.AuthCode{})
	if q.TenantID != 0 {
		db = db.Where("tenant_id = ?", q.TenantID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Billing != "" {
		db = db.Where("billing = ?", q.Billing)
	}
	if q.Keyword != "" {
		db = db.Where("code LIKE ?", "%"+q.Keyword+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var codes []model.AuthCode
	offset := (q.Page - 1) * q.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(q.PageSize).Find(&codes).Error; err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

// GetByValue 按卡密查询
func (r *CodeRegistry) GetByValue(code string) (*model.AuthCode, error) {
	var record model.AuthCode
	if err := r.db.Where("code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonCodeNotFound, "授权码不存在")
		}
		return nil, err
	}
	return &record, nil
}

// GetByID 按主键查询
func (r *CodeRegistry) GetByID(id uint) (*model.AuthCode, error) {
	var record model.AuthCode
	if err := r.db.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(ReasonCodeNotFound, "授权码不存在")
		}
		return nil, err
	}
	return &record, nil
}

// UpdateInput 管理端修改授权码
type UpdateInput struct {
	Status          *string    `json:"status"`
	MaxDevices      *int       `json:"max_devices"`
	AllowRebind     *int       `json:"allow_rebind"`
	SingleOnline    *bool      `json:"single_online"`
	Remark          *string    `json:"remark"`
	ExpireTime      *time.Time `json:"expire_time"`       // 仅时长卡
	RemainingPoints *int       `json:"remaining_points"`  // 仅点数卡
}

// Update 管理端修改授权码配置
func (r *CodeRegistry) Update(id uint, input UpdateInput) (*model.AuthCode, error) {
	code, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	if input.Status != nil {
		switch *input.Status {
		case model.CodeStatusUnused, model.CodeStatusActive,
			model.CodeStatusExpired, model.CodeStatusDisabled:
			code.Status = *input.Status
		default:
			return nil, invalidInput(ReasonBadStatus, "无效的状态: "+*input.Status)
		}
	}
	if input.MaxDevices != nil && *input.MaxDevices > 0 {
		code.MaxDevices = *input.MaxDevices
	}
	if input.AllowRebind != nil && *input.AllowRebind >= 0 {
		code.AllowRebind = *input.AllowRebind
	}
	if input.SingleOnline != nil {
		code.SingleOnline = *input.SingleOnline
	}
	if input.Remark != nil {
		code.Remark = *input.Remark
	}
	if input.ExpireTime != nil {
		if code.Billing != model.BillingDuration {
			return nil, unsupported(ReasonWrongBilling, "点数卡不支持修改过期时间")
		}
		code.Duration.ExpireTime = input.ExpireTime
	}
	if input.RemainingPoints != nil {
		if code.Billing != model.BillingPoints {
			return nil, unsupported(ReasonWrongBilling, "时长卡不支持修改剩余点数")
		}
		if *input.RemainingPoints < 0 || *input.RemainingPoints > code.Points.TotalPoints {
			return nil, invalidInput(ReasonBadAmount, "剩余点数必须在0与总点数之间")
		}
		code.Points.RemainingPoints = *input.RemainingPoints
	}

	reconcileStatus(code, time.Now())

	if err := r.db.Save(code).Error; err != nil {
		return nil, err
	}
	return code, nil
}

// Delete 删除授权码，先解绑所有设备。返回是否找到。
func (r *CodeRegistry) Delete(id uint) (bool, error) {
	var code model.AuthCode
	if err := r.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Device{}).Where("bound_code_id = ?", id).
			Updates(map[string]interface{}{
				"bound_code_id": nil,
				"status":        model.DeviceStatusInactive,
			}).Error; err != nil {
			return err
		}
		return tx.Delete(&code).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// 时间调整方向
const (
	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
)

// AdjustTime 管理端增减过期时间。与激活计费不同，这里的月/年按日历字段平移。
// 减少不会把过期时间调到当前时刻之前，最多收敛到当前时刻。
func (r *CodeRegistry) AdjustTime(id uint, direction string, amount int, unit string) (*model.AuthCode, error) {
	if amount <= 0 {
		return nil, invalidInput(ReasonBadAmount, "调整数量必须大于0")
	}
	if direction != AdjustAdd && direction != AdjustSubtract {
		return nil, invalidInput(ReasonBadTimeUnit, "无效的调整方向: "+direction)
	}

	code, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if code.Billing != model.BillingDuration {
		return nil, unsupported(ReasonWrongBilling, "点数卡不支持时间调整")
	}
	if code.Duration.CardType == model.CardTypePermanent {
		return nil, unsupported(ReasonNotAdjustable, "永久卡不支持时间调整")
	}
	if code.Status == model.CodeStatusUnused || code.Duration.ExpireTime == nil {
		return nil, unsupported(ReasonNotAdjustable, "未激活的授权码不支持时间调整")
	}

	sign := 1
	if direction == AdjustSubtract {
		sign = -1
	}

	expire := *code.Duration.ExpireTime
	switch unit {
	case model.CardTypeMinute:
		expire = expire.Add(time.Duration(sign*amount) * time.Minute)
	case model.CardTypeHour:
		expire = expire.Add(time.Duration(sign*amount) * time.Hour)
	case model.CardTypeDay:
		expire = expire.AddDate(0, 0, sign*amount)
	case model.CardTypeWeek:
		expire = expire.AddDate(0, 0, sign*amount*7)
	case model.CardTypeMonth:
		expire = expire.AddDate(0, sign*amount, 0)
	case model.CardTypeQuarter:
		expire = expire.AddDate(0, sign*amount*3, 0)
	case model.CardTypeYear:
		expire = expire.AddDate(sign*amount, 0, 0)
	default:
		return nil, invalidInput(ReasonBadTimeUnit, "无效的时间单位: "+unit)
	}

	now := time.Now()
	if expire.Before(now) {
		expire = now
	}
	code.Duration.ExpireTime = &expire

	reconcileStatus(code, now)

	if err := r.db.Save(code).Error; err != nil {
		return nil, err
	}
	return code, nil
}

// reconcileStatus 按当前过期时间/剩余点数校正已激活或已过期状态，
// 不触碰 unused 与 disabled。
func reconcileStatus(code *model.AuthCode, now time.Time) {
	if code.Status == model.CodeStatusUnused || code.Status == model.CodeStatusDisabled {
		return
	}
	switch code.Billing {
	case model.BillingDuration:
		if code.Duration.ExpireTime == nil {
			return
		}
		if now.After(*code.Duration.ExpireTime) {
			code.Status = model.CodeStatusExpired
		} else {
			code.Status = model.CodeStatusActive
		}
	case model.BillingPoints:
		if code.Points.RemainingPoints <= 0 {
			code.Status = model.CodeStatusExpired
		} else {
			code.Status = model.CodeStatusActive
		}
	}
}

// ListDeductions 查询授权码的扣点流水
func (r *CodeRegistry) ListDeductions(codeID uint, page, pageSize int) ([]model.PointDeductionRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	db := r.db.Model(&model.PointDeductionRecord{}).Where("code_id = ?", codeID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.PointDeductionRecord
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
