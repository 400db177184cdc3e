package service

import (
	"testing"
	"time"

	"auth-code-system/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateFirstUseDurationMath(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, durationBatch(), 1) // day x30
	require.NoError(t, err)

	result, err := engine.Activate(codes[0].Code, testFP("a1"), testInfo("a1"), "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, result.IsNewActivation)
	assert.Equal(t, model.CodeStatusActive, result.Code.Status)
	require.NotNil(t, result.Code.UsedTime)

	info, ok := result.Code.DurationFields()
	require.True(t, ok)
	require.NotNil(t, info.StartTime)
	require.NotNil(t, info.ExpireTime)

	// 30天卡：过期减起始恰好等于30个86400秒
	assert.Equal(t, 30*24*time.Hour, info.ExpireTime.Sub(*info.StartTime))
}

func TestActivateIdempotentRepeat(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, durationBatch(), 1)
	require.NoError(t, err)

	fp := testFP("a2")
	first, err := engine.Activate(codes[0].Code, fp, testInfo("a2"), "")
	require.NoError(t, err)
	require.True(t, first.IsNewActivation)

	second, err := engine.Activate(codes[0].Code, fp, testInfo("a2"), "")
	require.NoError(t, err)
	assert.False(t, second.IsNewActivation)

	// 第二次调用不改变任何时间与状态
	assert.Equal(t, first.Code.Status, second.Code.Status)
	assert.Equal(t, first.Code.UsedTime.Unix(), second.Code.UsedTime.Unix())
	assert.Equal(t, first.Code.Duration.ExpireTime.Unix(), second.Code.Duration.ExpireTime.Unix())
	assert.Equal(t, first.Device.ID, second.Device.ID)
}

func TestActivateDeviceQuota(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	cfg := durationBatch()
	cfg.MaxDevices = 2
	codes, _, err := registry.GenerateBatch(tenant.ID, cfg, 1)
	require.NoError(t, err)

	_, err = engine.Activate(codes[0].Code, testFP("q1"), testInfo("q1"), "")
	require.NoError(t, err)
	_, err = engine.Activate(codes[0].Code, testFP("q2"), testInfo("q2"), "")
	require.NoError(t, err)

	// 第三台设备触顶
	_, err = engine.Activate(codes[0].Code, testFP("q3"), testInfo("q3"), "")
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonDeviceLimit, berr.Reason)

	// 已绑定设备重复激活不占配额
	_, err = engine.Activate(codes[0].Code, testFP("q1"), testInfo("q1"), "")
	require.NoError(t, err)
}

func TestActivateGateOrdering(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, durationBatch(), 2)
	require.NoError(t, err)

	var berr *Error

	// 指纹格式最先校验
	_, err = engine.Activate(codes[0].Code, "bogus", testInfo("g"), "")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonBadFingerprint, berr.Reason)

	// 不存在的卡
	_, err = engine.Activate("XXXX-XXXX-XXXX-XXXX", testFP("g"), testInfo("g"), "")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonCodeNotFound, berr.Reason)

	// 租户禁用
	require.NoError(t, db.Model(&model.Tenant{}).Where("id = ?", tenant.ID).
		Update("status", model.TenantStatusDisabled).Error)
	_, err = engine.Activate(codes[0].Code, testFP("g"), testInfo("g"), "")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonTenantDisabled, berr.Reason)
	require.NoError(t, db.Model(&model.Tenant{}).Where("id = ?", tenant.ID).
		Update("status", model.TenantStatusActive).Error)

	// 禁用的卡
	require.NoError(t, db.Model(&model.AuthCode{}).Where("id = ?", codes[0].ID).
		Update("status", model.CodeStatusDisabled).Error)
	_, err = engine.Activate(codes[0].Code, testFP("g"), testInfo("g"), "")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonCodeDisabled, berr.Reason)

	// IP黑名单
	require.NoError(t, db.Create(&model.BlacklistEntry{
		TenantID: &tenant.ID,
		Type:     model.BlacklistTypeIP,
		Value:    "6.6.6.6",
		Reason:   "恶意IP",
	}).Error)
	_, err = engine.Activate(codes[1].Code, testFP("g"), testInfo("g"), "6.6.6.6")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonBlacklisted, berr.Reason)
}

func TestActivateScheduledKeepsWindow(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	start := time.Now().Add(-time.Hour).Truncate(time.Second)
	cfg := BatchConfig{
		Billing:      model.BillingDuration,
		CardType:     model.CardTypeDay,
		Duration:     7,
		ActivateMode: model.ActivateModeScheduled,
		StartTime:    &start,
		MaxDevices:   1,
	}
	codes, _, err := registry.GenerateBatch(tenant.ID, cfg, 1)
	require.NoError(t, err)

	result, err := engine.Activate(codes[0].Code, testFP("s1"), testInfo("s1"), "")
	require.NoError(t, err)

	// 固定起止的卡激活不改动预设窗口
	assert.Equal(t, start.Unix(), result.Code.Duration.StartTime.Unix())
	assert.Equal(t, start.Add(7*24*time.Hour).Unix(), result.Code.Duration.ExpireTime.Unix())
}

func TestActivateScheduledWithoutWindowDegradesToFirstUse(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	// 固定起止模式但生成时没给起始时间
	cfg := BatchConfig{
		Billing:      model.BillingDuration,
		CardType:     model.CardTypeDay,
		Duration:     7,
		ActivateMode: model.ActivateModeScheduled,
		MaxDevices:   1,
	}
	codes, _, err := registry.GenerateBatch(tenant.ID, cfg, 1)
	require.NoError(t, err)
	require.Nil(t, codes[0].Duration.StartTime)
	require.Nil(t, codes[0].Duration.ExpireTime)

	result, err := engine.Activate(codes[0].Code, testFP("s2"), testInfo("s2"), "")
	require.NoError(t, err)

	// 退化为首次使用计时：从激活时刻起算
	info, ok := result.Code.DurationFields()
	require.True(t, ok)
	require.NotNil(t, info.StartTime)
	require.NotNil(t, info.ExpireTime)
	assert.WithinDuration(t, time.Now(), *info.StartTime, 5*time.Second)
	assert.Equal(t, 7*24*time.Hour, info.ExpireTime.Sub(*info.StartTime))
}

func TestVerifyExpiredPersists(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, durationBatch(), 1)
	require.NoError(t, err)
	fp := testFP("v1")
	_, err = engine.Activate(codes[0].Code, fp, testInfo("v1"), "")
	require.NoError(t, err)

	// 把过期时间改到过去
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&model.AuthCode{}).Where("id = ?", codes[0].ID).
		Update("expire_time", past).Error)

	result, err := engine.Verify(codes[0].Code, fp, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonCodeExpired, result.Reason)

	// 过期状态已落库
	code, err := registry.GetByID(codes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.CodeStatusExpired, code.Status)

	// 重复验证幂等
	result, err = engine.Verify(codes[0].Code, fp, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonCodeExpired, result.Reason)
}

func TestVerifyUnboundDevice(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, durationBatch(), 1)
	require.NoError(t, err)
	_, err = engine.Activate(codes[0].Code, testFP("v2"), testInfo("v2"), "")
	require.NoError(t, err)

	result, err := engine.Verify(codes[0].Code, testFP("someone-else"), "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonDeviceNotBound, result.Reason)
}

func TestDeductPointsRules(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, BatchConfig{
		Billing: model.BillingPoints, TotalPoints: 10, DeductAmount: 3, MaxDevices: 1,
	}, 1)
	require.NoError(t, err)

	var berr *Error

	// 未激活不能扣点
	_, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: 1})
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonCodeExpired, berr.Reason)

	_, err = engine.Activate(codes[0].Code, testFP("p1"), testInfo("p1"), "")
	require.NoError(t, err)

	// 负数金额被拒
	_, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: -5})
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonBadAmount, berr.Reason)

	// 默认扣卡面点数
	code, err := engine.DeductPoints(codes[0].ID, DeductInput{})
	require.NoError(t, err)
	assert.Equal(t, 7, code.Points.RemainingPoints)

	// 流水追加且余额一致
	var record model.PointDeductionRecord
	require.NoError(t, db.Where("code_id = ?", codes[0].ID).First(&record).Error)
	assert.Equal(t, 3, record.Amount)
	assert.Equal(t, 7, record.Balance)
}

func TestDeductPointsLedgerBalances(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, BatchConfig{
		Billing: model.BillingPoints, TotalPoints: 10, DeductAmount: 3, MaxDevices: 1,
	}, 1)
	require.NoError(t, err)
	_, err = engine.Activate(codes[0].Code, testFP("lg"), testInfo("lg"), "")
	require.NoError(t, err)

	// 扣减作用在库内余额上，每条流水的余额递减且互不相同
	_, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: 3})
	require.NoError(t, err)
	code, err := engine.DeductPoints(codes[0].ID, DeductInput{Amount: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, code.Points.RemainingPoints)

	var records []model.PointDeductionRecord
	require.NoError(t, db.Where("code_id = ?", codes[0].ID).Order("id ASC").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, 7, records[0].Balance)
	assert.Equal(t, 4, records[1].Balance)

	reloaded, err := registry.GetByID(codes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Points.RemainingPoints)
}

func TestDeductPointsWrongBilling(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, durationBatch(), 1)
	require.NoError(t, err)
	_, err = engine.Activate(codes[0].Code, testFP("w1"), testInfo("w1"), "")
	require.NoError(t, err)

	_, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: 1})
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonWrongBilling, berr.Reason)
}

// 对应发卡到换绑的完整时长卡流程
func TestScenarioDurationLifecycle(t *testing.T) {
	db := setupTest(t)
	registry, binding, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	cfg := BatchConfig{
		Billing:      model.BillingDuration,
		CardType:     model.CardTypeDay,
		Duration:     1,
		ActivateMode: model.ActivateModeFirstUse,
		MaxDevices:   1,
		AllowRebind:  0,
		SingleOnline: true,
	}
	codes, _, err := registry.GenerateBatch(tenant.ID, cfg, 5)
	require.NoError(t, err)
	require.Len(t, codes, 5)

	f1, f2 := testFP("f1"), testFP("f2")

	// F1 激活
	result, err := engine.Activate(codes[0].Code, f1, testInfo("f1"), "")
	require.NoError(t, err)
	require.True(t, result.IsNewActivation)

	// 验证通过，剩余约一天
	verify, err := engine.Verify(codes[0].Code, f1, "")
	require.NoError(t, err)
	assert.True(t, verify.Valid)
	assert.InDelta(t, 86400, verify.RemainingSeconds, 5)

	// F2 激活触发设备配额
	_, err = engine.Activate(codes[0].Code, f2, testInfo("f2"), "")
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonDeviceLimit, berr.Reason)

	// 换绑配额为0，换绑被拒
	_, _, err = binding.Rebind(codes[0].Code, f1, f2, testInfo("f2"), "")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonRebindLimit, berr.Reason)

	// 管理端加一天，过期时间前移整整一天
	before, err := registry.GetByID(codes[0].ID)
	require.NoError(t, err)
	after, err := registry.AdjustTime(codes[0].ID, AdjustAdd, 1, model.CardTypeDay)
	require.NoError(t, err)
	assert.Equal(t, before.Duration.ExpireTime.AddDate(0, 0, 1), *after.Duration.ExpireTime)
}

// 对应点数卡扣到归零的完整流程
func TestScenarioPointsLifecycle(t *testing.T) {
	db := setupTest(t)
	registry, _, engine, _ := newServices(t, db)
	tenant := createTenant(t, db)

	codes, _, err := registry.GenerateBatch(tenant.ID, BatchConfig{
		Billing: model.BillingPoints, TotalPoints: 10, DeductAmount: 3, MaxDevices: 1,
	}, 1)
	require.NoError(t, err)

	_, err = engine.Activate(codes[0].Code, testFP("pts"), testInfo("pts"), "")
	require.NoError(t, err)

	// 3 x 3 = 9，剩1，仍激活
	var code *model.AuthCode
	for i := 0; i < 3; i++ {
		code, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: 3})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, code.Points.RemainingPoints)
	assert.Equal(t, model.CodeStatusActive, code.Status)

	// 余额不足被拒且余额不变
	_, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: 3})
	var berr *Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, ReasonInsufficientPoints, berr.Reason)

	reloaded, err := registry.GetByID(codes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Points.RemainingPoints)

	// 扣掉最后1点：归零并过期
	code, err = engine.DeductPoints(codes[0].ID, DeductInput{Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, code.Points.RemainingPoints)
	assert.Equal(t, model.CodeStatusExpired, code.Status)

	// 过期后验证报点数耗尽
	verify, err := engine.Verify(codes[0].Code, testFP("pts"), "")
	require.NoError(t, err)
	assert.False(t, verify.Valid)
}
