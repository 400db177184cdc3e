package service

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"auth-code-system/internal/config"
	"auth-code-system/internal/database"
	"auth-code-system/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTest 初始化内存测试库，测试结束自动清理
func setupTest(t *testing.T) *gorm.DB {
	t.Helper()
	database.InitTestDB()
	t.Cleanup(database.CleanTestDB)
	return database.DB
}

// newServices 组装一套完整服务供测试用
func newServices(t *testing.T, db *gorm.DB) (*CodeRegistry, *BindingManager, *ActivationEngine, *SessionManager) {
	t.Helper()
	cfg := config.Default()
	fv := NewFingerprintValidator()
	gate := NewBlacklistGate(db)
	registry := NewCodeRegistry(db)
	binding := NewBindingManager(db, fv, gate)
	engine := NewActivationEngine(db, cfg, fv, gate, binding)
	sessions := NewSessionManager(db, cfg)
	return registry, binding, engine, sessions
}

// createTenant 建一个启用状态的租户
func createTenant(t *testing.T, db *gorm.DB) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		Name:   "tenant-" + t.Name(),
		AppKey: "key-" + t.Name(),
		Status: model.TenantStatusActive,
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

// testFP 由种子生成确定的合法指纹
func testFP(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// testInfo 完整的硬件信息样本
func testInfo(seed string) model.DeviceInfo {
	return model.DeviceInfo{
		CPUID:       "cpu-" + seed,
		BoardSerial: "board-" + seed,
		DiskSerial:  "disk-" + seed,
		MACAddress:  "mac-" + seed,
		Platform:    "windows",
		DeviceName:  "pc-" + seed,
	}
}
