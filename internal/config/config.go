package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config 服务配置，启动时从环境变量加载一次，按依赖注入传给各服务，
// 不使用全局可变状态。
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	DataDir    string `envconfig:"DATA_DIR" default:"data"`
	JWTSecret  string `envconfig:"JWT_SECRET" default:"auth-code-system-secret"`

	// 会话相关
	HeartbeatTimeoutSeconds int `envconfig:"HEARTBEAT_TIMEOUT_SECONDS" default:"300"` // 心跳超时
	TokenTTLHours           int `envconfig:"TOKEN_TTL_HOURS" default:"24"`            // 会话令牌有效期
	SweepIntervalSeconds    int `envconfig:"SWEEP_INTERVAL_SECONDS" default:"60"`     // 超时清理周期

	// Google Sheets 批次导出
	SheetSyncEnabled     bool   `envconfig:"SHEET_SYNC_ENABLED" default:"false"`
	SheetCredentialPath  string `envconfig:"SHEET_CREDENTIAL_PATH"`
	SheetSpreadsheetID   string `envconfig:"SHEET_SPREADSHEET_ID"`
	SheetName            string `envconfig:"SHEET_NAME" default:"codes"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 测试用默认配置
func Default() *Config {
	return &Config{
		ListenAddr:              ":8080",
		DataDir:                 "data",
		JWTSecret:               "test-secret",
		HeartbeatTimeoutSeconds: 300,
		TokenTTLHours:           24,
		SweepIntervalSeconds:    60,
		SheetName:               "codes",
	}
}
