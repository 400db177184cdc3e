package handler

import (
	"auth-code-system/internal/config"
	"auth-code-system/internal/database"
	"auth-code-system/internal/service"

	"github.com/go-playground/validator/v10"
)

var (
	cfg          *config.Config
	fingerprints *service.FingerprintValidator
	gate         *service.BlacklistGate
	registry     *service.CodeRegistry
	binding      *service.BindingManager
	engine       *service.ActivationEngine
	sessions     *service.SessionManager
	sheetSync    *service.SheetSyncService

	validate = validator.New()
)

// Init 组装各服务。必须在 database.InitDB 之后调用。
func Init(c *config.Config) error {
	cfg = c
	db := database.DB

	fingerprints = service.NewFingerprintValidator()
	gate = service.NewBlacklistGate(db)
	registry = service.NewCodeRegistry(db)
	binding = service.NewBindingManager(db, fingerprints, gate)
	engine = service.NewActivationEngine(db, c, fingerprints, gate, binding)
	sessions = service.NewSessionManager(db, c)

	var err error
	sheetSync, err = service.NewSheetSyncService(
		c.SheetSyncEnabled, c.SheetCredentialPath, c.SheetSpreadsheetID, c.SheetName)
	return err
}

// Sessions 暴露给后台清理任务
func Sessions() *service.SessionManager {
	return sessions
}
