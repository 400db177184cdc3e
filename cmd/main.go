package main

import (
	"log"
	"time"

	"auth-code-system/internal/config"
	"auth-code-system/internal/database"
	"auth-code-system/internal/handler"
	"auth-code-system/internal/middleware"
	"auth-code-system/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}
	util.SetJWTSecret(cfg.JWTSecret)

	// 初始化数据库
	database.InitDB(cfg.DataDir)

	if err := handler.Init(cfg); err != nil {
		log.Fatal("初始化服务失败:", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// 中间件
	app.Use(logger.New())
	app.Use(cors.New())

	// 路由组
	api := app.Group("/api/v1")

	// 客户端接口，不走管理端认证
	client := api.Group("/client")
	client.Post("/activate", handler.HandleActivate)
	client.Post("/verify", handler.HandleVerify)
	client.Post("/heartbeat", handler.HandleHeartbeat)
	client.Post("/deduct", handler.HandleDeduct)
	client.Post("/rebind", handler.HandleRebind)
	client.Post("/logout", handler.HandleLogout)
	client.Post("/fingerprint", handler.HandleFingerprint)

	// 认证路由
	auth := api.Group("/auth")
	auth.Post("/validate-token", handler.HandleValidateToken)

	authProtected := auth.Group("/")
	authProtected.Use(middleware.Auth())
	authProtected.Post("/change-password", handler.HandleChangePassword)

	// 用户路由
	users := api.Group("/users")
	users.Post("/register", handler.HandleUserRegister)
	users.Post("/login", handler.HandleUserLogin)
	users.Get("/info", middleware.Auth(), handler.HandleUserInfo)
	users.Get("/search", middleware.Auth(), middleware.AdminOnly(), handler.HandleSearchUsers)
	users.Get("/login-logs", middleware.Auth(), handler.HandleGetLoginLogs)
	users.Put("/:id", middleware.Auth(), middleware.AdminOnly(), handler.HandleUpdateUser)
	users.Delete("/:id", middleware.Auth(), middleware.AdminOnly(), handler.HandleDeleteUser)

	// 授权码管理
	codes := api.Group("/codes")
	codes.Use(middleware.Auth(), middleware.AdminOnly())
	codes.Post("/generate", handler.HandleCodeGenerate)
	codes.Get("/", handler.HandleCodeList)
	codes.Get("/:code", handler.HandleCodeGet)
	codes.Put("/:id", handler.HandleCodeUpdate)
	codes.Delete("/:id", handler.HandleCodeDelete)
	codes.Post("/:id/adjust-time", handler.HandleCodeAdjustTime)
	codes.Get("/:id/devices", handler.HandleCodeDevices)
	codes.Get("/:id/deductions", handler.HandleCodeDeductions)

	// 设备管理
	devices := api.Group("/devices")
	devices.Use(middleware.Auth(), middleware.AdminOnly())
	devices.Get("/", handler.HandleDeviceList)
	devices.Post("/:id/unbind", handler.HandleDeviceUnbind)

	// 会话管理
	sessions := api.Group("/sessions")
	sessions.Use(middleware.Auth(), middleware.AdminOnly())
	sessions.Get("/", handler.HandleSessionList)
	sessions.Post("/:id/force-offline", handler.HandleSessionForceOffline)

	// 黑名单管理
	blacklist := api.Group("/blacklist")
	blacklist.Use(middleware.Auth(), middleware.AdminOnly())
	blacklist.Get("/", handler.HandleBlacklistList)
	blacklist.Post("/", handler.HandleBlacklistCreate)
	blacklist.Delete("/:id", handler.HandleBlacklistDelete)

	// 租户管理
	tenants := api.Group("/tenants")
	tenants.Use(middleware.Auth(), middleware.AdminOnly())
	tenants.Get("/", handler.HandleTenantList)
	tenants.Post("/", handler.HandleTenantCreate)
	tenants.Put("/:id", handler.HandleTenantUpdate)

	// 统计与日志
	api.Get("/statistics", middleware.Auth(), middleware.AdminOnly(), handler.HandleStatistics)
	api.Get("/logs", middleware.Auth(), middleware.AdminOnly(), handler.HandleGetLogs)
	api.Get("/logs/mine", middleware.Auth(), handler.HandleGetUserLogs)

	// 后台会话超时清理，独立于请求流量定时执行
	go func() {
		interval := time.Duration(cfg.SweepIntervalSeconds) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			affected, err := handler.Sessions().CheckTimeout()
			if err != nil {
				log.Printf("会话超时清理失败: %v", err)
				continue
			}
			if affected > 0 {
				log.Printf("会话超时清理: %d个会话已下线", affected)
			}
		}
	}()

	log.Fatal(app.Listen(cfg.ListenAddr))
}
