package handler

import (
	"strconv"

	"auth-code-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// HandleSessionList 在线会话列表
func HandleSessionList(c *fiber.Ctx) error {
	tenantID, _ := strconv.Atoi(c.Query("tenant_id", "0"))
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))

	list, total, err := sessions.ListOnline(uint(tenantID), page, pageSize)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"sessions": list,
		"total":    total,
		"page":     page,
	})
}

// HandleSessionForceOffline 管理端强制下线
func HandleSessionForceOffline(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的会话ID",
		})
	}

	if ferr := sessions.ForceOffline(uint(id)); ferr != nil {
		return fail(c, ferr)
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "force_offline", "session", strconv.Itoa(id), nil)

	return c.JSON(fiber.Map{
		"message": "会话已强制下线",
	})
}
