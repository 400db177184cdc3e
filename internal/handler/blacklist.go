package handler

import (
	"strconv"

	"auth-code-system/internal/database"
	"auth-code-system/internal/model"
	"auth-code-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// HandleBlacklistList 黑名单列表
func HandleBlacklistList(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	db := database.DB.Model(&model.BlacklistEntry{})
	if t := c.Query("type"); t != "" {
		db = db.Where("type = ?", t)
	}
	if tenantID, _ := strconv.Atoi(c.Query("tenant_id", "0")); tenantID != 0 {
		db = db.Where("tenant_id = ?", tenantID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取黑名单总数失败",
		})
	}

	var entries []model.BlacklistEntry
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&entries).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取黑名单失败",
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"total":   total,
		"page":    page,
	})
}

// BlacklistInput 新增黑名单条目。TenantID 为空表示全局封禁。
type BlacklistInput struct {
	TenantID *uint  `json:"tenant_id"`
	Type     string `json:"type" validate:"required,oneof=device ip"`
	Value    string `json:"value" validate:"required"`
	Reason   string `json:"reason"`
}

// HandleBlacklistCreate 新增黑名单条目
func HandleBlacklistCreate(c *fiber.Ctx) error {
	input := new(BlacklistInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "请求参数不完整或格式错误",
		})
	}

	entry := &model.BlacklistEntry{
		TenantID: input.TenantID,
		Type:     input.Type,
		Value:    input.Value,
		Reason:   input.Reason,
	}
	if err := database.DB.Create(entry).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建黑名单条目失败",
		})
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "create", "blacklist", strconv.Itoa(int(entry.ID)), input)

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleBlacklistDelete 移除黑名单条目
func HandleBlacklistDelete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的条目ID",
		})
	}

	var entry model.BlacklistEntry
	if err := database.DB.First(&entry, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "黑名单条目不存在",
		})
	}

	if err := database.DB.Delete(&entry).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除黑名单条目失败",
		})
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "delete", "blacklist", strconv.Itoa(id), nil)

	return c.JSON(fiber.Map{
		"message": "黑名单条目已删除",
	})
}
