package handler

import (
	"strconv"

	"auth-code-system/internal/database"
	"auth-code-system/internal/model"
	"auth-code-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// HandleDeviceList 管理端设备列表，可按租户与状态过滤
func HandleDeviceList(c *fiber.Ctx) error {
	tenantID, _ := strconv.Atoi(c.Query("tenant_id", "0"))
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

	db := database.DB.Model(&model.Device{})
	if tenantID != 0 {
		db = db.Where("tenant_id = ?", tenantID)
	}
	if status := c.Query("status"); status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取设备总数失败",
		})
	}

	var devices []model.Device
	offset := (page - 1) * pageSize
	if err := db.Order("updated_at DESC").Offset(offset).Limit(pageSize).Find(&devices).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取设备列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"devices": devices,
		"total":   total,
		"page":    page,
	})
}

// UnbindInput 管理端解绑请求
type UnbindInput struct {
	CodeID uint `json:"code_id" validate:"required"`
}

// HandleDeviceUnbind 管理端解绑设备，不消耗换绑次数
func HandleDeviceUnbind(c *fiber.Ctx) error {
	deviceID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的设备ID",
		})
	}

	input := new(UnbindInput)
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

	if uerr := binding.UnbindAdmin(input.CodeID, uint(deviceID)); uerr != nil {
		return fail(c, uerr)
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "unbind", "device", strconv.Itoa(deviceID), input)

	return c.JSON(fiber.Map{
		"message": "设备解绑成功",
	})
}
