package handler

import (
	"strconv"

	"auth-code-system/internal/database"
	"auth-code-system/internal/model"
	"auth-code-system/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HandleTenantList 租户列表
func HandleTenantList(c *fiber.Ctx) error {
	var tenants []model.Tenant
	if err := database.DB.Order("created_at DESC").Find(&tenants).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取租户列表失败",
		})
	}
	return c.JSON(fiber.Map{
		"tenants": tenants,
	})
}

// TenantInput 新增/修改租户
type TenantInput struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact"`
	Remark  string `json:"remark"`
	Status  string `json:"status"`
}

// HandleTenantCreate 新增租户，自动分配AppKey
func HandleTenantCreate(c *fiber.Ctx) error {
	input := new(TenantInput)
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

	tenant := &model.Tenant{
		Name:    input.Name,
		AppKey:  uuid.NewString(),
		Status:  model.TenantStatusActive,
		Contact: input.Contact,
		Remark:  input.Remark,
	}
	if err := database.DB.Create(tenant).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建租户失败",
		})
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "create", "tenant", strconv.Itoa(int(tenant.ID)), input)

	return c.Status(fiber.StatusCreated).JSON(tenant)
}

// HandleTenantUpdate 修改租户信息或启停
func HandleTenantUpdate(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的租户ID",
		})
	}

	input := new(TenantInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	var tenant model.Tenant
	if err := database.DB.First(&tenant, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "租户不存在",
		})
	}

	if input.Name != "" {
		tenant.Name = input.Name
	}
	if input.Contact != "" {
		tenant.Contact = input.Contact
	}
	if input.Remark != "" {
		tenant.Remark = input.Remark
	}
	if input.Status == model.TenantStatusActive || input.Status == model.TenantStatusDisabled {
		tenant.Status = input.Status
	}

	if err := database.DB.Save(&tenant).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新租户失败",
		})
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "update", "tenant", strconv.Itoa(id), input)

	return c.JSON(tenant)
}
