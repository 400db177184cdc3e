package handler

import (
	"strconv"

	"auth-code-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GenerateInput 批量生成请求
type GenerateInput struct {
	TenantID uint                `json:"tenant_id" validate:"required"`
	Count    int                 `json:"count" validate:"required,min=1,max=1000"`
	Config   service.BatchConfig `json:"config"`
}

// HandleCodeGenerate 管理员批量生成授权码
func HandleCodeGenerate(c *fiber.Ctx) error {
	input := new(GenerateInput)
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

	codes, batchID, err := registry.GenerateBatch(input.TenantID, input.Config, input.Count)
	if err != nil {
		return fail(c, err)
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "generate", "code", batchID, fiber.Map{
		"tenant_id": input.TenantID,
		"count":     len(codes),
		"billing":   input.Config.Billing,
	})

	// 批次导出是尽力而为，不阻塞生成
	if sheetSync != nil {
		go sheetSync.ExportBatch(codes)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"batch_id": batchID,
		"codes":    codes,
	})
}

// HandleCodeList 分页查询授权码
func HandleCodeList(c *fiber.Ctx) error {
	tenantID, _ := strconv.Atoi(c.Query("tenant_id", "0"))
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))

	codes, total, err := registry.List(service.ListQuery{
		TenantID: uint(tenantID),
		Status:   c.Query("status"),
		Billing:  c.Query("billing"),
		Keyword:  c.Query("keyword"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"codes": codes,
		"total": total,
		"page":  page,
	})
}

// HandleCodeGet 按卡密查询详情
func HandleCodeGet(c *fiber.Ctx) error {
	value := c.Params("code")
	if value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "卡密不能为空",
		})
	}

	code, err := registry.GetByValue(value)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(code)
}

// HandleCodeUpdate 管理员修改授权码配置
func HandleCodeUpdate(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的授权码ID",
		})
	}

	input := new(service.UpdateInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	code, uerr := registry.Update(uint(id), *input)
	if uerr != nil {
		return fail(c, uerr)
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "update", "code", strconv.Itoa(id), input)

	if sheetSync != nil {
		go sheetSync.SyncCodeStatus(code)
	}

	return c.JSON(fiber.Map{
		"message": "授权码更新成功",
		"code":    code,
	})
}

// HandleCodeDelete 删除授权码并解绑其设备
func HandleCodeDelete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的授权码ID",
		})
	}

	found, derr := registry.Delete(uint(id))
	if derr != nil {
		return fail(c, derr)
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "授权码不存在",
		})
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "delete", "code", strconv.Itoa(id), nil)

	return c.JSON(fiber.Map{
		"message": "授权码删除成功",
	})
}

// AdjustTimeInput 时间调整请求
type AdjustTimeInput struct {
	Direction string `json:"direction" validate:"required,oneof=add subtract"`
	Amount    int    `json:"amount" validate:"required,min=1"`
	Unit      string `json:"unit" validate:"required"`
}

// HandleCodeAdjustTime 管理员增减授权码有效期
func HandleCodeAdjustTime(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的授权码ID",
		})
	}

	input := new(AdjustTimeInput)
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

	code, aerr := registry.AdjustTime(uint(id), input.Direction, input.Amount, input.Unit)
	if aerr != nil {
		return fail(c, aerr)
	}

	userID := c.Locals("userID").(uint)
	service.LogOperation(userID, "adjust_time", "code", strconv.Itoa(id), input)

	return c.JSON(fiber.Map{
		"message": "有效期调整成功",
		"code":    code,
	})
}

// HandleCodeDevices 查询绑定到授权码的设备
func HandleCodeDevices(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的授权码ID",
		})
	}

	devices, lerr := binding.ListBound(uint(id))
	if lerr != nil {
		return fail(c, lerr)
	}
	return c.JSON(fiber.Map{
		"devices": devices,
	})
}

// HandleCodeDeductions 查询授权码的扣点流水
func HandleCodeDeductions(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的授权码ID",
		})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))

	records, total, lerr := registry.ListDeductions(uint(id), page, pageSize)
	if lerr != nil {
		return fail(c, lerr)
	}
	return c.JSON(fiber.Map{
		"records": records,
		"total":   total,
		"page":    page,
	})
}
