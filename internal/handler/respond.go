package handler

import (
	"errors"

	"auth-code-system/internal/service"

	"github.com/gofiber/fiber/v2"
)

// statusFor 业务失败分类到HTTP状态码
func statusFor(cat service.ErrorCategory) int {
	switch cat {
	case service.CategoryNotFound:
		return fiber.StatusNotFound
	case service.CategoryInvalidInput:
		return fiber.StatusBadRequest
	case service.CategoryConflict:
		return fiber.StatusConflict
	case service.CategoryForbidden:
		return fiber.StatusForbidden
	case service.CategoryStale:
		return fiber.StatusGone
	case service.CategoryUnsupported:
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// fail 统一失败出口：业务失败带机器可读reason，存储故障一律500
func fail(c *fiber.Ctx, err error) error {
	var berr *service.Error
	if errors.As(err, &berr) {
		return c.Status(statusFor(berr.Category)).JSON(fiber.Map{
			"error":  berr.Message,
			"reason": berr.Reason,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "服务器内部错误",
	})
}
