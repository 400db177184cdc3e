package handler

import (
	"auth-code-system/internal/database"
	"auth-code-system/internal/model"

	"github.com/gofiber/fiber/v2"
)

// HandleStatistics 授权码统计信息
func HandleStatistics(c *fiber.Ctx) error {
	db := database.DB
	stats := &model.CodeStatistics{}

	type countQuery struct {
		dest  *int64
		where []interface{}
	}
	codeCounts := []countQuery{
		{&stats.TotalCodes, nil},
		{&stats.UnusedCodes, []interface{}{"status = ?", model.CodeStatusUnused}},
		{&stats.ActiveCodes, []interface{}{"status = ?", model.CodeStatusActive}},
		{&stats.ExpiredCodes, []interface{}{"status = ?", model.CodeStatusExpired}},
		{&stats.DisabledCodes, []interface{}{"status = ?", model.CodeStatusDisabled}},
		{&stats.DurationCodes, []interface{}{"billing = ?", model.BillingDuration}},
		{&stats.PointsCodes, []interface{}{"billing = ?", model.BillingPoints}},
	}
	for _, q := range codeCounts {
		query := db.Model(&model.AuthCode{})
		if q.where != nil {
			query = query.Where(q.where[0], q.where[1:]...)
		}
		if err := query.Count(q.dest).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "获取授权码统计失败",
			})
		}
	}

	if err := db.Model(&model.Device{}).Count(&stats.TotalDevices).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取设备统计失败",
		})
	}
	if err := db.Model(&model.Device{}).Where("bound_code_id IS NOT NULL").Count(&stats.BoundDevices).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取设备统计失败",
		})
	}
	if err := db.Model(&model.OnlineSession{}).Where("is_valid = ?", true).Count(&stats.OnlineSessions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取在线会话统计失败",
		})
	}
	if err := db.Model(&model.PointDeductionRecord{}).Count(&stats.TotalDeductions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取扣点统计失败",
		})
	}

	// 扣点总量，没有流水时保持0
	var pointsDeducted struct{ Total int64 }
	if err := db.Model(&model.PointDeductionRecord{}).
		Select("COALESCE(SUM(amount), 0) AS total").Scan(&pointsDeducted).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取扣点统计失败",
		})
	}
	stats.PointsDeducted = pointsDeducted.Total

	return c.JSON(stats)
}
