package handler

import (
	"auth-code-system/internal/model"
	"auth-code-system/internal/service"
	"auth-code-system/internal/util"

	"github.com/gofiber/fiber/v2"
)

// ActivateInput 客户端激活请求
type ActivateInput struct {
	Code        string           `json:"code" validate:"required"`
	Fingerprint string           `json:"fingerprint" validate:"required,len=64,hexadecimal"`
	DeviceInfo  model.DeviceInfo `json:"device_info"`
}

// HandleActivate 激活授权码。新激活时创建会话并下发令牌；
// 单点登录的卡在这里把其他会话踢下线。
func HandleActivate(c *fiber.Ctx) error {
	input := new(ActivateInput)
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

	result, err := engine.Activate(input.Code, input.Fingerprint, input.DeviceInfo, c.IP())
	if err != nil {
		return fail(c, err)
	}

	// 激活即上线：重复激活同样刷新会话
	token := util.GenerateSessionToken()
	session, err := sessions.CreateSession(
		result.Device.ID, result.Code.ID, result.Code.TenantID,
		token, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return fail(c, err)
	}

	if result.Code.SingleOnline {
		if _, err := sessions.EnforceSingleLogin(result.Code.ID, session.ID); err != nil {
			return fail(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"code":              result.Code,
		"device":            result.Device,
		"is_new_activation": result.IsNewActivation,
		"token":             token,
	})
}

// VerifyInput 客户端验证请求
type VerifyInput struct {
	Code        string `json:"code" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required,len=64,hexadecimal"`
}

// HandleVerify 验证授权有效性
func HandleVerify(c *fiber.Ctx) error {
	input := new(VerifyInput)
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

	result, err := engine.Verify(input.Code, input.Fingerprint, c.IP())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// HeartbeatInput 心跳请求
type HeartbeatInput struct {
	Token string `json:"token" validate:"required"`
}

// HandleHeartbeat 心跳续命，唯一的客户端高频接口
func HandleHeartbeat(c *fiber.Ctx) error {
	input := new(HeartbeatInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}
	if input.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未提供会话令牌",
		})
	}

	session, err := sessions.UpdateHeartbeat(input.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"ok":             true,
		"last_heartbeat": session.LastHeartbeat,
	})
}

// DeductInput 扣点请求
type DeductInput struct {
	Code        string `json:"code" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required,len=64,hexadecimal"`
	Amount      int    `json:"amount"` // 0 表示用卡面默认扣点数
	Reason      string `json:"reason"`
}

// HandleDeduct 点数卡扣点。先走完整验证门禁再扣。
func HandleDeduct(c *fiber.Ctx) error {
	input := new(DeductInput)
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

	verify, err := engine.Verify(input.Code, input.Fingerprint, c.IP())
	if err != nil {
		return fail(c, err)
	}
	if !verify.Valid {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":  "授权验证未通过",
			"reason": verify.Reason,
		})
	}

	code, err := engine.DeductPoints(verify.Code.ID, service.DeductInput{
		Amount:   input.Amount,
		Reason:   input.Reason,
		DeviceID: &verify.Device.ID,
		IP:       c.IP(),
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"remaining_points": code.Points.RemainingPoints,
		"status":           code.Status,
	})
}

// RebindInput 换绑请求
type RebindInput struct {
	Code           string           `json:"code" validate:"required"`
	OldFingerprint string           `json:"old_fingerprint" validate:"required,len=64,hexadecimal"`
	NewFingerprint string           `json:"new_fingerprint" validate:"required,len=64,hexadecimal"`
	DeviceInfo     model.DeviceInfo `json:"device_info"`
}

// HandleRebind 设备换绑，成功后为新设备建立会话
func HandleRebind(c *fiber.Ctx) error {
	input := new(RebindInput)
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

	code, device, err := binding.Rebind(
		input.Code, input.OldFingerprint, input.NewFingerprint, input.DeviceInfo, c.IP())
	if err != nil {
		return fail(c, err)
	}

	token := util.GenerateSessionToken()
	session, err := sessions.CreateSession(
		device.ID, code.ID, code.TenantID, token, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return fail(c, err)
	}
	if code.SingleOnline {
		if _, err := sessions.EnforceSingleLogin(code.ID, session.ID); err != nil {
			return fail(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"code":   code,
		"device": device,
		"token":  token,
	})
}

// HandleLogout 客户端主动下线
func HandleLogout(c *fiber.Ctx) error {
	input := new(HeartbeatInput)
	if err := c.BodyParser(input); err != nil || input.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "未提供会话令牌",
		})
	}

	if err := sessions.Logout(input.Token); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "已下线",
	})
}

// HandleFingerprint 由硬件信息计算设备指纹，供客户端自检
func HandleFingerprint(c *fiber.Ctx) error {
	info := new(model.DeviceInfo)
	if err := c.BodyParser(info); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的输入数据",
		})
	}

	if missing := fingerprints.ValidateCompleteness(*info); len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "硬件信息不完整",
			"missing": missing,
		})
	}

	return c.JSON(fiber.Map{
		"fingerprint": fingerprints.Generate(*info),
	})
}
