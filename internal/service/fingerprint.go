package service

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"auth-code-system/internal/model"
)

var fingerprintPattern = regexp.MustCompile(`^(?i)[a-f0-9]{64}$`)

// FingerprintValidator 设备指纹的生成与校验，纯函数，无副作用
type FingerprintValidator struct{}

func NewFingerprintValidator() *FingerprintValidator {
	return &FingerprintValidator{}
}

// Generate 由硬件信息计算指纹：各字段小写去空白后按固定顺序用竖线拼接，
// 取SHA-256。缺失字段按空字符串参与计算。
func (v *FingerprintValidator) Generate(info model.DeviceInfo) string {
	parts := []string{
		info.CPUID,
		info.BoardSerial,
		info.DiskSerial,
		info.MACAddress,
		info.Platform,
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// VerifyFormat 指纹必须是64位十六进制字符串
func (v *FingerprintValidator) VerifyFormat(s string) bool {
	return fingerprintPattern.MatchString(s)
}

// ValidateCompleteness 返回缺失或空白的必填硬件字段名
func (v *FingerprintValidator) ValidateCompleteness(info model.DeviceInfo) []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("cpu_id", info.CPUID)
	check("board_serial", info.BoardSerial)
	check("disk_serial", info.DiskSerial)
	check("mac_address", info.MACAddress)
	check("platform", info.Platform)
	return missing
}
